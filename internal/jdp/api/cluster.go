package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/internal/jdp/service"
	"github.com/jimyag/jdp/pkg/ginx"
)

// ClusterServiceInterface 定义集群任务引擎的接口
type ClusterServiceInterface interface {
	Get(ctx context.Context, id string) (*entity.ClusterView, error)
	List(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.Cluster, string, error)
	Register(ctx context.Context, req *entity.CreateClusterRequest) (*entity.Cluster, error)
	CreateCluster(ctx context.Context, req *entity.ClusterActionRequest) error
	GrowCluster(ctx context.Context, req *entity.GrowClusterRequest) error
	ShrinkCluster(ctx context.Context, req *entity.ShrinkClusterRequest) error
	DeleteCluster(ctx context.Context, req *entity.ClusterActionRequest) error
	AddShard(ctx context.Context, req *entity.AddShardRequest) error
}

type Cluster struct {
	clusterService ClusterServiceInterface
}

func NewCluster(clusterService *service.ClusterService) *Cluster {
	return &Cluster{
		clusterService: clusterService,
	}
}

func (c *Cluster) RegisterRoutes(router *gin.RouterGroup) {
	clusterRouter := router.Group("/clusters")
	clusterRouter.POST("/create", ginx.Adapt(c.CreateCluster))
	clusterRouter.POST("/grow", ginx.AdaptCast(c.GrowCluster))
	clusterRouter.POST("/shrink", ginx.AdaptCast(c.ShrinkCluster))
	clusterRouter.POST("/add-shard", ginx.AdaptCast(c.AddShard))
	clusterRouter.POST("/delete", ginx.AdaptCast(c.DeleteCluster))
	clusterRouter.POST("/show", ginx.Adapt(c.ShowCluster))
	clusterRouter.POST("/describe", ginx.Adapt(c.DescribeClusters))
}

// CreateCluster 先落集群和成员行，随后投递 create_cluster 指令
// 返回的集群 task 为 BUILDING，成员就绪情况通过 show 观察
func (c *Cluster) CreateCluster(ctx *gin.Context, req *entity.CreateClusterRequest) (*entity.Cluster, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("tenant_id", req.TenantID).
		Str("name", req.Name).
		Int("instances", len(req.Instances)).
		Msg("CreateCluster called")

	cluster, err := c.clusterService.Register(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to register cluster")
		return nil, err
	}
	if err := c.clusterService.CreateCluster(ctx, &entity.ClusterActionRequest{ClusterID: cluster.ID}); err != nil {
		logger.Error().
			Err(err).
			Str("cluster_id", cluster.ID).
			Msg("Failed to start cluster build")
		return nil, err
	}

	logger.Info().
		Str("cluster_id", cluster.ID).
		Msg("Cluster build started")
	return cluster, nil
}

func (c *Cluster) GrowCluster(ctx *gin.Context, req *entity.GrowClusterRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("cluster_id", req.ClusterID).
		Strs("new_ids", req.NewIDs).
		Msg("GrowCluster called")

	if err := c.clusterService.GrowCluster(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to grow cluster")
		return err
	}
	return nil
}

func (c *Cluster) ShrinkCluster(ctx *gin.Context, req *entity.ShrinkClusterRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("cluster_id", req.ClusterID).
		Strs("ids", req.IDs).
		Msg("ShrinkCluster called")

	if err := c.clusterService.ShrinkCluster(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to shrink cluster")
		return err
	}
	return nil
}

func (c *Cluster) AddShard(ctx *gin.Context, req *entity.AddShardRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("cluster_id", req.ClusterID).
		Str("shard_id", req.ShardID).
		Msg("AddShard called")

	if err := c.clusterService.AddShard(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to add shard")
		return err
	}
	return nil
}

func (c *Cluster) DeleteCluster(ctx *gin.Context, req *entity.ClusterActionRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("cluster_id", req.ClusterID).
		Msg("DeleteCluster called")

	if err := c.clusterService.DeleteCluster(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to delete cluster")
		return err
	}
	return nil
}

func (c *Cluster) ShowCluster(ctx *gin.Context, req *entity.DescribeClusterRequest) (*entity.ClusterView, error) {
	logger := zerolog.Ctx(ctx)

	view, err := c.clusterService.Get(ctx, req.ClusterID)
	if err != nil {
		logger.Error().
			Err(err).
			Str("cluster_id", req.ClusterID).
			Msg("Failed to show cluster")
		return nil, err
	}
	return view, nil
}

func (c *Cluster) DescribeClusters(ctx *gin.Context, req *entity.ListClustersRequest) (*entity.ListClustersResponse, error) {
	logger := zerolog.Ctx(ctx)

	clusters, marker, err := c.clusterService.List(ctx, req.TenantID, repository.ListOptions{
		Limit:          req.Limit,
		Marker:         req.Marker,
		IncludeDeleted: req.IncludeDeleted,
	})
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to describe clusters")
		return nil, err
	}
	return &entity.ListClustersResponse{
		Clusters:   clusters,
		NextMarker: marker,
	}, nil
}
