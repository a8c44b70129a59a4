package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/guestagent"
	"github.com/jimyag/jdp/pkg/idgen"
	"github.com/jimyag/jdp/pkg/poller"
)

// ClusterStrategy 按拓扑插拔的集群编排策略
// 按 datastore manager 名字选择，进程启动时注册
type ClusterStrategy interface {
	// CreateCluster 在所有成员就绪后把它们编成一个集群
	CreateCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, members []*model.Instance) error
	// GrowCluster 把新成员并入已有集群
	GrowCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, existing, added []*model.Instance) error
	// AddShard 在集群上登记一个新分片，仅分片型拓扑支持
	AddShard(ctx context.Context, cs *ClusterService, cluster *model.Cluster, shardMembers []*model.Instance, replicaSetName string) error
}

// shardFailure 分片步骤失败时携带受影响的成员
// 收口时这些成员和集群一起打上构建失败哨兵
type shardFailure struct {
	members []*model.Instance
	err     error
}

func (e *shardFailure) Error() string { return e.err.Error() }

func (e *shardFailure) Unwrap() error { return e.err }

// ClusterService 集群任务引擎
// 集群工作流是成员实例工作流的组合，外加对各 guest 的拓扑协调调用
type ClusterService struct {
	*Deps
	instances  *InstanceService
	strategies map[string]ClusterStrategy
}

// NewClusterService 创建集群任务引擎并注册内置策略
func NewClusterService(deps *Deps, instances *InstanceService) *ClusterService {
	mysql := &mysqlStrategy{}
	return &ClusterService{
		Deps:      deps,
		instances: instances,
		strategies: map[string]ClusterStrategy{
			"mysql":   mysql,
			"pxc":     mysql,
			"mongodb": &mongoStrategy{},
			"redis":   &redisStrategy{},
			"vertica": &verticaStrategy{},
		},
	}
}

// loadCluster 加载集群行，不存在时返回 NotFound
func (s *ClusterService) loadCluster(ctx context.Context, id string) (*model.Cluster, error) {
	cluster, err := s.Clusters.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.Wrapf(apierror.ErrNotFound, err, "cluster %s not found", id)
		}
		return nil, err
	}
	return cluster, nil
}

// strategyFor 按集群的 datastore manager 选策略
func (s *ClusterService) strategyFor(ctx context.Context, cluster *model.Cluster) (ClusterStrategy, error) {
	version, err := s.Datastores.GetVersion(ctx, cluster.DatastoreVersionID)
	if err != nil {
		return nil, err
	}
	strategy, ok := s.strategies[version.Manager]
	if !ok {
		return nil, apierror.Wrapf(apierror.ErrBadRequest, nil,
			"datastore manager %s does not support clustering", version.Manager)
	}
	return strategy, nil
}

// admitTask 集群任务准入，语义同实例侧
func (s *ClusterService) admitTask(ctx context.Context, clusterID string, next entity.Task) error {
	ok, err := s.Clusters.CompareAndSetTask(ctx, clusterID, string(entity.ClusterTaskNone), string(next))
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Wrapf(apierror.ErrUnprocessable, nil, "cluster %s has another task in flight", clusterID)
	}
	return nil
}

// Get 返回集群及成员视图
func (s *ClusterService) Get(ctx context.Context, id string) (*entity.ClusterView, error) {
	cluster, err := s.loadCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := clusterModelToEntity(cluster)
	if err != nil {
		return nil, err
	}
	members, err := s.Instances.ListByClusterID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &entity.ClusterView{Cluster: *e}
	for _, member := range members {
		mv, err := s.instances.view(ctx, member)
		if err != nil {
			return nil, err
		}
		view.Instances = append(view.Instances, *mv)
	}
	return view, nil
}

// List 分页列出租户集群
func (s *ClusterService) List(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.Cluster, string, error) {
	filters := map[string]any{}
	if tenantID != "" {
		filters["tenant_id"] = tenantID
	}
	rows, marker, err := s.Clusters.List(ctx, filters, opts)
	if err != nil {
		return nil, "", err
	}
	clusters := make([]*entity.Cluster, 0, len(rows))
	for _, row := range rows {
		c, err := clusterModelToEntity(row)
		if err != nil {
			return nil, "", err
		}
		clusters = append(clusters, c)
	}
	return clusters, marker, nil
}

// Register 落集群行和成员实例行，然后投递 create_cluster 任务
func (s *ClusterService) Register(ctx context.Context, req *entity.CreateClusterRequest) (*entity.Cluster, error) {
	clusterID := req.ClusterID
	var err error
	if clusterID == "" {
		clusterID, err = idgen.GenerateClusterID()
		if err != nil {
			return nil, apierror.Wrapf(apierror.ErrInternalError, err, "generate cluster id")
		}
	}
	now := time.Now()
	cluster := &model.Cluster{
		ID:                 clusterID,
		TenantID:           req.TenantID,
		Name:               req.Name,
		DatastoreVersionID: req.DatastoreVersionID,
		ConfigurationID:    req.ConfigurationID,
		Task:               string(entity.ClusterTaskNone),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := s.strategyFor(ctx, cluster); err != nil {
		return nil, err
	}
	if err := s.Clusters.Create(ctx, cluster); err != nil {
		return nil, err
	}

	for i := range req.Instances {
		memberReq := req.Instances[i]
		memberReq.TenantID = req.TenantID
		memberReq.ClusterID = clusterID
		memberReq.DatastoreVersionID = req.DatastoreVersionID
		if memberReq.Type == "" {
			memberReq.Type = entity.InstanceTypeMember
		}
		if err := s.instances.Create(ctx, &memberReq); err != nil {
			return nil, err
		}
	}

	if err := s.CreateCluster(ctx, &entity.ClusterActionRequest{ClusterID: clusterID}); err != nil {
		return nil, err
	}
	return clusterModelToEntity(cluster)
}

// CreateCluster 编排已落库的集群
func (s *ClusterService) CreateCluster(ctx context.Context, req *entity.ClusterActionRequest) error {
	cluster, err := s.loadCluster(ctx, req.ClusterID)
	if err != nil {
		return err
	}
	strategy, err := s.strategyFor(ctx, cluster)
	if err != nil {
		return err
	}
	if err := s.admitTask(ctx, cluster.ID, entity.ClusterTaskBuilding); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		s.createFlow(ctx, cluster, strategy)
	})
	return nil
}

func (s *ClusterService) createFlow(ctx context.Context, cluster *model.Cluster, strategy ClusterStrategy) {
	logger := zerolog.Ctx(ctx)
	ctx, cancel := context.WithTimeout(ctx, s.Cfg.ClusterDeadline)
	defer cancel()

	members, err := s.Instances.ListByClusterID(ctx, cluster.ID)
	if err == nil {
		err = strategy.CreateCluster(ctx, s, cluster, members)
	}
	if err != nil {
		s.failCluster(ctx, cluster, members, entity.ClusterTaskBuildingError, "create cluster", err)
		return
	}
	if err := s.Clusters.SetTask(ctx, cluster.ID, string(entity.ClusterTaskNone)); err != nil {
		logger.Error().Err(err).Str("cluster_id", cluster.ID).Msg("failed to clear cluster task")
	}
	logger.Info().Str("cluster_id", cluster.ID).Msg("cluster created")
}

// failCluster 集群任务失败收口
// 超出时限时所有成员一并打上构建失败哨兵、任务槽清回 NONE
// 单步失败时集群连同出错分片的成员停在哨兵上
func (s *ClusterService) failCluster(ctx context.Context, cluster *model.Cluster, members []*model.Instance,
	sentinel entity.Task, step string, err error) {
	logger := zerolog.Ctx(ctx)
	logger.Error().Err(err).
		Str("cluster_id", cluster.ID).
		Str("step", step).
		Msg("cluster task failed")

	timedOut := errors.Is(err, poller.ErrPollTimeout) || errors.Is(err, context.DeadlineExceeded)
	// 流程时限已经耗尽，收口落库不能再挂在同一个时限上
	ctx = context.WithoutCancel(ctx)
	if timedOut {
		for _, member := range members {
			if terr := s.Instances.SetTask(ctx, member.ID, string(entity.TaskBuildingErrorServer)); terr != nil {
				logger.Error().Err(terr).Str("instance_id", member.ID).Msg("failed to stamp cluster member")
			}
		}
		if terr := s.Clusters.SetTask(ctx, cluster.ID, string(entity.ClusterTaskNone)); terr != nil {
			logger.Error().Err(terr).Str("cluster_id", cluster.ID).Msg("failed to clear cluster task")
		}
	} else {
		// 单步失败：出错分片的成员随集群一起打哨兵
		var sf *shardFailure
		if errors.As(err, &sf) {
			for _, member := range sf.members {
				if terr := s.Instances.SetTask(ctx, member.ID, string(entity.TaskBuildingErrorServer)); terr != nil {
					logger.Error().Err(terr).Str("instance_id", member.ID).Msg("failed to stamp shard member")
				}
			}
		}
		if terr := s.Clusters.SetTask(ctx, cluster.ID, string(sentinel)); terr != nil {
			logger.Error().Err(terr).Str("cluster_id", cluster.ID).Msg("failed to stamp cluster sentinel")
		}
	}
	s.Notifier.Error(ctx, &entity.ErrorEvent{
		EventType:  entity.EventInstanceError,
		ClusterID:  cluster.ID,
		TenantID:   cluster.TenantID,
		Message:    step + ": " + err.Error(),
		OccurredAt: time.Now(),
	})
}

// GrowCluster 把已落库的新成员并入集群
func (s *ClusterService) GrowCluster(ctx context.Context, req *entity.GrowClusterRequest) error {
	cluster, err := s.loadCluster(ctx, req.ClusterID)
	if err != nil {
		return err
	}
	strategy, err := s.strategyFor(ctx, cluster)
	if err != nil {
		return err
	}
	if err := s.admitTask(ctx, cluster.ID, entity.ClusterTaskGrowing); err != nil {
		return err
	}
	newIDs := map[string]bool{}
	for _, id := range req.NewIDs {
		newIDs[id] = true
	}
	s.spawn(ctx, func(ctx context.Context) {
		logger := zerolog.Ctx(ctx)
		ctx, cancel := context.WithTimeout(ctx, s.Cfg.ClusterDeadline)
		defer cancel()

		members, err := s.Instances.ListByClusterID(ctx, cluster.ID)
		if err == nil {
			var existing, added []*model.Instance
			for _, member := range members {
				if newIDs[member.ID] {
					added = append(added, member)
				} else {
					existing = append(existing, member)
				}
			}
			err = strategy.GrowCluster(ctx, s, cluster, existing, added)
		}
		if err != nil {
			s.failCluster(ctx, cluster, members, entity.ClusterTaskGrowingError, "grow cluster", err)
			return
		}
		if err := s.Clusters.SetTask(ctx, cluster.ID, string(entity.ClusterTaskNone)); err != nil {
			logger.Error().Err(err).Str("cluster_id", cluster.ID).Msg("failed to clear cluster task")
		}
	})
	return nil
}

// ShrinkCluster 移除指定成员
// 对目标逐个发起删除，然后轮询到剩余成员与目标集无交集
func (s *ClusterService) ShrinkCluster(ctx context.Context, req *entity.ShrinkClusterRequest) error {
	cluster, err := s.loadCluster(ctx, req.ClusterID)
	if err != nil {
		return err
	}
	if err := s.admitTask(ctx, cluster.ID, entity.ClusterTaskShrinking); err != nil {
		return err
	}
	targets := append([]string(nil), req.IDs...)
	s.spawn(ctx, func(ctx context.Context) {
		logger := zerolog.Ctx(ctx)
		ctx, cancel := context.WithTimeout(ctx, s.Cfg.ClusterDeadline)
		defer cancel()

		if err := s.removeMembers(ctx, cluster, targets); err != nil {
			s.failCluster(ctx, cluster, nil, entity.ClusterTaskShrinkError, "shrink cluster", err)
			return
		}
		if err := s.Clusters.SetTask(ctx, cluster.ID, string(entity.ClusterTaskNone)); err != nil {
			logger.Error().Err(err).Str("cluster_id", cluster.ID).Msg("failed to clear cluster task")
		}
	})
	return nil
}

func (s *ClusterService) removeMembers(ctx context.Context, cluster *model.Cluster, targets []string) error {
	targetSet := map[string]bool{}
	for _, id := range targets {
		targetSet[id] = true
	}
	for _, id := range targets {
		if err := s.instances.Delete(ctx, &entity.InstanceActionRequest{InstanceID: id}); err != nil {
			if errors.Is(err, apierror.ErrNotFound) {
				continue
			}
			return err
		}
	}
	_, err := poller.Poll(ctx, "cluster members removed",
		func(ctx context.Context) ([]*model.Instance, error) {
			return s.Instances.ListByClusterID(ctx, cluster.ID)
		},
		func(members []*model.Instance) bool {
			for _, member := range members {
				if targetSet[member.ID] {
					return false
				}
			}
			return true
		},
		s.Cfg.PollInterval, s.Cfg.ClusterDeadline)
	return err
}

// DeleteCluster 下线整个集群
func (s *ClusterService) DeleteCluster(ctx context.Context, req *entity.ClusterActionRequest) error {
	cluster, err := s.loadCluster(ctx, req.ClusterID)
	if err != nil {
		return err
	}
	if err := s.admitTask(ctx, cluster.ID, entity.ClusterTaskDeleting); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		logger := zerolog.Ctx(ctx)
		ctx, cancel := context.WithTimeout(ctx, s.Cfg.ClusterDeadline)
		defer cancel()

		members, err := s.Instances.ListByClusterID(ctx, cluster.ID)
		if err == nil {
			ids := make([]string, 0, len(members))
			for _, member := range members {
				ids = append(ids, member.ID)
			}
			err = s.removeMembers(ctx, cluster, ids)
		}
		if err != nil {
			s.failCluster(ctx, cluster, members, entity.ClusterTaskDeletingError, "delete cluster", err)
			return
		}
		if err := s.Clusters.Delete(ctx, cluster.ID); err != nil {
			logger.Error().Err(err).Str("cluster_id", cluster.ID).Msg("failed to mark cluster deleted")
		}
	})
	return nil
}

// AddShard 在分片型集群上登记新分片
func (s *ClusterService) AddShard(ctx context.Context, req *entity.AddShardRequest) error {
	cluster, err := s.loadCluster(ctx, req.ClusterID)
	if err != nil {
		return err
	}
	strategy, err := s.strategyFor(ctx, cluster)
	if err != nil {
		return err
	}
	if err := s.admitTask(ctx, cluster.ID, entity.ClusterTaskGrowing); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		logger := zerolog.Ctx(ctx)
		ctx, cancel := context.WithTimeout(ctx, s.Cfg.ClusterDeadline)
		defer cancel()

		members, err := s.Instances.ListByClusterID(ctx, cluster.ID)
		if err == nil {
			var shardMembers []*model.Instance
			for _, member := range members {
				if member.ShardID == req.ShardID {
					shardMembers = append(shardMembers, member)
				}
			}
			err = strategy.AddShard(ctx, s, cluster, shardMembers, req.ReplicaSetName)
		}
		if err != nil {
			s.failCluster(ctx, cluster, members, entity.ClusterTaskGrowingError, "add shard", err)
			return
		}
		if err := s.Clusters.SetTask(ctx, cluster.ID, string(entity.ClusterTaskNone)); err != nil {
			logger.Error().Err(err).Str("cluster_id", cluster.ID).Msg("failed to clear cluster task")
		}
	})
	return nil
}

// waitMembersReady 并行等所有成员的引擎进入 RUNNING/HEALTHY/BUILD_PENDING
func (s *ClusterService) waitMembersReady(ctx context.Context, members []*model.Instance) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, member := range members {
		member := member
		g.Go(func() error {
			_, err := poller.Poll(gctx, "cluster member ready",
				func(ctx context.Context) (entity.ServiceStatus, error) {
					row, err := s.Statuses.GetServiceStatus(ctx, member.ID)
					if err != nil {
						if errors.Is(err, gorm.ErrRecordNotFound) {
							return entity.ServiceStatusNew, nil
						}
						return "", err
					}
					return entity.ServiceStatus(row.Status), nil
				},
				func(status entity.ServiceStatus) bool {
					return status.Ready() || status == entity.ServiceStatusBuildPending
				},
				s.Cfg.PollInterval, s.Cfg.ClusterDeadline)
			return err
		})
	}
	return g.Wait()
}

// refreshMembers 成员就绪后重读行，拿到供给流程落库的地址
func (s *ClusterService) refreshMembers(ctx context.Context, clusterID string) ([]*model.Instance, error) {
	return s.Instances.ListByClusterID(ctx, clusterID)
}

// guestCall 对单个成员的 guest 做一次带超时的调用
func (s *ClusterService) guestCall(ctx context.Context, inst *model.Instance, fn func(ctx context.Context, client guestagent.Client) error) error {
	client, err := s.guest(inst)
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	defer cancel()
	return fn(callCtx, client)
}

// clusterComplete 在每个成员上收尾，所有策略最后都走这里
func (s *ClusterService) clusterComplete(ctx context.Context, members []*model.Instance) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, member := range members {
		member := member
		g.Go(func() error {
			return s.guestCall(gctx, member, func(ctx context.Context, client guestagent.Client) error {
				return client.ClusterComplete(ctx)
			})
		})
	}
	return g.Wait()
}

func memberIPs(members []*model.Instance) []string {
	ips := make([]string, 0, len(members))
	for _, member := range members {
		ips = append(ips, firstAddress(member))
	}
	return ips
}
