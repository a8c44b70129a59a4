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

// InstanceServiceInterface 定义实例任务引擎的接口
type InstanceServiceInterface interface {
	Get(ctx context.Context, id string) (*entity.InstanceView, error)
	List(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.InstanceView, string, error)
	Create(ctx context.Context, req *entity.CreateInstanceRequest) error
	Delete(ctx context.Context, req *entity.InstanceActionRequest) error
	Reboot(ctx context.Context, req *entity.InstanceActionRequest) error
	Restart(ctx context.Context, req *entity.InstanceActionRequest) error
	ResizeFlavor(ctx context.Context, req *entity.ResizeFlavorRequest) error
	ResizeVolume(ctx context.Context, req *entity.ResizeVolumeRequest) error
	Migrate(ctx context.Context, req *entity.MigrateRequest) error
	Upgrade(ctx context.Context, req *entity.UpgradeRequest) error
	Promote(ctx context.Context, req *entity.PromoteRequest) error
	Eject(ctx context.Context, req *entity.EjectRequest) error
	Detach(ctx context.Context, req *entity.DetachReplicaRequest) error
}

type Instance struct {
	instanceService InstanceServiceInterface
}

func NewInstance(instanceService *service.InstanceService) *Instance {
	return &Instance{
		instanceService: instanceService,
	}
}

func (i *Instance) RegisterRoutes(router *gin.RouterGroup) {
	instanceRouter := router.Group("/instances")
	instanceRouter.POST("/create", ginx.AdaptCast(i.CreateInstance))
	instanceRouter.POST("/delete", ginx.AdaptCast(i.DeleteInstance))
	instanceRouter.POST("/reboot", ginx.AdaptCast(i.RebootInstance))
	instanceRouter.POST("/restart", ginx.AdaptCast(i.RestartInstance))
	instanceRouter.POST("/resize-flavor", ginx.AdaptCast(i.ResizeFlavor))
	instanceRouter.POST("/resize-volume", ginx.AdaptCast(i.ResizeVolume))
	instanceRouter.POST("/migrate", ginx.AdaptCast(i.MigrateInstance))
	instanceRouter.POST("/upgrade", ginx.AdaptCast(i.UpgradeInstance))
	instanceRouter.POST("/promote", ginx.AdaptCast(i.PromoteReplica))
	instanceRouter.POST("/eject", ginx.AdaptCast(i.EjectMaster))
	instanceRouter.POST("/detach", ginx.AdaptCast(i.DetachReplica))
	instanceRouter.POST("/show", ginx.Adapt(i.ShowInstance))
	instanceRouter.POST("/describe", ginx.Adapt(i.DescribeInstances))
}

func (i *Instance) CreateInstance(ctx *gin.Context, req *entity.CreateInstanceRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("tenant_id", req.TenantID).
		Str("name", req.Name).
		Str("datastore_version_id", req.DatastoreVersionID).
		Msg("CreateInstance called")

	if err := i.instanceService.Create(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to create instance")
		return err
	}
	return nil
}

func (i *Instance) DeleteInstance(ctx *gin.Context, req *entity.InstanceActionRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Msg("DeleteInstance called")

	if err := i.instanceService.Delete(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to delete instance")
		return err
	}
	return nil
}

func (i *Instance) RebootInstance(ctx *gin.Context, req *entity.InstanceActionRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Msg("RebootInstance called")

	if err := i.instanceService.Reboot(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to reboot instance")
		return err
	}
	return nil
}

func (i *Instance) RestartInstance(ctx *gin.Context, req *entity.InstanceActionRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Msg("RestartInstance called")

	if err := i.instanceService.Restart(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to restart instance")
		return err
	}
	return nil
}

func (i *Instance) ResizeFlavor(ctx *gin.Context, req *entity.ResizeFlavorRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Str("old_flavor_id", req.OldFlavorID).
		Str("new_flavor_id", req.NewFlavorID).
		Msg("ResizeFlavor called")

	if err := i.instanceService.ResizeFlavor(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to resize flavor")
		return err
	}
	return nil
}

func (i *Instance) ResizeVolume(ctx *gin.Context, req *entity.ResizeVolumeRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Int("new_size", req.NewSize).
		Msg("ResizeVolume called")

	if err := i.instanceService.ResizeVolume(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to resize volume")
		return err
	}
	return nil
}

func (i *Instance) MigrateInstance(ctx *gin.Context, req *entity.MigrateRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Str("host", req.Host).
		Msg("MigrateInstance called")

	if err := i.instanceService.Migrate(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to migrate instance")
		return err
	}
	return nil
}

func (i *Instance) UpgradeInstance(ctx *gin.Context, req *entity.UpgradeRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Str("datastore_version_id", req.DatastoreVersionID).
		Msg("UpgradeInstance called")

	if err := i.instanceService.Upgrade(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to upgrade instance")
		return err
	}
	return nil
}

func (i *Instance) PromoteReplica(ctx *gin.Context, req *entity.PromoteRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Msg("PromoteReplica called")

	if err := i.instanceService.Promote(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to promote replica")
		return err
	}
	return nil
}

func (i *Instance) EjectMaster(ctx *gin.Context, req *entity.EjectRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Msg("EjectMaster called")

	if err := i.instanceService.Eject(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to eject master")
		return err
	}
	return nil
}

func (i *Instance) DetachReplica(ctx *gin.Context, req *entity.DetachReplicaRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Msg("DetachReplica called")

	if err := i.instanceService.Detach(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to detach replica")
		return err
	}
	return nil
}

func (i *Instance) ShowInstance(ctx *gin.Context, req *entity.DescribeInstanceRequest) (*entity.InstanceView, error) {
	logger := zerolog.Ctx(ctx)

	view, err := i.instanceService.Get(ctx, req.InstanceID)
	if err != nil {
		logger.Error().
			Err(err).
			Str("instance_id", req.InstanceID).
			Msg("Failed to show instance")
		return nil, err
	}
	return view, nil
}

func (i *Instance) DescribeInstances(ctx *gin.Context, req *entity.ListInstancesRequest) (*entity.ListInstancesResponse, error) {
	logger := zerolog.Ctx(ctx)

	instances, marker, err := i.instanceService.List(ctx, req.TenantID, repository.ListOptions{
		Limit:          req.Limit,
		Marker:         req.Marker,
		IncludeDeleted: req.IncludeDeleted,
	})
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to describe instances")
		return nil, err
	}
	return &entity.ListInstancesResponse{
		Instances:  instances,
		NextMarker: marker,
	}, nil
}
