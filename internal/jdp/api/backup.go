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

// BackupServiceInterface 定义备份任务引擎的接口
// Create 需要实例引擎做任务准入，所以把它一并传进去
type BackupServiceInterface interface {
	Get(ctx context.Context, id string) (*entity.Backup, error)
	List(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.Backup, string, error)
	ListByInstance(ctx context.Context, instanceID string) ([]*entity.Backup, error)
	Create(ctx context.Context, instances *service.InstanceService, req *entity.BackupActionRequest, name, description, parentID string) (*entity.Backup, error)
	Delete(ctx context.Context, req *entity.BackupActionRequest) error
}

type Backup struct {
	backupService   BackupServiceInterface
	instanceService *service.InstanceService
}

func NewBackup(backupService *service.BackupService, instanceService *service.InstanceService) *Backup {
	return &Backup{
		backupService:   backupService,
		instanceService: instanceService,
	}
}

func (b *Backup) RegisterRoutes(router *gin.RouterGroup) {
	backupRouter := router.Group("/backups")
	backupRouter.POST("/create", ginx.Adapt(b.CreateBackup))
	backupRouter.POST("/delete", ginx.AdaptErr(b.DeleteBackup))
	backupRouter.POST("/show", ginx.Adapt(b.ShowBackup))
	backupRouter.POST("/describe", ginx.Adapt(b.DescribeBackups))
	backupRouter.POST("/describe-by-instance", ginx.Adapt(b.DescribeInstanceBackups))
}

// CreateBackup 落备份行并让 guest 开始上传
// 返回时备份还在 NEW，状态由 guest 的 update_backup 推进
func (b *Backup) CreateBackup(ctx *gin.Context, req *entity.CreateBackupRequest) (*entity.Backup, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("instance_id", req.InstanceID).
		Str("name", req.Name).
		Str("parent_id", req.ParentID).
		Msg("CreateBackup called")

	backup, err := b.backupService.Create(ctx, b.instanceService, &entity.BackupActionRequest{
		InstanceID: req.InstanceID,
		BackupID:   req.BackupID,
	}, req.Name, req.Description, req.ParentID)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to create backup")
		return nil, err
	}

	logger.Info().
		Str("backup_id", backup.ID).
		Msg("Backup started")
	return backup, nil
}

func (b *Backup) DeleteBackup(ctx *gin.Context, req *entity.DescribeBackupRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("backup_id", req.BackupID).
		Msg("DeleteBackup called")

	if err := b.backupService.Delete(ctx, &entity.BackupActionRequest{BackupID: req.BackupID}); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to delete backup")
		return err
	}
	return nil
}

func (b *Backup) ShowBackup(ctx *gin.Context, req *entity.DescribeBackupRequest) (*entity.Backup, error) {
	logger := zerolog.Ctx(ctx)

	backup, err := b.backupService.Get(ctx, req.BackupID)
	if err != nil {
		logger.Error().
			Err(err).
			Str("backup_id", req.BackupID).
			Msg("Failed to show backup")
		return nil, err
	}
	return backup, nil
}

func (b *Backup) DescribeBackups(ctx *gin.Context, req *entity.ListBackupsRequest) (*entity.ListBackupsResponse, error) {
	logger := zerolog.Ctx(ctx)

	backups, marker, err := b.backupService.List(ctx, req.TenantID, repository.ListOptions{
		Limit:          req.Limit,
		Marker:         req.Marker,
		IncludeDeleted: req.IncludeDeleted,
	})
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to describe backups")
		return nil, err
	}
	return &entity.ListBackupsResponse{
		Backups:    backups,
		NextMarker: marker,
	}, nil
}

func (b *Backup) DescribeInstanceBackups(ctx *gin.Context, req *entity.ListInstanceBackupsRequest) (*entity.ListBackupsResponse, error) {
	logger := zerolog.Ctx(ctx)

	backups, err := b.backupService.ListByInstance(ctx, req.InstanceID)
	if err != nil {
		logger.Error().
			Err(err).
			Str("instance_id", req.InstanceID).
			Msg("Failed to list instance backups")
		return nil, err
	}
	return &entity.ListBackupsResponse{Backups: backups}, nil
}
