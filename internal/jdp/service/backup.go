package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/fabric"
	"github.com/jimyag/jdp/pkg/idgen"
)

// BackupService 备份任务引擎
// 备份数据由 guest 直接上传对象存储，这里只管元数据和删除清理
type BackupService struct {
	*Deps
}

// NewBackupService 创建备份任务引擎
func NewBackupService(deps *Deps) *BackupService {
	return &BackupService{Deps: deps}
}

// loadBackup 加载备份行，不存在时返回 NotFound
func (s *BackupService) loadBackup(ctx context.Context, id string) (*model.Backup, error) {
	backup, err := s.Backups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.Wrapf(apierror.ErrNotFound, err, "backup %s not found", id)
		}
		return nil, err
	}
	return backup, nil
}

// Get 返回单个备份
func (s *BackupService) Get(ctx context.Context, id string) (*entity.Backup, error) {
	backup, err := s.loadBackup(ctx, id)
	if err != nil {
		return nil, err
	}
	return backupModelToEntity(backup)
}

// List 分页列出租户备份
func (s *BackupService) List(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.Backup, string, error) {
	filters := map[string]any{}
	if tenantID != "" {
		filters["tenant_id"] = tenantID
	}
	rows, marker, err := s.Backups.List(ctx, filters, opts)
	if err != nil {
		return nil, "", err
	}
	backups := make([]*entity.Backup, 0, len(rows))
	for _, row := range rows {
		b, err := backupModelToEntity(row)
		if err != nil {
			return nil, "", err
		}
		backups = append(backups, b)
	}
	return backups, marker, nil
}

// ListByInstance 列出实例的全部备份，最新在前
func (s *BackupService) ListByInstance(ctx context.Context, instanceID string) ([]*entity.Backup, error) {
	rows, err := s.Backups.ListByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	backups := make([]*entity.Backup, 0, len(rows))
	for _, row := range rows {
		b, err := backupModelToEntity(row)
		if err != nil {
			return nil, err
		}
		backups = append(backups, b)
	}
	return backups, nil
}

// Create 发起备份
// 行先落 NEW，后续状态由 guest 的 update_backup 心跳推进
func (s *BackupService) Create(ctx context.Context, instances *InstanceService, req *entity.BackupActionRequest, name, description, parentID string) (*entity.Backup, error) {
	inst, err := instances.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}
	if err := instances.admitTask(ctx, inst.ID, entity.TaskBackingUp); err != nil {
		return nil, err
	}

	backupID := req.BackupID
	if backupID == "" {
		backupID, err = idgen.GenerateBackupID()
		if err != nil {
			return nil, apierror.Wrapf(apierror.ErrInternalError, err, "generate backup id")
		}
	}
	backupType := entity.BackupTypeFull
	if parentID != "" {
		backupType = entity.BackupTypeIncremental
	}

	var backup *model.Backup
	err = RunWithQuotas(ctx, s.Quotas, inst.TenantID, map[string]int{entity.ResourceBackups: 1}, func() error {
		now := time.Now()
		backup = &model.Backup{
			ID:                 backupID,
			TenantID:           inst.TenantID,
			InstanceID:         inst.ID,
			ParentID:           parentID,
			Name:               name,
			Description:        description,
			State:              string(entity.BackupStateNew),
			BackupType:         backupType,
			DatastoreVersionID: inst.DatastoreVersionID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return s.Backups.Create(ctx, backup)
	})
	if err != nil {
		if terr := s.Instances.SetTask(ctx, inst.ID, string(entity.TaskNone)); terr != nil {
			zerolog.Ctx(ctx).Error().Err(terr).Str("instance_id", inst.ID).Msg("failed to clear task")
		}
		return nil, err
	}

	s.spawn(ctx, func(ctx context.Context) {
		s.createFlow(ctx, inst, backup)
	})
	return backupModelToEntity(backup)
}

// createFlow 让 guest dump 并上传，任务槽在指令送达后即释放
func (s *BackupService) createFlow(ctx context.Context, inst *model.Instance, backup *model.Backup) {
	logger := zerolog.Ctx(ctx)
	defer func() {
		if err := s.Instances.SetTask(ctx, inst.ID, string(entity.TaskNone)); err != nil {
			logger.Error().Err(err).Str("instance_id", inst.ID).Msg("failed to clear task")
		}
	}()

	client, err := s.guest(inst)
	if err == nil {
		callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
		err = client.CreateBackup(callCtx, backup.ID)
		cancel()
	}
	if err != nil {
		logger.Error().Err(err).
			Str("instance_id", inst.ID).
			Str("backup_id", backup.ID).
			Msg("guest create_backup failed")
		backup.State = string(entity.BackupStateFailed)
		backup.UpdatedAt = time.Now()
		if uerr := s.Backups.Update(ctx, backup); uerr != nil {
			logger.Error().Err(uerr).Str("backup_id", backup.ID).Msg("failed to mark backup failed")
		}
		s.recordFault(ctx, inst.ID, "guest create_backup", err)
	}
}

// Delete 删除备份
// 对象存储里的 manifest 指向 N 个 segment，先清 segment 再删 manifest
func (s *BackupService) Delete(ctx context.Context, req *entity.BackupActionRequest) error {
	backup, err := s.loadBackup(ctx, req.BackupID)
	if err != nil {
		return err
	}
	be, err := backupModelToEntity(backup)
	if err != nil {
		return err
	}
	if be.IsRunning() {
		return apierror.Wrapf(apierror.ErrUnprocessable, nil, "backup %s is still running", backup.ID)
	}

	reservationIDs, err := s.Quotas.Reserve(ctx, backup.TenantID, map[string]int{entity.ResourceBackups: -1})
	if err != nil {
		return err
	}

	if err := s.sweepObjects(ctx, be); err != nil {
		s.rollback(ctx, backup.TenantID, reservationIDs)
		backup.State = string(entity.BackupStateDeleteFailed)
		backup.UpdatedAt = time.Now()
		if uerr := s.Backups.Update(ctx, backup); uerr != nil {
			zerolog.Ctx(ctx).Error().Err(uerr).Str("backup_id", backup.ID).Msg("failed to mark backup delete_failed")
		}
		return err
	}

	if err := s.Backups.Delete(ctx, backup.ID); err != nil {
		s.rollback(ctx, backup.TenantID, reservationIDs)
		return err
	}
	return s.Quotas.Commit(ctx, reservationIDs)
}

func (s *BackupService) rollback(ctx context.Context, tenantID string, reservationIDs []string) {
	if err := s.Quotas.Rollback(ctx, reservationIDs); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID).Msg("failed to rollback quota reservations")
	}
}

// sweepObjects 清理备份在对象存储里的数据
// 对象已经不存在视为清理完成
func (s *BackupService) sweepObjects(ctx context.Context, backup *entity.Backup) error {
	filename := backup.Filename()
	if filename == "" {
		return nil
	}
	container := s.Cfg.BackupContainer

	info, err := s.Objects.HeadObject(ctx, container, filename)
	if err != nil {
		if fabric.IsNotFound(err) {
			return nil
		}
		return err
	}

	if segContainer, prefix, ok := fabric.ManifestTarget(info); ok {
		segments, err := s.Objects.GetContainer(ctx, segContainer, prefix)
		if err != nil {
			return err
		}
		for _, segment := range segments {
			if err := s.Objects.DeleteObject(ctx, segContainer, segment.Key); err != nil && !fabric.IsNotFound(err) {
				return err
			}
		}
	}
	if err := s.Objects.DeleteObject(ctx, container, filename); err != nil && !fabric.IsNotFound(err) {
		return err
	}
	return nil
}
