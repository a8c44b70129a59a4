package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
)

// BackupRepository 备份仓库接口
type BackupRepository interface {
	Create(ctx context.Context, backup *model.Backup) error
	GetByID(ctx context.Context, id string) (*model.Backup, error)
	List(ctx context.Context, filters map[string]any, opts ListOptions) ([]*model.Backup, string, error)
	ListByInstanceID(ctx context.Context, instanceID string) ([]*model.Backup, error)
	Update(ctx context.Context, backup *model.Backup) error
	// AdvanceState 按 sent_at 单调推进备份状态，过期心跳返回 false
	AdvanceState(ctx context.Context, id string, fields map[string]any, sentAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type backupRepository struct {
	db *gorm.DB
}

// NewBackupRepository 创建备份仓库
func NewBackupRepository(db *gorm.DB) BackupRepository {
	return &backupRepository{db: db}
}

// Create 创建备份行
func (r *backupRepository) Create(ctx context.Context, backup *model.Backup) error {
	return r.db.WithContext(ctx).Create(backup).Error
}

// GetByID 根据 ID 获取备份
func (r *backupRepository) GetByID(ctx context.Context, id string) (*model.Backup, error) {
	var backup model.Backup
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&backup).Error; err != nil {
		return nil, err
	}
	return &backup, nil
}

// List 分页列出备份
func (r *backupRepository) List(ctx context.Context, filters map[string]any, opts ListOptions) ([]*model.Backup, string, error) {
	query := r.db.WithContext(ctx).Model(&model.Backup{})
	if opts.IncludeDeleted {
		query = query.Unscoped()
	}
	if tenantID, ok := filters["tenant_id"]; ok {
		query = query.Where("tenant_id = ?", tenantID)
	}
	if instanceID, ok := filters["instance_id"]; ok {
		query = query.Where("instance_id = ?", instanceID)
	}
	if state, ok := filters["state"]; ok {
		query = query.Where("state = ?", state)
	}

	query, limit, offset := applyPage(query, opts)

	var backups []*model.Backup
	if err := query.Find(&backups).Error; err != nil {
		return nil, "", err
	}
	return backups, nextMarker(len(backups), limit, offset), nil
}

// ListByInstanceID 列出实例的全部备份
func (r *backupRepository) ListByInstanceID(ctx context.Context, instanceID string) ([]*model.Backup, error) {
	var backups []*model.Backup
	if err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("created_at desc").
		Find(&backups).Error; err != nil {
		return nil, err
	}
	return backups, nil
}

// Update 更新备份行
func (r *backupRepository) Update(ctx context.Context, backup *model.Backup) error {
	return r.db.WithContext(ctx).Save(backup).Error
}

// AdvanceState 只在 sent_at 比已存的 updated_at 新时应用字段
// 迟到的 update_backup 心跳不能回退状态
func (r *backupRepository) AdvanceState(ctx context.Context, id string, fields map[string]any, sentAt time.Time) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = sentAt

	result := r.db.WithContext(ctx).Model(&model.Backup{}).
		Where("id = ? AND updated_at < ?", id, sentAt).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete 软删除备份行
func (r *backupRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Backup{}, "id = ?", id).Error
}
