package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
)

// InstanceRepository 实例仓库接口
type InstanceRepository interface {
	Create(ctx context.Context, instance *model.Instance) error
	GetByID(ctx context.Context, id string) (*model.Instance, error)
	List(ctx context.Context, filters map[string]any, opts ListOptions) ([]*model.Instance, string, error)
	ListByClusterID(ctx context.Context, clusterID string) ([]*model.Instance, error)
	ListReplicasOf(ctx context.Context, masterID string) ([]*model.Instance, error)
	Update(ctx context.Context, instance *model.Instance) error
	// CompareAndSetTask 只有当前任务是 expect 时才切到 next，返回是否成功
	CompareAndSetTask(ctx context.Context, id string, expect, next string) (bool, error)
	SetTask(ctx context.Context, id string, task string) error
	Delete(ctx context.Context, id string) error
	// RecordRootEnabled 记录管理账号开通，重复开通只保留首条
	RecordRootEnabled(ctx context.Context, instanceID, user string) error
	GetRootHistory(ctx context.Context, instanceID string) (*model.RootHistory, error)
}

type instanceRepository struct {
	db *gorm.DB
}

// NewInstanceRepository 创建实例仓库
func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &instanceRepository{db: db}
}

// Create 创建实例行
func (r *instanceRepository) Create(ctx context.Context, instance *model.Instance) error {
	return r.db.WithContext(ctx).Create(instance).Error
}

// GetByID 根据 ID 获取实例（自动过滤已删除）
func (r *instanceRepository) GetByID(ctx context.Context, id string) (*model.Instance, error) {
	var instance model.Instance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// List 分页列出实例
func (r *instanceRepository) List(ctx context.Context, filters map[string]any, opts ListOptions) ([]*model.Instance, string, error) {
	query := r.db.WithContext(ctx).Model(&model.Instance{})
	if opts.IncludeDeleted {
		query = query.Unscoped()
	}

	if tenantID, ok := filters["tenant_id"]; ok {
		query = query.Where("tenant_id = ?", tenantID)
	}
	if task, ok := filters["task"]; ok {
		query = query.Where("task = ?", task)
	}
	if clusterID, ok := filters["cluster_id"]; ok {
		query = query.Where("cluster_id = ?", clusterID)
	}
	if dsvID, ok := filters["datastore_version_id"]; ok {
		query = query.Where("datastore_version_id = ?", dsvID)
	}

	query, limit, offset := applyPage(query, opts)

	var instances []*model.Instance
	if err := query.Find(&instances).Error; err != nil {
		return nil, "", err
	}
	return instances, nextMarker(len(instances), limit, offset), nil
}

// ListByClusterID 列出集群的全部成员
func (r *instanceRepository) ListByClusterID(ctx context.Context, clusterID string) ([]*model.Instance, error) {
	var instances []*model.Instance
	if err := r.db.WithContext(ctx).
		Where("cluster_id = ?", clusterID).
		Order("created_at asc").
		Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// ListReplicasOf 列出挂在某主库上的存活副本
func (r *instanceRepository) ListReplicasOf(ctx context.Context, masterID string) ([]*model.Instance, error) {
	var instances []*model.Instance
	if err := r.db.WithContext(ctx).
		Where("slave_of_id = ?", masterID).
		Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// Update 更新实例行
func (r *instanceRepository) Update(ctx context.Context, instance *model.Instance) error {
	return r.db.WithContext(ctx).Save(instance).Error
}

// CompareAndSetTask 任务指令的准入原语
// task != NONE 的行拒绝新指令，靠这里的条件更新保证同实例同时只有一个任务
func (r *instanceRepository) CompareAndSetTask(ctx context.Context, id string, expect, next string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Instance{}).
		Where("id = ? AND task = ?", id, expect).
		Updates(map[string]any{"task": next, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetTask 无条件写任务指令（任务收尾和错误哨兵用）
func (r *instanceRepository) SetTask(ctx context.Context, id string, task string) error {
	return r.db.WithContext(ctx).Model(&model.Instance{}).
		Where("id = ?", id).
		Updates(map[string]any{"task": task, "updated_at": time.Now().UTC()}).Error
}

// RecordRootEnabled 记录管理账号开通
func (r *instanceRepository) RecordRootEnabled(ctx context.Context, instanceID, user string) error {
	row := &model.RootHistory{
		InstanceID: instanceID,
		User:       user,
		CreatedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

// GetRootHistory 查询实例的管理账号开通记录
func (r *instanceRepository) GetRootHistory(ctx context.Context, instanceID string) (*model.RootHistory, error) {
	var row model.RootHistory
	if err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete 软删除实例行
func (r *instanceRepository) Delete(ctx context.Context, id string) error {
	// 删除时清掉 datastore 版本引用，允许版本退役
	if err := r.db.WithContext(ctx).Model(&model.Instance{}).
		Where("id = ?", id).
		Update("datastore_version_id", "").Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&model.Instance{}, "id = ?", id).Error
}
