package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
)

// ClusterRepository 集群仓库接口
type ClusterRepository interface {
	Create(ctx context.Context, cluster *model.Cluster) error
	GetByID(ctx context.Context, id string) (*model.Cluster, error)
	List(ctx context.Context, filters map[string]any, opts ListOptions) ([]*model.Cluster, string, error)
	Update(ctx context.Context, cluster *model.Cluster) error
	CompareAndSetTask(ctx context.Context, id string, expect, next string) (bool, error)
	SetTask(ctx context.Context, id string, task string) error
	Delete(ctx context.Context, id string) error
}

type clusterRepository struct {
	db *gorm.DB
}

// NewClusterRepository 创建集群仓库
func NewClusterRepository(db *gorm.DB) ClusterRepository {
	return &clusterRepository{db: db}
}

// Create 创建集群行
func (r *clusterRepository) Create(ctx context.Context, cluster *model.Cluster) error {
	return r.db.WithContext(ctx).Create(cluster).Error
}

// GetByID 根据 ID 获取集群
func (r *clusterRepository) GetByID(ctx context.Context, id string) (*model.Cluster, error) {
	var cluster model.Cluster
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&cluster).Error; err != nil {
		return nil, err
	}
	return &cluster, nil
}

// List 分页列出集群
func (r *clusterRepository) List(ctx context.Context, filters map[string]any, opts ListOptions) ([]*model.Cluster, string, error) {
	query := r.db.WithContext(ctx).Model(&model.Cluster{})
	if opts.IncludeDeleted {
		query = query.Unscoped()
	}
	if tenantID, ok := filters["tenant_id"]; ok {
		query = query.Where("tenant_id = ?", tenantID)
	}

	query, limit, offset := applyPage(query, opts)

	var clusters []*model.Cluster
	if err := query.Find(&clusters).Error; err != nil {
		return nil, "", err
	}
	return clusters, nextMarker(len(clusters), limit, offset), nil
}

// Update 更新集群行
func (r *clusterRepository) Update(ctx context.Context, cluster *model.Cluster) error {
	return r.db.WithContext(ctx).Save(cluster).Error
}

// CompareAndSetTask 只有当前任务是 expect 时才切到 next
func (r *clusterRepository) CompareAndSetTask(ctx context.Context, id string, expect, next string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Cluster{}).
		Where("id = ? AND task = ?", id, expect).
		Updates(map[string]any{"task": next, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetTask 无条件写任务指令
func (r *clusterRepository) SetTask(ctx context.Context, id string, task string) error {
	return r.db.WithContext(ctx).Model(&model.Cluster{}).
		Where("id = ?", id).
		Updates(map[string]any{"task": task, "updated_at": time.Now().UTC()}).Error
}

// Delete 软删除集群行
func (r *clusterRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Cluster{}, "id = ?", id).Error
}
