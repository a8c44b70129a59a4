package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
)

// ConfigurationRepository 参数覆盖组仓库接口
type ConfigurationRepository interface {
	Create(ctx context.Context, group *model.ConfigurationGroup) error
	GetByID(ctx context.Context, id string) (*model.ConfigurationGroup, error)
	List(ctx context.Context, tenantID string, opts ListOptions) ([]*model.ConfigurationGroup, string, error)
	Update(ctx context.Context, group *model.ConfigurationGroup) error
	Delete(ctx context.Context, id string) error

	ListParameters(ctx context.Context, datastoreVersionID string) ([]*model.ConfigurationParameter, error)
	SaveParameter(ctx context.Context, param *model.ConfigurationParameter) error
}

type configurationRepository struct {
	db *gorm.DB
}

// NewConfigurationRepository 创建参数覆盖组仓库
func NewConfigurationRepository(db *gorm.DB) ConfigurationRepository {
	return &configurationRepository{db: db}
}

func (r *configurationRepository) Create(ctx context.Context, group *model.ConfigurationGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *configurationRepository) GetByID(ctx context.Context, id string) (*model.ConfigurationGroup, error) {
	var group model.ConfigurationGroup
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *configurationRepository) List(ctx context.Context, tenantID string, opts ListOptions) ([]*model.ConfigurationGroup, string, error) {
	query := r.db.WithContext(ctx).Model(&model.ConfigurationGroup{}).
		Where("tenant_id = ?", tenantID)
	query, limit, offset := applyPage(query, opts)

	var groups []*model.ConfigurationGroup
	if err := query.Find(&groups).Error; err != nil {
		return nil, "", err
	}
	return groups, nextMarker(len(groups), limit, offset), nil
}

func (r *configurationRepository) Update(ctx context.Context, group *model.ConfigurationGroup) error {
	return r.db.WithContext(ctx).Save(group).Error
}

func (r *configurationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.ConfigurationGroup{}, "id = ?", id).Error
}

func (r *configurationRepository) ListParameters(ctx context.Context, datastoreVersionID string) ([]*model.ConfigurationParameter, error) {
	var params []*model.ConfigurationParameter
	if err := r.db.WithContext(ctx).
		Where("datastore_version_id = ?", datastoreVersionID).
		Order("name asc").
		Find(&params).Error; err != nil {
		return nil, err
	}
	return params, nil
}

func (r *configurationRepository) SaveParameter(ctx context.Context, param *model.ConfigurationParameter) error {
	return r.db.WithContext(ctx).Save(param).Error
}
