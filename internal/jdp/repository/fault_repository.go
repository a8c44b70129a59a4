package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
)

// FaultRepository 故障记录仓库接口
// 每个实例只保留最近一次故障
type FaultRepository interface {
	Record(ctx context.Context, instanceID, message, details string) error
	GetByInstanceID(ctx context.Context, instanceID string) (*model.Fault, error)
	Clear(ctx context.Context, instanceID string) error
}

type faultRepository struct {
	db *gorm.DB
}

// NewFaultRepository 创建故障记录仓库
func NewFaultRepository(db *gorm.DB) FaultRepository {
	return &faultRepository{db: db}
}

// Record 记录故障，覆盖同实例的旧记录
func (r *faultRepository) Record(ctx context.Context, instanceID, message, details string) error {
	fault := &model.Fault{
		InstanceID: instanceID,
		Message:    message,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).Model(&model.Fault{}).
		Where("instance_id = ?", instanceID).
		Updates(map[string]any{
			"message":    message,
			"details":    details,
			"created_at": fault.CreatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.db.WithContext(ctx).Create(fault).Error
	}
	return nil
}

// GetByInstanceID 查询实例的最近故障
func (r *faultRepository) GetByInstanceID(ctx context.Context, instanceID string) (*model.Fault, error) {
	var fault model.Fault
	if err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&fault).Error; err != nil {
		return nil, err
	}
	return &fault, nil
}

// Clear 清除实例的故障记录
func (r *faultRepository) Clear(ctx context.Context, instanceID string) error {
	return r.db.WithContext(ctx).Delete(&model.Fault{}, "instance_id = ?", instanceID).Error
}
