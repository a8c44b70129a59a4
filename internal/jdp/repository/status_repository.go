package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
)

// StatusRepository 引擎状态与 agent 报活仓库接口
type StatusRepository interface {
	GetServiceStatus(ctx context.Context, instanceID string) (*model.ServiceStatus, error)
	// SetServiceStatus 编排器主动写状态，直接覆盖
	SetServiceStatus(ctx context.Context, instanceID, status string, at time.Time) error
	// AdmitHeartbeat 心跳准入：只接受 sentAt 严格新于已存时间戳的心跳
	AdmitHeartbeat(ctx context.Context, instanceID, status string, sentAt time.Time) (bool, error)
	TouchAgent(ctx context.Context, instanceID, version string, at time.Time) error
	GetAgentHeartbeat(ctx context.Context, instanceID string) (*model.AgentHeartbeat, error)
}

type statusRepository struct {
	db *gorm.DB
}

// NewStatusRepository 创建状态仓库
func NewStatusRepository(db *gorm.DB) StatusRepository {
	return &statusRepository{db: db}
}

// GetServiceStatus 查询实例的引擎状态
func (r *statusRepository) GetServiceStatus(ctx context.Context, instanceID string) (*model.ServiceStatus, error) {
	var status model.ServiceStatus
	if err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&status).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

// SetServiceStatus 编排器主动写状态（任务流程里的 PAUSED、DELETED 等）
func (r *statusRepository) SetServiceStatus(ctx context.Context, instanceID, status string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.ServiceStatus{}).
		Where("instance_id = ?", instanceID).
		Updates(map[string]any{"status": status, "updated_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.db.WithContext(ctx).Create(&model.ServiceStatus{
			InstanceID: instanceID,
			Status:     status,
			UpdatedAt:  at,
		}).Error
	}
	return nil
}

// AdmitHeartbeat 心跳准入
// 条件更新保证 updated_at 单调前进，乱序送达的旧心跳不会回退状态
func (r *statusRepository) AdmitHeartbeat(ctx context.Context, instanceID, status string, sentAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ServiceStatus{}).
		Where("instance_id = ? AND updated_at < ?", instanceID, sentAt).
		Updates(map[string]any{"status": status, "updated_at": sentAt})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	// 没有行被更新：要么是首个心跳，要么是过期心跳
	var existing model.ServiceStatus
	err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.WithContext(ctx).Create(&model.ServiceStatus{
			InstanceID: instanceID,
			Status:     status,
			UpdatedAt:  sentAt,
		}).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// TouchAgent 更新 agent 报活记录
func (r *statusRepository) TouchAgent(ctx context.Context, instanceID, version string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.AgentHeartbeat{}).
		Where("instance_id = ?", instanceID).
		Updates(map[string]any{"guest_agent_version": version, "updated_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.db.WithContext(ctx).Create(&model.AgentHeartbeat{
			InstanceID:        instanceID,
			GuestAgentVersion: version,
			UpdatedAt:         at,
		}).Error
	}
	return nil
}

// GetAgentHeartbeat 查询 agent 最近一次报活
func (r *statusRepository) GetAgentHeartbeat(ctx context.Context, instanceID string) (*model.AgentHeartbeat, error) {
	var hb model.AgentHeartbeat
	if err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&hb).Error; err != nil {
		return nil, err
	}
	return &hb, nil
}
