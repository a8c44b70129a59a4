package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/idgen"
)

// QuotaRepository 配额仓库接口
// Reserve/Commit/Rollback 各自在一个事务里完成
type QuotaRepository interface {
	GetQuota(ctx context.Context, tenantID, resource string) (*model.Quota, error)
	SetLimit(ctx context.Context, tenantID, resource string, hardLimit int) error
	// Reserve 为一组资源增量建立挂起预留，超限时整体失败
	Reserve(ctx context.Context, tenantID string, deltas map[string]int) ([]string, error)
	// Commit 把预留转入 in_use 并删除预留行
	Commit(ctx context.Context, reservationIDs []string) error
	// Rollback 撤销预留
	Rollback(ctx context.Context, reservationIDs []string) error
}

type quotaRepository struct {
	db *gorm.DB
	// DefaultLimits 租户没有显式配额行时的缺省上限
	defaults map[string]int
}

// NewQuotaRepository 创建配额仓库
func NewQuotaRepository(db *gorm.DB, defaults map[string]int) QuotaRepository {
	return &quotaRepository{db: db, defaults: defaults}
}

// GetQuota 查询配额行，不存在时按缺省上限虚拟一行
func (r *quotaRepository) GetQuota(ctx context.Context, tenantID, resource string) (*model.Quota, error) {
	quota, err := r.getOrCreate(r.db.WithContext(ctx), tenantID, resource)
	if err != nil {
		return nil, err
	}
	return quota, nil
}

// SetLimit 管理端调整配额上限
func (r *quotaRepository) SetLimit(ctx context.Context, tenantID, resource string, hardLimit int) error {
	quota, err := r.getOrCreate(r.db.WithContext(ctx), tenantID, resource)
	if err != nil {
		return err
	}
	quota.HardLimit = hardLimit
	quota.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(quota).Error
}

func (r *quotaRepository) getOrCreate(tx *gorm.DB, tenantID, resource string) (*model.Quota, error) {
	var quota model.Quota
	err := tx.Where("tenant_id = ? AND resource = ?", tenantID, resource).First(&quota).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		now := time.Now().UTC()
		quota = model.Quota{
			TenantID:  tenantID,
			Resource:  resource,
			HardLimit: r.defaults[resource],
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&quota).Error; err != nil {
			return nil, err
		}
		return &quota, nil
	}
	if err != nil {
		return nil, err
	}
	return &quota, nil
}

// Reserve 建立挂起预留
// 负增量总是可接纳；任一资源超限则整组失败并列出越界资源
func (r *quotaRepository) Reserve(ctx context.Context, tenantID string, deltas map[string]int) ([]string, error) {
	var ids []string
	var exceeded []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 固定遍历顺序，避免并发预留相互死锁
		resources := make([]string, 0, len(deltas))
		for resource := range deltas {
			resources = append(resources, resource)
		}
		sort.Strings(resources)

		for _, resource := range resources {
			delta := deltas[resource]
			quota, err := r.getOrCreate(tx, tenantID, resource)
			if err != nil {
				return err
			}
			if delta > 0 && quota.InUse+quota.Reserved+delta > quota.HardLimit {
				exceeded = append(exceeded, resource)
				continue
			}
			quota.Reserved += delta
			quota.UpdatedAt = time.Now().UTC()
			if err := tx.Save(quota).Error; err != nil {
				return err
			}

			reservationID, err := idgen.GenerateReservationID()
			if err != nil {
				return err
			}
			reservation := &model.Reservation{
				ID:        reservationID,
				TenantID:  tenantID,
				Resource:  resource,
				Delta:     delta,
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.Create(reservation).Error; err != nil {
				return err
			}
			ids = append(ids, reservation.ID)
		}

		if len(exceeded) > 0 {
			return apierror.Wrapf(apierror.ErrQuotaExceeded, nil,
				"quota exceeded for resources %v", exceeded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Commit 把预留转入 in_use
func (r *quotaRepository) Commit(ctx context.Context, reservationIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range reservationIDs {
			var reservation model.Reservation
			if err := tx.Where("id = ?", id).First(&reservation).Error; err != nil {
				return fmt.Errorf("load reservation %s: %w", id, err)
			}
			if err := tx.Model(&model.Quota{}).
				Where("tenant_id = ? AND resource = ?", reservation.TenantID, reservation.Resource).
				Updates(map[string]any{
					"in_use":     gorm.Expr("in_use + ?", reservation.Delta),
					"reserved":   gorm.Expr("reserved - ?", reservation.Delta),
					"updated_at": time.Now().UTC(),
				}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&reservation).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Rollback 撤销预留
func (r *quotaRepository) Rollback(ctx context.Context, reservationIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range reservationIDs {
			var reservation model.Reservation
			if err := tx.Where("id = ?", id).First(&reservation).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return fmt.Errorf("load reservation %s: %w", id, err)
			}
			if err := tx.Model(&model.Quota{}).
				Where("tenant_id = ? AND resource = ?", reservation.TenantID, reservation.Resource).
				Updates(map[string]any{
					"reserved":   gorm.Expr("reserved - ?", reservation.Delta),
					"updated_at": time.Now().UTC(),
				}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&reservation).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
