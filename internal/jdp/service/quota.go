package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/internal/jdp/repository"
)

// RunWithQuotas 以配额预留包住一次动作
// 动作成功则提交预留，失败则回滚，保证配额增量净值为零
func RunWithQuotas(ctx context.Context, quotas repository.QuotaRepository, tenantID string, deltas map[string]int, action func() error) error {
	reservationIDs, err := quotas.Reserve(ctx, tenantID, deltas)
	if err != nil {
		return err
	}
	if err := action(); err != nil {
		if rbErr := quotas.Rollback(ctx, reservationIDs); rbErr != nil {
			zerolog.Ctx(ctx).Error().Err(rbErr).
				Str("tenant_id", tenantID).
				Msg("failed to rollback quota reservations")
		}
		return err
	}
	return quotas.Commit(ctx, reservationIDs)
}
