package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/pkg/apierror"
)

func TestRunWithQuotas(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	quotas := env.deps.Quotas
	ctx := context.Background()

	usage := func(resource string) (inUse, reserved int) {
		quota, err := quotas.GetQuota(ctx, "tenant-1", resource)
		require.NoError(t, err)
		return quota.InUse, quota.Reserved
	}

	t.Run("动作成功后预留转入 in_use", func(t *testing.T) {
		err := RunWithQuotas(ctx, quotas, "tenant-1",
			map[string]int{entity.ResourceInstances: 1, entity.ResourceVolumes: 10},
			func() error { return nil })
		require.NoError(t, err)

		inUse, reserved := usage(entity.ResourceInstances)
		assert.Equal(t, 1, inUse)
		assert.Equal(t, 0, reserved)
		inUse, reserved = usage(entity.ResourceVolumes)
		assert.Equal(t, 10, inUse)
		assert.Equal(t, 0, reserved)
	})

	t.Run("动作失败后预留整体回滚", func(t *testing.T) {
		boom := errors.New("row write failed")
		err := RunWithQuotas(ctx, quotas, "tenant-1",
			map[string]int{entity.ResourceInstances: 1, entity.ResourceVolumes: 10},
			func() error { return boom })
		assert.ErrorIs(t, err, boom)

		// 净额不变
		inUse, reserved := usage(entity.ResourceInstances)
		assert.Equal(t, 1, inUse)
		assert.Equal(t, 0, reserved)
		inUse, reserved = usage(entity.ResourceVolumes)
		assert.Equal(t, 10, inUse)
		assert.Equal(t, 0, reserved)
	})

	t.Run("超限时动作不执行", func(t *testing.T) {
		ran := false
		err := RunWithQuotas(ctx, quotas, "tenant-1",
			map[string]int{entity.ResourceVolumes: 31},
			func() error { ran = true; return nil })
		assert.ErrorIs(t, err, apierror.ErrQuotaExceeded)
		assert.False(t, ran)

		inUse, reserved := usage(entity.ResourceVolumes)
		assert.Equal(t, 10, inUse)
		assert.Equal(t, 0, reserved)
	})

	t.Run("负增量放行并在承诺时扣减", func(t *testing.T) {
		err := RunWithQuotas(ctx, quotas, "tenant-1",
			map[string]int{entity.ResourceInstances: -1, entity.ResourceVolumes: -10},
			func() error { return nil })
		require.NoError(t, err)

		inUse, reserved := usage(entity.ResourceInstances)
		assert.Equal(t, 0, inUse)
		assert.Equal(t, 0, reserved)
		inUse, reserved = usage(entity.ResourceVolumes)
		assert.Equal(t, 0, inUse)
		assert.Equal(t, 0, reserved)
	})
}
