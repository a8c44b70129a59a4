package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/fabric"
)

func TestResizeFlavorValidation(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.seedInstance(t, "dbi-rs")

	t.Run("旧规格对不上", func(t *testing.T) {
		err := svc.ResizeFlavor(ctx, &entity.ResizeFlavorRequest{
			InstanceID: "dbi-rs", OldFlavorID: "99", NewFlavorID: "3",
		})
		assert.ErrorIs(t, err, apierror.ErrBadRequest)
	})

	t.Run("规格没变化", func(t *testing.T) {
		err := svc.ResizeFlavor(ctx, &entity.ResizeFlavorRequest{
			InstanceID: "dbi-rs", OldFlavorID: "2", NewFlavorID: "2",
		})
		assert.ErrorIs(t, err, apierror.ErrBadRequest)
	})

	t.Run("目标规格不存在", func(t *testing.T) {
		env.compute.On("GetFlavor", mock.Anything, "404").
			Return(nil, &fabric.NotFoundError{Resource: "flavor", ID: "404"})
		err := svc.ResizeFlavor(ctx, &entity.ResizeFlavorRequest{
			InstanceID: "dbi-rs", OldFlavorID: "2", NewFlavorID: "404",
		})
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)
	})
}

// 屏障前失败：fabric 没有停在 VERIFY_RESIZE 上，自动回滚后任务槽回 NONE
func TestResizeRevertsBeforeBarrier(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.dialAnyGuest()
	env.seedInstance(t, "dbi-rv")

	env.compute.On("GetFlavor", mock.Anything, "3").Return(&fabric.Flavor{ID: "3", RAMMB: 4096}, nil)
	env.guest.On("StopDB", mock.Anything, true).Return(nil)
	env.compute.On("Resize", mock.Anything, "srv-dbi-rv", "3").Return(nil)
	// fabric 直接回到 ACTIVE：动作丢了，必须回滚
	env.compute.On("Get", mock.Anything, "srv-dbi-rv").
		Return(&fabric.Server{ID: "srv-dbi-rv", Status: fabric.ServerStatusActive, FlavorID: "2"}, nil)
	env.guest.On("ResetConfiguration", mock.Anything, "").Return(nil)
	env.compute.On("RevertResize", mock.Anything, "srv-dbi-rv").Return(nil)
	env.guest.On("StartWithConfig", mock.Anything, "").Return(nil)

	require.NoError(t, svc.ResizeFlavor(ctx, &entity.ResizeFlavorRequest{
		InstanceID: "dbi-rv", OldFlavorID: "2", NewFlavorID: "3",
	}))
	env.runFlows()

	inst, err := env.deps.Instances.GetByID(ctx, "dbi-rv")
	require.NoError(t, err)
	assert.Equal(t, string(entity.TaskNone), inst.Task)
	assert.Equal(t, "2", inst.FlavorID)

	env.compute.AssertCalled(t, "RevertResize", mock.Anything, "srv-dbi-rv")
	assert.Empty(t, env.notifier.usageByType(entity.EventInstanceModifyFlavor))

	// 失败原因留在 fault 里
	fault, err := env.deps.Faults.GetByInstanceID(ctx, "dbi-rv")
	require.NoError(t, err)
	assert.Equal(t, "verify fabric", fault.Message)
}

// 走完确认屏障的完整规格变更
func TestResizeConfirm(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.dialAnyGuest()
	env.seedInstance(t, "dbi-ok")

	env.compute.On("GetFlavor", mock.Anything, "3").Return(&fabric.Flavor{ID: "3", RAMMB: 4096}, nil)
	env.compute.On("GetFlavor", mock.Anything, "2").Return(&fabric.Flavor{ID: "2", RAMMB: 2048}, nil)
	env.guest.On("StopDB", mock.Anything, true).Return(nil)
	env.compute.On("Resize", mock.Anything, "srv-dbi-ok", "3").Return(nil)
	env.compute.On("Get", mock.Anything, "srv-dbi-ok").
		Return(&fabric.Server{ID: "srv-dbi-ok", Status: fabric.ServerStatusVerifyResize, FlavorID: "3"}, nil).Once()
	env.compute.On("Get", mock.Anything, "srv-dbi-ok").
		Return(&fabric.Server{ID: "srv-dbi-ok", Status: fabric.ServerStatusActive, FlavorID: "3"}, nil)
	// 引擎拉起的同时送一个新心跳，证明 guest 在新规格下醒着
	env.guest.On("StartWithConfig", mock.Anything, "").Run(func(args mock.Arguments) {
		_, _ = env.deps.Statuses.AdmitHeartbeat(context.Background(), "dbi-ok",
			string(entity.ServiceStatusRunning), time.Now().Add(time.Hour))
	}).Return(nil)
	env.compute.On("ConfirmResize", mock.Anything, "srv-dbi-ok").Return(nil)

	require.NoError(t, svc.ResizeFlavor(ctx, &entity.ResizeFlavorRequest{
		InstanceID: "dbi-ok", OldFlavorID: "2", NewFlavorID: "3",
	}))
	env.runFlows()

	inst, err := env.deps.Instances.GetByID(ctx, "dbi-ok")
	require.NoError(t, err)
	assert.Equal(t, string(entity.TaskNone), inst.Task)
	assert.Equal(t, "3", inst.FlavorID)

	events := env.notifier.usageByType(entity.EventInstanceModifyFlavor)
	require.Len(t, events, 1)
	assert.Equal(t, 2048, events[0].OldInstanceSize)
	assert.Equal(t, 4096, events[0].InstanceSize)
}

// fabric 停在 VERIFY_RESIZE 上却还报旧规格：屏障后的校验必须触发回滚
func TestResizeRevertsOnFlavorMismatch(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.dialAnyGuest()
	env.seedInstance(t, "dbi-fm")

	env.compute.On("GetFlavor", mock.Anything, "3").Return(&fabric.Flavor{ID: "3", RAMMB: 4096}, nil)
	env.guest.On("StopDB", mock.Anything, true).Return(nil)
	env.compute.On("Resize", mock.Anything, "srv-dbi-fm", "3").Return(nil)
	// 屏障和屏障后的校验都看到 VERIFY_RESIZE，但规格还是旧的
	env.compute.On("Get", mock.Anything, "srv-dbi-fm").
		Return(&fabric.Server{ID: "srv-dbi-fm", Status: fabric.ServerStatusVerifyResize, FlavorID: "2"}, nil).Times(2)
	env.compute.On("Get", mock.Anything, "srv-dbi-fm").
		Return(&fabric.Server{ID: "srv-dbi-fm", Status: fabric.ServerStatusActive, FlavorID: "2"}, nil)
	env.guest.On("StartWithConfig", mock.Anything, "").Run(func(args mock.Arguments) {
		_, _ = env.deps.Statuses.AdmitHeartbeat(context.Background(), "dbi-fm",
			string(entity.ServiceStatusRunning), time.Now().Add(time.Hour))
	}).Return(nil)
	env.guest.On("ResetConfiguration", mock.Anything, "").Return(nil)
	env.compute.On("RevertResize", mock.Anything, "srv-dbi-fm").Return(nil)

	require.NoError(t, svc.ResizeFlavor(ctx, &entity.ResizeFlavorRequest{
		InstanceID: "dbi-fm", OldFlavorID: "2", NewFlavorID: "3",
	}))
	env.runFlows()

	inst, err := env.deps.Instances.GetByID(ctx, "dbi-fm")
	require.NoError(t, err)
	assert.Equal(t, string(entity.TaskNone), inst.Task)
	assert.Equal(t, "2", inst.FlavorID)

	env.compute.AssertCalled(t, "RevertResize", mock.Anything, "srv-dbi-fm")
	env.compute.AssertNotCalled(t, "ConfirmResize", mock.Anything, "srv-dbi-fm")
	assert.Empty(t, env.notifier.usageByType(entity.EventInstanceModifyFlavor))

	fault, err := env.deps.Faults.GetByInstanceID(ctx, "dbi-fm")
	require.NoError(t, err)
	assert.Equal(t, "verify flavor", fault.Message)
}

// 确认动作本身失败：数据面已切换，不再自动回滚，停在哨兵上等人工处理
func TestResizeConfirmFailureStaysOnSentinel(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.dialAnyGuest()
	env.seedInstance(t, "dbi-cf")

	env.compute.On("GetFlavor", mock.Anything, "3").Return(&fabric.Flavor{ID: "3", RAMMB: 4096}, nil)
	env.guest.On("StopDB", mock.Anything, true).Return(nil)
	env.compute.On("Resize", mock.Anything, "srv-dbi-cf", "3").Return(nil)
	env.compute.On("Get", mock.Anything, "srv-dbi-cf").
		Return(&fabric.Server{ID: "srv-dbi-cf", Status: fabric.ServerStatusVerifyResize, FlavorID: "3"}, nil).Once()
	env.compute.On("Get", mock.Anything, "srv-dbi-cf").
		Return(&fabric.Server{ID: "srv-dbi-cf", Status: fabric.ServerStatusActive, FlavorID: "3"}, nil)
	env.guest.On("StartWithConfig", mock.Anything, "").Run(func(args mock.Arguments) {
		_, _ = env.deps.Statuses.AdmitHeartbeat(context.Background(), "dbi-cf",
			string(entity.ServiceStatusRunning), time.Now().Add(time.Hour))
	}).Return(nil)
	env.compute.On("ConfirmResize", mock.Anything, "srv-dbi-cf").Return(assert.AnError)

	require.NoError(t, svc.ResizeFlavor(ctx, &entity.ResizeFlavorRequest{
		InstanceID: "dbi-cf", OldFlavorID: "2", NewFlavorID: "3",
	}))
	env.runFlows()

	inst, err := env.deps.Instances.GetByID(ctx, "dbi-cf")
	require.NoError(t, err)
	assert.Equal(t, string(entity.TaskResizingError), inst.Task)
	assert.Equal(t, "2", inst.FlavorID)
	env.compute.AssertNotCalled(t, "RevertResize", mock.Anything, "srv-dbi-cf")
}
