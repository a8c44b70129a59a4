package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/fabric"
	"github.com/jimyag/jdp/pkg/guestagent"
	"github.com/jimyag/jdp/pkg/poller"
)

// ResizeFlavor 变更实例规格
// 走确认/回滚屏障状态机：屏障前任何失败自动回滚，屏障后失败停在哨兵上等人工处理
func (s *InstanceService) ResizeFlavor(ctx context.Context, req *entity.ResizeFlavorRequest) error {
	inst, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	if inst.FlavorID != req.OldFlavorID {
		return apierror.Wrapf(apierror.ErrBadRequest, nil,
			"instance %s has flavor %s, not %s", inst.ID, inst.FlavorID, req.OldFlavorID)
	}
	if req.NewFlavorID == req.OldFlavorID {
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "new flavor equals the current one")
	}
	if _, err := s.Compute.GetFlavor(ctx, req.NewFlavorID); err != nil {
		return apierror.Wrapf(apierror.ErrFlavorNotFound, err, "flavor %s", req.NewFlavorID)
	}
	if err := s.admitTask(ctx, inst.ID, entity.TaskResizing); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		action := &resizeAction{
			svc:         s,
			inst:        inst,
			oldFlavorID: req.OldFlavorID,
			newFlavorID: req.NewFlavorID,
		}
		action.run(ctx)
	})
	return nil
}

// Migrate 迁移实例到其他宿主
// 与规格变更共用同一个状态机，只是不校验规格变化
func (s *InstanceService) Migrate(ctx context.Context, req *entity.MigrateRequest) error {
	inst, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	if err := s.admitTask(ctx, inst.ID, entity.TaskMigrating); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		action := &resizeAction{
			svc:         s,
			inst:        inst,
			oldFlavorID: inst.FlavorID,
			newFlavorID: inst.FlavorID,
			migrate:     true,
			migrateHost: req.Host,
		}
		action.run(ctx)
	})
	return nil
}

// resizeAction 一次规格变更/迁移的执行体
type resizeAction struct {
	svc  *InstanceService
	inst *model.Instance

	oldFlavorID string
	newFlavorID string
	migrate     bool
	migrateHost string

	guest          guestagent.Client
	configContents string
}

func (a *resizeAction) sentinel() entity.Task {
	if a.migrate {
		return entity.TaskMigratingError
	}
	return entity.TaskResizingError
}

func (a *resizeAction) run(ctx context.Context) {
	s := a.svc
	logger := zerolog.Ctx(ctx)

	var err error
	a.guest, err = s.guest(a.inst)
	if err != nil {
		s.failTask(ctx, a.inst, a.sentinel(), "dial guest", err)
		return
	}
	a.configContents, err = s.configContents(ctx, a.inst.ConfigurationID)
	if err != nil {
		s.failTask(ctx, a.inst, a.sentinel(), "render configuration", err)
		return
	}

	// 屏障前：任何失败都走自动回滚
	if step, err := a.preBarrier(ctx); err != nil {
		logger.Warn().Err(err).
			Str("instance_id", a.inst.ID).
			Str("step", step).
			Msg("resize failed before the revert barrier, reverting")
		a.revert(ctx, step, err)
		return
	}

	// 屏障后：校验数据面，失败仍触发回滚；确认本身失败则停在哨兵上
	if step, err := a.verifyApplication(ctx); err != nil {
		logger.Warn().Err(err).
			Str("instance_id", a.inst.ID).
			Str("step", step).
			Msg("application verification failed, reverting")
		a.revert(ctx, step, err)
		return
	}

	if err := a.confirm(ctx); err != nil {
		// fabric 动作已确认，数据面已切换，此处不再自动回滚
		s.failTask(ctx, a.inst, a.sentinel(), "confirm resize", err)
		return
	}
}

// preBarrier 停库 → fabric 动作 → 等 fabric 收敛 → 校验进入 VERIFY_RESIZE
func (a *resizeAction) preBarrier(ctx context.Context) (string, error) {
	s := a.svc

	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	err := a.guest.StopDB(callCtx, true)
	cancel()
	if err != nil {
		return "guest stop_db", err
	}
	if err := s.Statuses.SetServiceStatus(ctx, a.inst.ID, string(entity.ServiceStatusPaused), time.Now()); err != nil {
		return "pause service status", err
	}

	if a.migrate {
		err = s.Compute.Migrate(ctx, a.inst.ComputeID, a.migrateHost)
	} else {
		err = s.Compute.Resize(ctx, a.inst.ComputeID, a.newFlavorID)
	}
	if err != nil {
		return "fabric action", err
	}

	srv, err := poller.Poll(ctx, "fabric resize settled",
		func(ctx context.Context) (*fabric.Server, error) {
			return s.Compute.Get(ctx, a.inst.ComputeID)
		},
		func(srv *fabric.Server) bool {
			return srv.Status != fabric.ServerStatusResize
		},
		s.Cfg.PollInterval, s.Cfg.ResizeTimeout)
	if err != nil {
		return "wait for fabric", err
	}
	if srv.Status != fabric.ServerStatusVerifyResize {
		return "verify fabric", apierror.Wrapf(apierror.ErrInternalError, nil,
			"server %s settled in %s, expected VERIFY_RESIZE", a.inst.ComputeID, srv.Status)
	}
	return "", nil
}

// verifyApplication 证明 guest 还活着、引擎能在新规格下跑起来
func (a *resizeAction) verifyApplication(ctx context.Context) (string, error) {
	s := a.svc

	pausedAt := time.Now()
	if err := s.Statuses.SetServiceStatus(ctx, a.inst.ID, string(entity.ServiceStatusPaused), pausedAt); err != nil {
		return "pause service status", err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	err := a.guest.StartWithConfig(callCtx, a.configContents)
	cancel()
	if err != nil {
		return "guest start with config", err
	}

	// 心跳必须在 PAUSED 之后前进，证明 guest 醒着
	status, err := poller.Poll(ctx, "guest awake after resize",
		func(ctx context.Context) (*model.ServiceStatus, error) {
			return s.Statuses.GetServiceStatus(ctx, a.inst.ID)
		},
		func(row *model.ServiceStatus) bool {
			return row.UpdatedAt.After(pausedAt)
		},
		s.Cfg.PollInterval, s.Cfg.RestartTimeout)
	if err != nil {
		return "wait for guest heartbeat", err
	}
	if !entity.ServiceStatus(status.Status).Ready() {
		return "verify engine running", apierror.Wrapf(apierror.ErrGuestError, nil,
			"engine reported %s after resize", status.Status)
	}

	if !a.migrate {
		srv, err := s.Compute.Get(ctx, a.inst.ComputeID)
		if err != nil {
			return "verify flavor", err
		}
		if srv.FlavorID != a.newFlavorID {
			return "verify flavor", apierror.Wrapf(apierror.ErrInternalError, nil,
				"server still reports flavor %s, expected %s", srv.FlavorID, a.newFlavorID)
		}
	}
	return "", nil
}

// confirm 确认 fabric 动作并收口
func (a *resizeAction) confirm(ctx context.Context) error {
	s := a.svc

	if err := s.Compute.ConfirmResize(ctx, a.inst.ComputeID); err != nil {
		return err
	}
	if !a.migrate {
		a.inst.FlavorID = a.newFlavorID
	}
	a.inst.UpdatedAt = time.Now()
	if err := s.Instances.Update(ctx, a.inst); err != nil {
		return err
	}
	if err := s.Instances.SetTask(ctx, a.inst.ID, string(entity.TaskNone)); err != nil {
		return err
	}

	if !a.migrate {
		oldFlavor, err := s.Compute.GetFlavor(ctx, a.oldFlavorID)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("flavor_id", a.oldFlavorID).Msg("failed to resolve old flavor for usage event")
			oldFlavor = &fabric.Flavor{}
		}
		newFlavor, err := s.Compute.GetFlavor(ctx, a.newFlavorID)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("flavor_id", a.newFlavorID).Msg("failed to resolve new flavor for usage event")
			newFlavor = &fabric.Flavor{}
		}
		now := time.Now()
		s.Notifier.Usage(ctx, &entity.UsageEvent{
			EventType:       entity.EventInstanceModifyFlavor,
			InstanceID:      a.inst.ID,
			TenantID:        a.inst.TenantID,
			InstanceName:    a.inst.Name,
			InstanceSize:    newFlavor.RAMMB,
			OldInstanceSize: oldFlavor.RAMMB,
			CreatedAt:       a.inst.CreatedAt,
			ModifyAt:        &now,
		})
	}
	return nil
}

// revert 自动回滚：先把旧配置写回 guest，再让 fabric 回滚，最后拉起引擎
// 无论回滚成败，任务槽都清回 NONE；回滚失败额外停在哨兵上
func (a *resizeAction) revert(ctx context.Context, failedStep string, cause error) {
	s := a.svc
	logger := zerolog.Ctx(ctx)

	s.recordFault(ctx, a.inst.ID, failedStep, cause)

	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	if err := a.guest.ResetConfiguration(callCtx, a.configContents); err != nil {
		logger.Warn().Err(err).Str("instance_id", a.inst.ID).Msg("failed to re-apply previous configuration")
	}
	cancel()

	if err := s.Compute.RevertResize(ctx, a.inst.ComputeID); err != nil {
		s.failTask(ctx, a.inst, a.sentinel(), "fabric revert", err)
		return
	}
	_, err := poller.Poll(ctx, "server active after revert",
		func(ctx context.Context) (*fabric.Server, error) {
			return s.Compute.Get(ctx, a.inst.ComputeID)
		},
		func(srv *fabric.Server) bool {
			return srv.Status == fabric.ServerStatusActive
		},
		s.Cfg.PollInterval, s.Cfg.ResizeTimeout)
	if err != nil {
		s.failTask(ctx, a.inst, a.sentinel(), "wait for revert", err)
		return
	}

	callCtx, cancel = context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	if err := a.guest.StartWithConfig(callCtx, a.configContents); err != nil {
		logger.Warn().Err(err).Str("instance_id", a.inst.ID).Msg("failed to restart engine after revert")
	}
	cancel()

	if err := s.Instances.SetTask(ctx, a.inst.ID, string(entity.TaskNone)); err != nil {
		logger.Error().Err(err).Str("instance_id", a.inst.ID).Msg("failed to clear task after revert")
	}
	logger.Info().
		Str("instance_id", a.inst.ID).
		Str("failed_step", failedStep).
		Msg("resize reverted")
}
