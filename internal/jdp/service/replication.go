package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/poller"
)

// Promote 把副本提升为新主库
// 旧主库降级为新主库的副本，其余兄弟副本改挂到新主库
func (s *InstanceService) Promote(ctx context.Context, req *entity.PromoteRequest) error {
	replica, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	if replica.SlaveOfID == "" {
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "instance %s is not a replica", replica.ID)
	}
	master, err := s.loadInstance(ctx, replica.SlaveOfID)
	if err != nil {
		return err
	}
	if err := s.admitTask(ctx, replica.ID, entity.TaskPromoting); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		s.promoteFlow(ctx, replica, master)
	})
	return nil
}

func (s *InstanceService) promoteFlow(ctx context.Context, replica, master *model.Instance) {
	logger := zerolog.Ctx(ctx)

	siblings, err := s.Instances.ListReplicasOf(ctx, master.ID)
	if err != nil {
		s.failTask(ctx, replica, entity.TaskPromotingError, "list replicas", err)
		return
	}

	now := time.Now()
	replica.SlaveOfID = ""
	replica.UpdatedAt = now
	if err := s.Instances.Update(ctx, replica); err != nil {
		s.failTask(ctx, replica, entity.TaskPromotingError, "detach new master", err)
		return
	}
	master.SlaveOfID = replica.ID
	master.UpdatedAt = now
	if err := s.Instances.Update(ctx, master); err != nil {
		s.failTask(ctx, replica, entity.TaskPromotingError, "demote old master", err)
		return
	}
	for _, sibling := range siblings {
		if sibling.ID == replica.ID {
			continue
		}
		sibling.SlaveOfID = replica.ID
		sibling.UpdatedAt = now
		if err := s.Instances.Update(ctx, sibling); err != nil {
			s.failTask(ctx, replica, entity.TaskPromotingError, "repoint sibling replica", err)
			return
		}
	}

	// 新主库必须退出只读
	if err := s.waitWritable(ctx, replica); err != nil {
		s.failTask(ctx, replica, entity.TaskPromotingError, "wait for new master writable", err)
		return
	}

	if err := s.Instances.SetTask(ctx, replica.ID, string(entity.TaskNone)); err != nil {
		logger.Error().Err(err).Str("instance_id", replica.ID).Msg("failed to clear task")
	}
	logger.Info().
		Str("new_master", replica.ID).
		Str("old_master", master.ID).
		Msg("replica promoted to replication source")
}

// Eject 剔除失联的主库
// 仅当主库的心跳在整个隔离窗口内都没有前进时才允许
func (s *InstanceService) Eject(ctx context.Context, req *entity.EjectRequest) error {
	master, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	replicas, err := s.Instances.ListReplicasOf(ctx, master.ID)
	if err != nil {
		return err
	}
	if len(replicas) == 0 {
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "instance %s has no replicas to fail over to", master.ID)
	}

	status, err := s.Statuses.GetServiceStatus(ctx, master.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if status != nil && time.Since(status.UpdatedAt) < s.Cfg.EjectQuarantine {
		return apierror.Wrapf(apierror.ErrUnprocessable, nil,
			"master %s heartbeat advanced within the quarantine window", master.ID)
	}

	if err := s.admitTask(ctx, master.ID, entity.TaskEjecting); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		s.ejectFlow(ctx, master, replicas)
	})
	return nil
}

func (s *InstanceService) ejectFlow(ctx context.Context, master *model.Instance, replicas []*model.Instance) {
	logger := zerolog.Ctx(ctx)

	// 选心跳最新的副本当新主库
	candidate := replicas[0]
	candidateSeen := time.Time{}
	for _, r := range replicas {
		row, err := s.Statuses.GetServiceStatus(ctx, r.ID)
		if err != nil {
			continue
		}
		if row.UpdatedAt.After(candidateSeen) {
			candidate = r
			candidateSeen = row.UpdatedAt
		}
	}

	now := time.Now()
	candidate.SlaveOfID = ""
	candidate.UpdatedAt = now
	if err := s.Instances.Update(ctx, candidate); err != nil {
		s.failTask(ctx, master, entity.TaskEjectingError, "detach failover candidate", err)
		return
	}
	for _, r := range replicas {
		if r.ID == candidate.ID {
			continue
		}
		r.SlaveOfID = candidate.ID
		r.UpdatedAt = now
		if err := s.Instances.Update(ctx, r); err != nil {
			s.failTask(ctx, master, entity.TaskEjectingError, "repoint replica", err)
			return
		}
	}
	// 被剔除的主库降级挂到新主库下，恢复后再由引擎追平
	master.SlaveOfID = candidate.ID
	master.UpdatedAt = now
	if err := s.Instances.Update(ctx, master); err != nil {
		s.failTask(ctx, master, entity.TaskEjectingError, "demote ejected master", err)
		return
	}

	if err := s.waitWritable(ctx, candidate); err != nil {
		s.failTask(ctx, master, entity.TaskEjectingError, "wait for new master writable", err)
		return
	}

	if err := s.Instances.SetTask(ctx, master.ID, string(entity.TaskNone)); err != nil {
		logger.Error().Err(err).Str("instance_id", master.ID).Msg("failed to clear task")
	}
	logger.Info().
		Str("ejected_master", master.ID).
		Str("new_master", candidate.ID).
		Msg("replication source ejected")
}

// Detach 把副本从复制拓扑里摘出来
// 幂等：已经不是副本时直接返回
func (s *InstanceService) Detach(ctx context.Context, req *entity.DetachReplicaRequest) error {
	replica, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	if replica.SlaveOfID == "" {
		return nil
	}
	replica.SlaveOfID = ""
	replica.UpdatedAt = time.Now()
	if err := s.Instances.Update(ctx, replica); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		if err := s.waitWritable(ctx, replica); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("instance_id", replica.ID).
				Msg("detached replica did not leave read-only in time")
			s.recordFault(ctx, replica.ID, "wait for read_only=0 after detach", err)
		}
	})
	return nil
}

// waitWritable 轮询 guest 直到引擎退出只读
func (s *InstanceService) waitWritable(ctx context.Context, inst *model.Instance) error {
	client, err := s.guest(inst)
	if err != nil {
		return err
	}
	_, err = poller.Poll(ctx, "engine writable",
		func(ctx context.Context) (bool, error) {
			callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
			defer cancel()
			readOnly, err := client.IsReadOnly(callCtx)
			if err != nil {
				return false, err
			}
			return !readOnly, nil
		},
		func(writable bool) bool { return writable },
		s.Cfg.PollInterval, s.Cfg.RestartTimeout)
	return err
}
