package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/fabric"
)

// StatusService 状态追踪器
// 负责心跳准入和对外状态投影
type StatusService struct {
	*Deps
}

// NewStatusService 创建状态追踪器
func NewStatusService(deps *Deps) *StatusService {
	return &StatusService{Deps: deps}
}

// projectStatus 把任务指令、fabric 状态、引擎心跳三路输入投影成对外可见状态
// 规则自上而下，首个命中生效
func projectStatus(task entity.Task, serverStatus string, backupRunning bool, svc *entity.InstanceServiceStatus) string {
	switch {
	case task.IsError():
		return "ERROR"
	case task == entity.TaskBuilding:
		if serverStatus == fabric.ServerStatusError {
			return "ERROR"
		}
		return "BUILD"
	case task == entity.TaskRebooting:
		return "REBOOT"
	case task == entity.TaskResizing, task == entity.TaskResizingVolume, task == entity.TaskMigrating:
		return "RESIZE"
	}

	switch serverStatus {
	case fabric.ServerStatusBuild, fabric.ServerStatusError,
		fabric.ServerStatusReboot, fabric.ServerStatusResize:
		return serverStatus
	case fabric.ServerStatusVerifyResize:
		return fabric.ServerStatusResize
	}

	if backupRunning {
		return "BACKUP"
	}

	if task == entity.TaskDeleting {
		switch serverStatus {
		case fabric.ServerStatusActive, fabric.ServerStatusShutdown, fabric.ServerStatusDeleted, "":
			return "SHUTDOWN"
		}
		return "ERROR"
	}

	if svc == nil {
		return "ERROR"
	}
	switch svc.Status {
	case entity.ServiceStatusPaused:
		return "REBOOT"
	case entity.ServiceStatusNew:
		return "BUILD"
	}
	return svc.Status.APIStatus()
}

// Resolve 计算实例的对外可见状态
func (s *StatusService) Resolve(ctx context.Context, instanceID string, task entity.Task, serverStatus string) (string, error) {
	backupRunning := false
	backups, err := s.Backups.ListByInstanceID(ctx, instanceID)
	if err != nil {
		return "", err
	}
	for _, b := range backups {
		if entity.BackupState(b.State) == entity.BackupStateNew ||
			entity.BackupState(b.State) == entity.BackupStateBuilding ||
			entity.BackupState(b.State) == entity.BackupStateSaving {
			backupRunning = true
			break
		}
	}

	var svc *entity.InstanceServiceStatus
	row, err := s.Statuses.GetServiceStatus(ctx, instanceID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if row != nil {
		svc = &entity.InstanceServiceStatus{
			InstanceID: row.InstanceID,
			Status:     entity.ServiceStatus(row.Status),
			UpdatedAt:  row.UpdatedAt,
		}
		if err := s.applyHeartbeatExpiry(ctx, svc); err != nil {
			return "", err
		}
	}
	return projectStatus(task, serverStatus, backupRunning, svc), nil
}

// applyHeartbeatExpiry 心跳停更超过有效期的实例视为失联
// 只降级本应就绪的状态，构建、暂停等中间态由各自的时限管
func (s *StatusService) applyHeartbeatExpiry(ctx context.Context, svc *entity.InstanceServiceStatus) error {
	if s.Cfg.AgentHeartbeatExpiry <= 0 || !svc.Status.Ready() {
		return nil
	}
	lastSeen := svc.UpdatedAt
	hb, err := s.Statuses.GetAgentHeartbeat(ctx, svc.InstanceID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if hb != nil && hb.UpdatedAt.After(lastSeen) {
		lastSeen = hb.UpdatedAt
	}
	if time.Since(lastSeen) > s.Cfg.AgentHeartbeatExpiry {
		svc.Status = entity.ServiceStatusFailedTimeoutGA
	}
	return nil
}

// Heartbeat 处理入站的引擎状态心跳
// sent_at 不严格新于已存时间戳的心跳被丢弃，丢弃不算错误
func (s *StatusService) Heartbeat(ctx context.Context, payload *entity.HeartbeatPayload) error {
	admitted, err := s.Statuses.AdmitHeartbeat(ctx, payload.InstanceID, string(payload.ServiceStatus), payload.SentAt)
	if err != nil {
		return err
	}
	if !admitted {
		zerolog.Ctx(ctx).Debug().
			Str("instance_id", payload.InstanceID).
			Time("sent_at", payload.SentAt).
			Msg("stale heartbeat discarded")
		return nil
	}
	if payload.GuestAgentVersion != "" {
		if err := s.Statuses.TouchAgent(ctx, payload.InstanceID, payload.GuestAgentVersion, payload.SentAt); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBackup 处理入站的备份进度心跳
// 同样按 sent_at 单调推进，过期载荷被丢弃
func (s *StatusService) UpdateBackup(ctx context.Context, payload *entity.BackupUpdatePayload) error {
	if _, err := s.Backups.GetByID(ctx, payload.BackupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.Wrapf(apierror.ErrNotFound, err, "backup %s not found", payload.BackupID)
		}
		return err
	}

	fields := map[string]any{}
	if payload.State != "" {
		fields["state"] = string(payload.State)
	}
	if payload.Location != "" {
		fields["location"] = payload.Location
	}
	if payload.SizeGB > 0 {
		fields["size_gb"] = payload.SizeGB
	}
	if payload.Checksum != "" {
		fields["checksum"] = payload.Checksum
	}
	if payload.BackupType != "" {
		fields["backup_type"] = payload.BackupType
	}
	if len(fields) == 0 {
		return nil
	}

	admitted, err := s.Backups.AdvanceState(ctx, payload.BackupID, fields, payload.SentAt)
	if err != nil {
		return err
	}
	if !admitted {
		zerolog.Ctx(ctx).Debug().
			Str("backup_id", payload.BackupID).
			Time("sent_at", payload.SentAt).
			Msg("stale backup update discarded")
	}
	return nil
}
