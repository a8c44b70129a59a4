package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
)

func TestProjectStatus(t *testing.T) {
	t.Parallel()

	running := &entity.InstanceServiceStatus{Status: entity.ServiceStatusRunning}
	paused := &entity.InstanceServiceStatus{Status: entity.ServiceStatusPaused}
	fresh := &entity.InstanceServiceStatus{Status: entity.ServiceStatusNew}
	healthy := &entity.InstanceServiceStatus{Status: entity.ServiceStatusHealthy}
	crashed := &entity.InstanceServiceStatus{Status: entity.ServiceStatusCrashed}

	tests := []struct {
		name          string
		task          entity.Task
		serverStatus  string
		backupRunning bool
		svc           *entity.InstanceServiceStatus
		want          string
	}{
		{"错误哨兵压过一切", entity.TaskBuildingErrorGuest, "ACTIVE", false, running, "ERROR"},
		{"构建中 fabric 报错", entity.TaskBuilding, "ERROR", false, fresh, "ERROR"},
		{"构建中", entity.TaskBuilding, "BUILD", false, fresh, "BUILD"},
		{"重启任务", entity.TaskRebooting, "ACTIVE", false, running, "REBOOT"},
		{"规格变更任务", entity.TaskResizing, "VERIFY_RESIZE", false, paused, "RESIZE"},
		{"卷扩容任务", entity.TaskResizingVolume, "ACTIVE", false, paused, "RESIZE"},
		{"迁移任务", entity.TaskMigrating, "ACTIVE", false, paused, "RESIZE"},
		{"fabric 状态透传", entity.TaskNone, "REBOOT", false, running, "REBOOT"},
		{"fabric VERIFY_RESIZE 折叠成 RESIZE", entity.TaskNone, "VERIFY_RESIZE", false, running, "RESIZE"},
		{"备份进行中", entity.TaskNone, "ACTIVE", true, running, "BACKUP"},
		{"删除中 fabric 正常", entity.TaskDeleting, "ACTIVE", false, running, "SHUTDOWN"},
		{"删除中 fabric 已消失", entity.TaskDeleting, "", false, running, "SHUTDOWN"},
		{"删除中 fabric 异常", entity.TaskDeleting, "UNKNOWN", false, running, "ERROR"},
		{"引擎暂停投影为 REBOOT", entity.TaskNone, "ACTIVE", false, paused, "REBOOT"},
		{"引擎还没报过活", entity.TaskNone, "ACTIVE", false, fresh, "BUILD"},
		{"引擎运行中", entity.TaskNone, "ACTIVE", false, running, "ACTIVE"},
		{"引擎健康", entity.TaskNone, "ACTIVE", false, healthy, "HEALTHY"},
		{"引擎崩溃", entity.TaskNone, "ACTIVE", false, crashed, "ERROR"},
		{"没有任何心跳", entity.TaskNone, "ACTIVE", false, nil, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := projectStatus(tt.task, tt.serverStatus, tt.backupRunning, tt.svc)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeartbeatAdmission(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	status := NewStatusService(env.deps)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, status.Heartbeat(ctx, &entity.HeartbeatPayload{
		InstanceID:    "dbi-1",
		ServiceStatus: entity.ServiceStatusRunning,
		SentAt:        base,
	}))
	row, err := env.deps.Statuses.GetServiceStatus(ctx, "dbi-1")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", row.Status)

	t.Run("旧心跳被丢弃且不算错误", func(t *testing.T) {
		require.NoError(t, status.Heartbeat(ctx, &entity.HeartbeatPayload{
			InstanceID:    "dbi-1",
			ServiceStatus: entity.ServiceStatusShutdown,
			SentAt:        base.Add(-time.Minute),
		}))
		row, err := env.deps.Statuses.GetServiceStatus(ctx, "dbi-1")
		require.NoError(t, err)
		assert.Equal(t, "RUNNING", row.Status)
	})

	t.Run("相同时间戳同样被丢弃", func(t *testing.T) {
		require.NoError(t, status.Heartbeat(ctx, &entity.HeartbeatPayload{
			InstanceID:    "dbi-1",
			ServiceStatus: entity.ServiceStatusShutdown,
			SentAt:        base,
		}))
		row, err := env.deps.Statuses.GetServiceStatus(ctx, "dbi-1")
		require.NoError(t, err)
		assert.Equal(t, "RUNNING", row.Status)
	})

	t.Run("更新的心跳推进状态", func(t *testing.T) {
		require.NoError(t, status.Heartbeat(ctx, &entity.HeartbeatPayload{
			InstanceID:        "dbi-1",
			ServiceStatus:     entity.ServiceStatusHealthy,
			SentAt:            base.Add(time.Minute),
			GuestAgentVersion: "1.2.0",
		}))
		row, err := env.deps.Statuses.GetServiceStatus(ctx, "dbi-1")
		require.NoError(t, err)
		assert.Equal(t, "HEALTHY", row.Status)

		agent, err := env.deps.Statuses.GetAgentHeartbeat(ctx, "dbi-1")
		require.NoError(t, err)
		assert.Equal(t, "1.2.0", agent.GuestAgentVersion)
	})
}

func TestHeartbeatExpiry(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	env.deps.Cfg.AgentHeartbeatExpiry = time.Hour
	status := NewStatusService(env.deps)
	ctx := context.Background()

	require.NoError(t, status.Heartbeat(ctx, &entity.HeartbeatPayload{
		InstanceID:        "dbi-1",
		ServiceStatus:     entity.ServiceStatusHealthy,
		SentAt:            time.Now().Add(-2 * time.Hour),
		GuestAgentVersion: "1.2.0",
	}))

	t.Run("心跳停更超限投影为 ERROR", func(t *testing.T) {
		got, err := status.Resolve(ctx, "dbi-1", entity.TaskNone, "ACTIVE")
		require.NoError(t, err)
		assert.Equal(t, "ERROR", got)
	})

	t.Run("新心跳到达后恢复", func(t *testing.T) {
		require.NoError(t, status.Heartbeat(ctx, &entity.HeartbeatPayload{
			InstanceID:    "dbi-1",
			ServiceStatus: entity.ServiceStatusHealthy,
			SentAt:        time.Now(),
		}))
		got, err := status.Resolve(ctx, "dbi-1", entity.TaskNone, "ACTIVE")
		require.NoError(t, err)
		assert.Equal(t, "HEALTHY", got)
	})

	t.Run("停更的引擎对外整体标记为失联", func(t *testing.T) {
		require.NoError(t, status.Heartbeat(ctx, &entity.HeartbeatPayload{
			InstanceID:    "dbi-2",
			ServiceStatus: entity.ServiceStatusRunning,
			SentAt:        time.Now().Add(-90 * time.Minute),
		}))
		svc := &entity.InstanceServiceStatus{
			InstanceID: "dbi-2",
			Status:     entity.ServiceStatusRunning,
			UpdatedAt:  time.Now().Add(-90 * time.Minute),
		}
		require.NoError(t, status.applyHeartbeatExpiry(ctx, svc))
		assert.Equal(t, entity.ServiceStatusFailedTimeoutGA, svc.Status)
	})
}

func TestUpdateBackup(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	status := NewStatusService(env.deps)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, env.deps.Backups.Create(ctx, &model.Backup{
		ID:        "bak-1",
		TenantID:  "tenant-1",
		State:     string(entity.BackupStateNew),
		CreatedAt: base,
		UpdatedAt: base,
	}))

	t.Run("推进状态和元数据", func(t *testing.T) {
		require.NoError(t, status.UpdateBackup(ctx, &entity.BackupUpdatePayload{
			BackupID: "bak-1",
			SentAt:   base.Add(time.Second),
			State:    entity.BackupStateSaving,
			SizeGB:   1.5,
		}))
		backup, err := env.deps.Backups.GetByID(ctx, "bak-1")
		require.NoError(t, err)
		assert.Equal(t, "SAVING", backup.State)
		assert.InDelta(t, 1.5, backup.SizeGB, 0.001)
	})

	t.Run("过期载荷被丢弃", func(t *testing.T) {
		require.NoError(t, status.UpdateBackup(ctx, &entity.BackupUpdatePayload{
			BackupID: "bak-1",
			SentAt:   base.Add(-time.Second),
			State:    entity.BackupStateCompleted,
		}))
		backup, err := env.deps.Backups.GetByID(ctx, "bak-1")
		require.NoError(t, err)
		assert.Equal(t, "SAVING", backup.State)
	})

	t.Run("未知备份返回 NotFound", func(t *testing.T) {
		err := status.UpdateBackup(ctx, &entity.BackupUpdatePayload{
			BackupID: "bak-missing",
			SentAt:   base,
			State:    entity.BackupStateCompleted,
		})
		assert.ErrorIs(t, err, apierror.ErrNotFound)
	})
}
