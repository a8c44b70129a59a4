package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/fabric"
)

// seedBackup 落一条备份行
func (e *testEnv) seedBackup(t *testing.T, id, state string, mutate ...func(*model.Backup)) *model.Backup {
	t.Helper()
	now := time.Now().UTC()
	backup := &model.Backup{
		ID:                 id,
		TenantID:           "tenant-1",
		InstanceID:         "dbi-1",
		Name:               "nightly-" + id,
		State:              state,
		BackupType:         entity.BackupTypeFull,
		DatastoreVersionID: "dsv-mysql57",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, fn := range mutate {
		fn(backup)
	}
	require.NoError(t, e.deps.Backups.Create(context.Background(), backup))
	return backup
}

func TestBackupCreate(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := NewBackupService(env.deps)
	instances := newInstanceService(env)
	ctx := context.Background()
	env.seedInstance(t, "dbi-bk")
	env.dialAnyGuest()
	env.guest.On("CreateBackup", mock.Anything, "bak-new").Return(nil)

	backup, err := svc.Create(ctx, instances,
		&entity.BackupActionRequest{InstanceID: "dbi-bk", BackupID: "bak-new"},
		"nightly", "pre-upgrade snapshot", "")
	require.NoError(t, err)
	assert.Equal(t, entity.BackupStateNew, backup.State)
	assert.Equal(t, entity.BackupTypeFull, backup.BackupType)

	// 指令送达前任务槽被占住，配额已经提交
	assert.Equal(t, string(entity.TaskBackingUp), env.taskOf(t, "dbi-bk"))
	quota, err := env.deps.Quotas.GetQuota(ctx, "tenant-1", entity.ResourceBackups)
	require.NoError(t, err)
	assert.Equal(t, 1, quota.InUse)
	assert.Equal(t, 0, quota.Reserved)

	env.runFlows()
	assert.Equal(t, string(entity.TaskNone), env.taskOf(t, "dbi-bk"))
	// 状态推进交给 guest 的 update_backup，这里仍停在 NEW
	row, err := env.deps.Backups.GetByID(ctx, "bak-new")
	require.NoError(t, err)
	assert.Equal(t, string(entity.BackupStateNew), row.State)
	env.guest.AssertCalled(t, "CreateBackup", mock.Anything, "bak-new")
}

func TestBackupCreateIncremental(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := NewBackupService(env.deps)
	instances := newInstanceService(env)
	ctx := context.Background()
	env.seedInstance(t, "dbi-inc")
	env.seedBackup(t, "bak-parent", string(entity.BackupStateCompleted))
	env.dialAnyGuest()
	env.guest.On("CreateBackup", mock.Anything, mock.Anything).Return(nil)

	backup, err := svc.Create(ctx, instances,
		&entity.BackupActionRequest{InstanceID: "dbi-inc"},
		"incr", "", "bak-parent")
	require.NoError(t, err)
	assert.Equal(t, entity.BackupTypeIncremental, backup.BackupType)
	assert.Equal(t, "bak-parent", backup.ParentID)
	env.runFlows()
}

// guest 投递失败：备份标 FAILED，任务槽必须照常释放
func TestBackupCreateGuestFailure(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := NewBackupService(env.deps)
	instances := newInstanceService(env)
	ctx := context.Background()
	env.seedInstance(t, "dbi-bf")
	env.dialAnyGuest()
	env.guest.On("CreateBackup", mock.Anything, "bak-boom").Return(assert.AnError)

	_, err := svc.Create(ctx, instances,
		&entity.BackupActionRequest{InstanceID: "dbi-bf", BackupID: "bak-boom"},
		"doomed", "", "")
	require.NoError(t, err)
	env.runFlows()

	assert.Equal(t, string(entity.TaskNone), env.taskOf(t, "dbi-bf"))
	row, err := env.deps.Backups.GetByID(ctx, "bak-boom")
	require.NoError(t, err)
	assert.Equal(t, string(entity.BackupStateFailed), row.State)

	fault, err := env.deps.Faults.GetByInstanceID(ctx, "dbi-bf")
	require.NoError(t, err)
	assert.Equal(t, "guest create_backup", fault.Message)
}

func TestBackupDeleteRunningRejected(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := NewBackupService(env.deps)
	ctx := context.Background()
	env.seedBackup(t, "bak-busy", string(entity.BackupStateSaving))

	err := svc.Delete(ctx, &entity.BackupActionRequest{BackupID: "bak-busy"})
	assert.ErrorIs(t, err, apierror.ErrUnprocessable)
	// 行原样保留
	row, gerr := env.deps.Backups.GetByID(ctx, "bak-busy")
	require.NoError(t, gerr)
	assert.Equal(t, string(entity.BackupStateSaving), row.State)
}

// manifest 备份的删除先清 segment 再删 manifest，配额全生命周期净零
func TestBackupDeleteSweepsManifest(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := NewBackupService(env.deps)
	ctx := context.Background()
	env.seedBackup(t, "bak-done", string(entity.BackupStateCompleted), func(b *model.Backup) {
		b.Location = "http://object-store/database_backups/bak-done.xbstream.gz.enc"
	})
	// 建档时占掉的一份配额
	ids, err := env.deps.Quotas.Reserve(ctx, "tenant-1", map[string]int{entity.ResourceBackups: 1})
	require.NoError(t, err)
	require.NoError(t, env.deps.Quotas.Commit(ctx, ids))

	env.objects.On("HeadObject", mock.Anything, "database_backups", "bak-done.xbstream.gz.enc").
		Return(&fabric.ObjectInfo{
			Key:     "bak-done.xbstream.gz.enc",
			Headers: map[string]string{fabric.ManifestHeader: "database_segments/bak-done"},
		}, nil)
	env.objects.On("GetContainer", mock.Anything, "database_segments", "bak-done").
		Return([]fabric.ObjectInfo{
			{Key: "bak-done/00000001"},
			{Key: "bak-done/00000002"},
		}, nil)
	env.objects.On("DeleteObject", mock.Anything, "database_segments", "bak-done/00000001").Return(nil)
	env.objects.On("DeleteObject", mock.Anything, "database_segments", "bak-done/00000002").Return(nil)
	env.objects.On("DeleteObject", mock.Anything, "database_backups", "bak-done.xbstream.gz.enc").Return(nil)

	require.NoError(t, svc.Delete(ctx, &entity.BackupActionRequest{BackupID: "bak-done"}))

	_, err = env.deps.Backups.GetByID(ctx, "bak-done")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	env.objects.AssertNumberOfCalls(t, "DeleteObject", 3)

	quota, err := env.deps.Quotas.GetQuota(ctx, "tenant-1", entity.ResourceBackups)
	require.NoError(t, err)
	assert.Equal(t, 0, quota.InUse)
	assert.Equal(t, 0, quota.Reserved)
}

// 对象已经不在了视为清理完成，删除照常走完
func TestBackupDeleteMissingObject(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := NewBackupService(env.deps)
	ctx := context.Background()
	env.seedBackup(t, "bak-gone", string(entity.BackupStateCompleted), func(b *model.Backup) {
		b.Location = "http://object-store/database_backups/bak-gone.xbstream.gz.enc"
	})
	env.objects.On("HeadObject", mock.Anything, "database_backups", "bak-gone.xbstream.gz.enc").
		Return(nil, &fabric.NotFoundError{Resource: "object", ID: "bak-gone.xbstream.gz.enc"})

	require.NoError(t, svc.Delete(ctx, &entity.BackupActionRequest{BackupID: "bak-gone"}))
	_, err := env.deps.Backups.GetByID(ctx, "bak-gone")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	env.objects.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything, mock.Anything)
}

// 清理中途失败：行标 DELETE_FAILED，预扣配额回滚
func TestBackupDeleteSweepFailure(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := NewBackupService(env.deps)
	ctx := context.Background()
	env.seedBackup(t, "bak-stuck", string(entity.BackupStateCompleted), func(b *model.Backup) {
		b.Location = "http://object-store/database_backups/bak-stuck.xbstream.gz.enc"
	})
	ids, err := env.deps.Quotas.Reserve(ctx, "tenant-1", map[string]int{entity.ResourceBackups: 1})
	require.NoError(t, err)
	require.NoError(t, env.deps.Quotas.Commit(ctx, ids))

	env.objects.On("HeadObject", mock.Anything, "database_backups", "bak-stuck.xbstream.gz.enc").
		Return(&fabric.ObjectInfo{Key: "bak-stuck.xbstream.gz.enc"}, nil)
	env.objects.On("DeleteObject", mock.Anything, "database_backups", "bak-stuck.xbstream.gz.enc").
		Return(assert.AnError)

	err = svc.Delete(ctx, &entity.BackupActionRequest{BackupID: "bak-stuck"})
	assert.ErrorIs(t, err, assert.AnError)

	row, gerr := env.deps.Backups.GetByID(ctx, "bak-stuck")
	require.NoError(t, gerr)
	assert.Equal(t, string(entity.BackupStateDeleteFailed), row.State)

	quota, qerr := env.deps.Quotas.GetQuota(ctx, "tenant-1", entity.ResourceBackups)
	require.NoError(t, qerr)
	assert.Equal(t, 1, quota.InUse)
	assert.Equal(t, 0, quota.Reserved)
}
