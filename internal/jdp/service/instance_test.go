package service

import (
	"context"
	"os"
	"path/filepath"
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
	"github.com/jimyag/jdp/pkg/guestagent"
)

func newInstanceService(env *testEnv) *InstanceService {
	return NewInstanceService(env.deps, NewStatusService(env.deps))
}

func TestInstanceCreate(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.seedVersion(t, "dsv-mysql57", "mysql")
	env.dialAnyGuest()

	env.compute.On("GetFlavor", mock.Anything, "2").Return(&fabric.Flavor{ID: "2", RAMMB: 2048}, nil)
	env.volumes.On("Create", mock.Anything, 10, mock.Anything, mock.Anything, "").
		Return(&fabric.Volume{ID: "vol-1", Status: fabric.VolumeStatusCreating}, nil)
	env.volumes.On("Get", mock.Anything, "vol-1").
		Return(&fabric.Volume{ID: "vol-1", Status: fabric.VolumeStatusAvailable, SizeGB: 10}, nil)
	env.compute.On("Create", mock.Anything, mock.Anything).
		Return(&fabric.Server{ID: "srv-1", Status: fabric.ServerStatusBuild}, nil)
	env.compute.On("Get", mock.Anything, "srv-1").
		Return(&fabric.Server{ID: "srv-1", Status: fabric.ServerStatusActive, FlavorID: "2", Addresses: []string{"10.0.0.9"}}, nil)
	env.volumes.On("Attach", mock.Anything, "srv-1", "vol-1", "/dev/vdb").Return(nil)
	env.guest.On("Prepare", mock.Anything, mock.Anything).Return(nil)

	req := &entity.CreateInstanceRequest{
		InstanceID:         "dbi-1",
		TenantID:           "tenant-1",
		Name:               "db-one",
		FlavorID:           "2",
		DatastoreVersionID: "dsv-mysql57",
		VolumeSize:         10,
		Databases:          []string{"app"},
		Users:              []string{"app:secret"},
	}
	require.NoError(t, svc.Create(ctx, req))

	// 接单后任务槽立即进入 BUILDING，配额已承诺
	assert.Equal(t, string(entity.TaskBuilding), env.taskOf(t, "dbi-1"))
	quota, err := env.deps.Quotas.GetQuota(ctx, "tenant-1", entity.ResourceInstances)
	require.NoError(t, err)
	assert.Equal(t, 1, quota.InUse)

	// 引擎报活后供给流程才能收尾
	require.NoError(t, env.deps.Statuses.SetServiceStatus(ctx, "dbi-1", string(entity.ServiceStatusRunning), time.Now()))
	env.runFlows()

	inst, err := env.deps.Instances.GetByID(ctx, "dbi-1")
	require.NoError(t, err)
	assert.Equal(t, string(entity.TaskNone), inst.Task)
	assert.Equal(t, "srv-1", inst.ComputeID)
	assert.Equal(t, "vol-1", inst.VolumeID)
	assert.Equal(t, []string{"10.0.0.9"}, inst.Addresses)

	// prepare 带上了挂载点和请求级用户
	env.guest.AssertCalled(t, "Prepare", mock.Anything, mock.MatchedBy(func(req *guestagent.PrepareRequest) bool {
		return req.DevicePath == "/dev/vdb" &&
			req.MountPoint == "/var/lib/data" &&
			len(req.Users) == 1 && req.Users[0].Name == "app" &&
			len(req.Users[0].Databases) == 1
	}))

	events := env.notifier.usageByType(entity.EventInstanceCreate)
	require.Len(t, events, 1)
	assert.Equal(t, 2048, events[0].InstanceSize)
	assert.Equal(t, 10, events[0].VolumeSize)
}

func TestInstanceStackProvisioning(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.seedVersion(t, "dsv-mysql57", "mysql")
	env.dialAnyGuest()

	templatePath := filepath.Join(t.TempDir(), "instance.yaml")
	require.NoError(t, os.WriteFile(templatePath, []byte("resources: {}\n"), 0o600))
	env.deps.Cfg.StackTemplate = templatePath

	env.compute.On("GetFlavor", mock.Anything, "2").Return(&fabric.Flavor{ID: "2", RAMMB: 2048}, nil)
	env.volumes.On("Create", mock.Anything, 10, mock.Anything, mock.Anything, "").
		Return(&fabric.Volume{ID: "vol-3", Status: fabric.VolumeStatusAvailable}, nil)
	env.volumes.On("Get", mock.Anything, "vol-3").
		Return(&fabric.Volume{ID: "vol-3", Status: fabric.VolumeStatusAvailable, SizeGB: 10}, nil)
	env.stacks.On("CreateStack", mock.Anything, "dbi-3", "resources: {}\n", mock.Anything).
		Return(&fabric.Stack{ID: "stk-3", Name: "dbi-3", Status: fabric.StackStatusCreateInProgress}, nil)
	env.stacks.On("GetStack", mock.Anything, "stk-3").
		Return(&fabric.Stack{
			ID:      "stk-3",
			Status:  fabric.StackStatusCreateComplete,
			Outputs: map[string]string{"server_id": "srv-3", "address": "10.0.0.11"},
		}, nil)
	env.volumes.On("Attach", mock.Anything, "srv-3", "vol-3", "/dev/vdb").Return(nil)
	env.guest.On("Prepare", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, svc.Create(ctx, &entity.CreateInstanceRequest{
		InstanceID:         "dbi-3",
		TenantID:           "tenant-1",
		Name:               "db-three",
		FlavorID:           "2",
		DatastoreVersionID: "dsv-mysql57",
		VolumeSize:         10,
	}))
	require.NoError(t, env.deps.Statuses.SetServiceStatus(ctx, "dbi-3", string(entity.ServiceStatusRunning), time.Now()))
	env.runFlows()

	inst, err := env.deps.Instances.GetByID(ctx, "dbi-3")
	require.NoError(t, err)
	assert.Equal(t, string(entity.TaskNone), inst.Task)
	assert.Equal(t, "stk-3", inst.StackID)
	assert.Equal(t, "srv-3", inst.ComputeID)
	assert.Equal(t, []string{"10.0.0.11"}, inst.Addresses)
	env.compute.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	t.Run("删除时整栈回收", func(t *testing.T) {
		env.guest.On("StopDB", mock.Anything, true).Return(nil)
		env.stacks.On("DeleteStack", mock.Anything, "stk-3").Return(nil)
		env.stacks.On("GetStack", mock.Anything, "stk-3").Unset()
		env.stacks.On("GetStack", mock.Anything, "stk-3").
			Return(nil, &fabric.NotFoundError{Resource: "stack", ID: "stk-3"})
		env.volumes.On("Delete", mock.Anything, "vol-3").Return(nil)

		require.NoError(t, svc.Delete(ctx, &entity.InstanceActionRequest{InstanceID: "dbi-3"}))
		env.runFlows()

		_, err := env.deps.Instances.GetByID(ctx, "dbi-3")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		env.compute.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestInstanceCreateReplica(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.seedVersion(t, "dsv-mysql57", "mysql")
	env.dialAnyGuest()
	env.seedInstance(t, "dbi-master")

	env.compute.On("GetFlavor", mock.Anything, "2").Return(&fabric.Flavor{ID: "2", RAMMB: 2048}, nil)
	env.volumes.On("Create", mock.Anything, 10, mock.Anything, mock.Anything, "").
		Return(&fabric.Volume{ID: "vol-2", Status: fabric.VolumeStatusCreating}, nil)
	env.volumes.On("Get", mock.Anything, "vol-2").
		Return(&fabric.Volume{ID: "vol-2", Status: fabric.VolumeStatusAvailable, SizeGB: 10}, nil)
	env.compute.On("Create", mock.Anything, mock.Anything).
		Return(&fabric.Server{ID: "srv-2", Status: fabric.ServerStatusBuild}, nil)
	env.compute.On("Get", mock.Anything, "srv-2").
		Return(&fabric.Server{ID: "srv-2", Status: fabric.ServerStatusActive, FlavorID: "2", Addresses: []string{"10.0.0.10"}}, nil)
	env.volumes.On("Attach", mock.Anything, "srv-2", "vol-2", "/dev/vdb").Return(nil)
	env.guest.On("GetReplicationSnapshot", mock.Anything).
		Return(map[string]string{"binlog_file": "mysql-bin.000007", "binlog_pos": "4207"}, nil)
	env.guest.On("Prepare", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, svc.Create(ctx, &entity.CreateInstanceRequest{
		InstanceID:         "dbi-2",
		TenantID:           "tenant-1",
		Name:               "db-two",
		FlavorID:           "2",
		DatastoreVersionID: "dsv-mysql57",
		VolumeSize:         10,
		ReplicaOf:          "dbi-master",
	}))
	require.NoError(t, env.deps.Statuses.SetServiceStatus(ctx, "dbi-2", string(entity.ServiceStatusRunning), time.Now()))
	env.runFlows()

	inst, err := env.deps.Instances.GetByID(ctx, "dbi-2")
	require.NoError(t, err)
	assert.Equal(t, string(entity.TaskNone), inst.Task)
	assert.Equal(t, "dbi-master", inst.SlaveOfID)

	// prepare 带上主库地址和复制位点
	env.guest.AssertCalled(t, "Prepare", mock.Anything, mock.MatchedBy(func(req *guestagent.PrepareRequest) bool {
		return req.ReplicaSource != nil &&
			req.ReplicaSource.MasterHost == "10.0.0.9" &&
			req.ReplicaSource.MasterPort == 8778 &&
			req.ReplicaSource.Snapshot["binlog_file"] == "mysql-bin.000007"
	}))
}

func TestInstanceCreateRejections(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	version := env.seedVersion(t, "dsv-mysql57", "mysql")

	t.Run("卷超过接纳上限", func(t *testing.T) {
		err := svc.Create(ctx, &entity.CreateInstanceRequest{
			InstanceID:         "dbi-big",
			TenantID:           "tenant-1",
			Name:               "big",
			FlavorID:           "2",
			DatastoreVersionID: "dsv-mysql57",
			VolumeSize:         101,
		})
		assert.ErrorIs(t, err, apierror.ErrQuotaExceeded)
	})

	t.Run("版本已退役", func(t *testing.T) {
		version.Active = false
		require.NoError(t, env.deps.Datastores.UpdateVersion(ctx, version))
		defer func() {
			version.Active = true
			require.NoError(t, env.deps.Datastores.UpdateVersion(ctx, version))
		}()
		err := svc.Create(ctx, &entity.CreateInstanceRequest{
			InstanceID:         "dbi-old",
			TenantID:           "tenant-1",
			Name:               "old",
			FlavorID:           "2",
			DatastoreVersionID: "dsv-mysql57",
		})
		assert.ErrorIs(t, err, apierror.ErrBadRequest)
	})

	t.Run("主库自己是副本时拒绝", func(t *testing.T) {
		env.compute.On("GetFlavor", mock.Anything, "2").Return(&fabric.Flavor{ID: "2", RAMMB: 2048}, nil)
		env.seedInstance(t, "dbi-master", func(i *model.Instance) { i.SlaveOfID = "dbi-root" })
		err := svc.Create(ctx, &entity.CreateInstanceRequest{
			InstanceID:         "dbi-replica",
			TenantID:           "tenant-1",
			Name:               "replica",
			FlavorID:           "2",
			DatastoreVersionID: "dsv-mysql57",
			ReplicaOf:          "dbi-master",
		})
		assert.ErrorIs(t, err, apierror.ErrUnprocessable)
	})
}

func TestInstanceDelete(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.dialAnyGuest()

	t.Run("构建中的实例拒绝删除", func(t *testing.T) {
		env.seedInstance(t, "dbi-building", func(i *model.Instance) {
			i.Task = string(entity.TaskBuilding)
		})
		err := svc.Delete(ctx, &entity.InstanceActionRequest{InstanceID: "dbi-building"})
		assert.ErrorIs(t, err, apierror.ErrUnprocessable)
	})

	t.Run("删除后配额归还", func(t *testing.T) {
		// 先把用量抬上去，模拟创建时的承诺
		require.NoError(t, RunWithQuotas(ctx, env.deps.Quotas, "tenant-1",
			map[string]int{entity.ResourceInstances: 1, entity.ResourceVolumes: 10},
			func() error { return nil }))

		env.seedInstance(t, "dbi-gone")
		env.guest.On("StopDB", mock.Anything, true).Return(nil)
		env.compute.On("Delete", mock.Anything, "srv-dbi-gone").Return(nil)
		env.compute.On("Get", mock.Anything, "srv-dbi-gone").
			Return(nil, &fabric.NotFoundError{Resource: "server", ID: "srv-dbi-gone"})
		env.volumes.On("Delete", mock.Anything, "vol-dbi-gone").Return(nil)

		require.NoError(t, svc.Delete(ctx, &entity.InstanceActionRequest{InstanceID: "dbi-gone"}))
		env.runFlows()

		_, err := env.deps.Instances.GetByID(ctx, "dbi-gone")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		quota, err := env.deps.Quotas.GetQuota(ctx, "tenant-1", entity.ResourceInstances)
		require.NoError(t, err)
		assert.Equal(t, 0, quota.InUse)
		assert.Equal(t, 0, quota.Reserved)

		events := env.notifier.usageByType(entity.EventInstanceDelete)
		require.Len(t, events, 1)
		assert.NotNil(t, events[0].DeletedAt)
	})
}

func TestInstanceResizeVolume(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.dialAnyGuest()
	env.seedInstance(t, "dbi-vol")

	t.Run("只允许变大", func(t *testing.T) {
		err := svc.ResizeVolume(ctx, &entity.ResizeVolumeRequest{InstanceID: "dbi-vol", NewSize: 10})
		assert.ErrorIs(t, err, apierror.ErrBadRequest)
	})

	t.Run("超过接纳上限", func(t *testing.T) {
		err := svc.ResizeVolume(ctx, &entity.ResizeVolumeRequest{InstanceID: "dbi-vol", NewSize: 101})
		assert.ErrorIs(t, err, apierror.ErrQuotaExceeded)
	})

	t.Run("离线扩容", func(t *testing.T) {
		env.compute.On("Get", mock.Anything, "srv-dbi-vol").
			Return(&fabric.Server{ID: "srv-dbi-vol", Status: fabric.ServerStatusShutdown}, nil)
		env.volumes.On("Extend", mock.Anything, "vol-dbi-vol", 20).Return(nil)
		env.volumes.On("Get", mock.Anything, "vol-dbi-vol").
			Return(&fabric.Volume{ID: "vol-dbi-vol", Status: fabric.VolumeStatusAvailable, SizeGB: 20}, nil).Once()
		env.guest.On("ResizeFS", mock.Anything).Return(nil)
		env.guest.On("GetVolumeInfo", mock.Anything).
			Return(&guestagent.VolumeInfo{UsedGB: 4, TotalGB: 20}, nil).Once()

		require.NoError(t, svc.ResizeVolume(ctx, &entity.ResizeVolumeRequest{InstanceID: "dbi-vol", NewSize: 20}))
		env.runFlows()

		inst, err := env.deps.Instances.GetByID(ctx, "dbi-vol")
		require.NoError(t, err)
		assert.Equal(t, 20, inst.VolumeSize)
		assert.Equal(t, string(entity.TaskNone), inst.Task)

		events := env.notifier.usageByType(entity.EventInstanceModifyVolume)
		require.Len(t, events, 1)
		assert.Equal(t, 10, events[0].OldVolumeSize)
		assert.Equal(t, 20, events[0].VolumeSize)
	})

	t.Run("文件系统没长上去不落库", func(t *testing.T) {
		env.volumes.On("Extend", mock.Anything, "vol-dbi-vol", 30).Return(nil)
		env.volumes.On("Get", mock.Anything, "vol-dbi-vol").
			Return(&fabric.Volume{ID: "vol-dbi-vol", Status: fabric.VolumeStatusAvailable, SizeGB: 30}, nil)
		env.guest.On("GetVolumeInfo", mock.Anything).
			Return(&guestagent.VolumeInfo{UsedGB: 4, TotalGB: 20}, nil)

		require.NoError(t, svc.ResizeVolume(ctx, &entity.ResizeVolumeRequest{InstanceID: "dbi-vol", NewSize: 30}))
		env.runFlows()

		inst, err := env.deps.Instances.GetByID(ctx, "dbi-vol")
		require.NoError(t, err)
		assert.Equal(t, 20, inst.VolumeSize)
		assert.Equal(t, string(entity.TaskResizingVolumeError), inst.Task)
		fault, err := env.deps.Faults.GetByInstanceID(ctx, "dbi-vol")
		require.NoError(t, err)
		assert.Equal(t, "verify filesystem size", fault.Message)
	})
}

func TestInstanceRestartAlwaysFreesTaskSlot(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.dialAnyGuest()
	env.seedInstance(t, "dbi-restart")

	env.guest.On("Restart", mock.Anything).Return(assert.AnError)

	require.NoError(t, svc.Restart(ctx, &entity.InstanceActionRequest{InstanceID: "dbi-restart"}))
	assert.Equal(t, string(entity.TaskRebooting), env.taskOf(t, "dbi-restart"))

	env.runFlows()

	// 引擎重启失败只留 fault，任务槽必须释放
	assert.Equal(t, string(entity.TaskNone), env.taskOf(t, "dbi-restart"))
	fault, err := env.deps.Faults.GetByInstanceID(ctx, "dbi-restart")
	require.NoError(t, err)
	assert.Equal(t, "guest restart", fault.Message)

	// show 里带出故障记录
	view, err := svc.Get(ctx, "dbi-restart")
	require.NoError(t, err)
	require.NotNil(t, view.Fault)
	assert.Equal(t, "guest restart", view.Fault.Message)
}

func TestInstanceSecondDirectiveRejected(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newInstanceService(env)
	ctx := context.Background()
	env.seedInstance(t, "dbi-busy", func(i *model.Instance) {
		i.Task = string(entity.TaskResizing)
	})

	err := svc.Reboot(ctx, &entity.InstanceActionRequest{InstanceID: "dbi-busy"})
	assert.ErrorIs(t, err, apierror.ErrUnprocessable)
	// 在途任务不被覆盖
	assert.Equal(t, string(entity.TaskResizing), env.taskOf(t, "dbi-busy"))
}
