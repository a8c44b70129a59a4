package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/jdp/internal/jdp/config"
	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/fabric"
	"github.com/jimyag/jdp/pkg/guestagent"
)

// recordingNotifier 测试用通知器，把事件收进内存
type recordingNotifier struct {
	mu     sync.Mutex
	usage  []*entity.UsageEvent
	errors []*entity.ErrorEvent
}

func (n *recordingNotifier) Usage(_ context.Context, event *entity.UsageEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.usage = append(n.usage, event)
}

func (n *recordingNotifier) Error(_ context.Context, event *entity.ErrorEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, event)
}

// usageByType 取某类用量事件
func (n *recordingNotifier) usageByType(eventType string) []*entity.UsageEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*entity.UsageEvent
	for _, e := range n.usage {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

// testEnv 一套服务测试所需的仓库、mock 驱动和捕获式后台执行器
// Async 把后台任务流捕获下来，测试里用 runFlows 同步执行
type testEnv struct {
	deps     *Deps
	repo     *repository.Repository
	compute  *fabric.MockComputeDriver
	volumes  *fabric.MockVolumeDriver
	objects  *fabric.MockObjectStoreDriver
	dns      *fabric.MockDNSDriver
	stacks   *fabric.MockStackDriver
	dialer   *guestagent.MockDialer
	guest    *guestagent.MockClient
	notifier *recordingNotifier
	flows    []func()
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := repository.New(filepath.Join(t.TempDir(), "jdp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cfg := &config.Config{
		Region:                "LOCAL_DEV",
		ServiceID:             "jdp-test",
		GuestPort:             8778,
		AgentCallTimeout:      time.Second,
		UsageTimeout:          200 * time.Millisecond,
		RestartTimeout:        200 * time.Millisecond,
		RebootFabricTimeout:   200 * time.Millisecond,
		ResizeTimeout:         200 * time.Millisecond,
		VolumeTimeout:         200 * time.Millisecond,
		ServerDeleteTimeout:   200 * time.Millisecond,
		ClusterDeadline:       300 * time.Millisecond,
		EjectQuarantine:       time.Minute,
		PollInterval:          time.Millisecond,
		MaxAcceptedVolumeSize: 100,
		BackupContainer:       "database_backups",
		QuotaDefaults: map[string]int{
			entity.ResourceInstances: 10,
			entity.ResourceVolumes:   40,
			entity.ResourceBackups:   50,
		},
	}

	env := &testEnv{
		repo:     repo,
		compute:  fabric.NewMockComputeDriver(),
		volumes:  fabric.NewMockVolumeDriver(),
		objects:  fabric.NewMockObjectStoreDriver(),
		dns:      fabric.NewMockDNSDriver(),
		stacks:   fabric.NewMockStackDriver(),
		dialer:   &guestagent.MockDialer{},
		guest:    &guestagent.MockClient{},
		notifier: &recordingNotifier{},
	}
	env.deps = &Deps{
		Instances:  repository.NewInstanceRepository(repo.DB()),
		Clusters:   repository.NewClusterRepository(repo.DB()),
		Backups:    repository.NewBackupRepository(repo.DB()),
		Statuses:   repository.NewStatusRepository(repo.DB()),
		Quotas:     repository.NewQuotaRepository(repo.DB(), cfg.QuotaDefaults),
		Datastores: repository.NewDatastoreRepository(repo.DB()),
		Configs:    repository.NewConfigurationRepository(repo.DB()),
		Faults:     repository.NewFaultRepository(repo.DB()),
		Compute:    env.compute,
		Volumes:    env.volumes,
		Objects:    env.objects,
		DNS:        env.dns,
		Stacks:     env.stacks,
		Guests:     env.dialer,
		Notifier:   env.notifier,
		Cfg:        cfg,
		Async: func(fn func()) {
			env.flows = append(env.flows, fn)
		},
	}
	return env
}

// runFlows 同步执行捕获的后台任务流
func (e *testEnv) runFlows() {
	for len(e.flows) > 0 {
		fn := e.flows[0]
		e.flows = e.flows[1:]
		fn()
	}
}

// dialAnyGuest 让所有地址都拨到同一个 mock guest
func (e *testEnv) dialAnyGuest() {
	e.dialer.On("Dial", mock.Anything).Return(e.guest)
}

// seedVersion 建一个可用的数据库版本
func (e *testEnv) seedVersion(t *testing.T, id, manager string) *model.DatastoreVersion {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.deps.Datastores.CreateDatastore(ctx, &model.Datastore{
		ID:   "ds-" + manager,
		Name: manager + "-" + id,
	}))
	version := &model.DatastoreVersion{
		ID:          id,
		DatastoreID: "ds-" + manager,
		Name:        "test",
		Manager:     manager,
		ImageID:     "img-" + manager,
		Active:      true,
	}
	require.NoError(t, e.deps.Datastores.CreateVersion(ctx, version))
	return version
}

// seedInstance 落一个任务槽空闲、已拿到地址的实例行
func (e *testEnv) seedInstance(t *testing.T, id string, mutate ...func(*model.Instance)) *model.Instance {
	t.Helper()
	now := time.Now().UTC()
	inst := &model.Instance{
		ID:                 id,
		TenantID:           "tenant-1",
		Name:               "db-" + id,
		FlavorID:           "2",
		VolumeSize:         10,
		VolumeID:           "vol-" + id,
		ComputeID:          "srv-" + id,
		DatastoreVersionID: "dsv-mysql57",
		Task:               string(entity.TaskNone),
		ServerStatus:       fabric.ServerStatusActive,
		Addresses:          []string{"10.0.0.9"},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, m := range mutate {
		m(inst)
	}
	require.NoError(t, e.deps.Instances.Create(context.Background(), inst))
	return inst
}

// taskOf 读实例当前任务
func (e *testEnv) taskOf(t *testing.T, id string) string {
	t.Helper()
	inst, err := e.deps.Instances.GetByID(context.Background(), id)
	require.NoError(t, err)
	return inst.Task
}
