package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
)

func newClusterService(env *testEnv) *ClusterService {
	return NewClusterService(env.deps, newInstanceService(env))
}

// seedCluster 落一个任务槽空闲的集群行
func (e *testEnv) seedCluster(t *testing.T, id, versionID string) *model.Cluster {
	t.Helper()
	now := time.Now().UTC()
	cluster := &model.Cluster{
		ID:                 id,
		TenantID:           "tenant-1",
		Name:               "cluster-" + id,
		DatastoreVersionID: versionID,
		Task:               string(entity.ClusterTaskNone),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, e.deps.Clusters.Create(context.Background(), cluster))
	return cluster
}

// seedMember 落一个集群成员并让它的引擎处于就绪态
func (e *testEnv) seedMember(t *testing.T, clusterID, id, address string, order int, mutate ...func(*model.Instance)) *model.Instance {
	t.Helper()
	inst := e.seedInstance(t, id, append([]func(*model.Instance){func(i *model.Instance) {
		i.ClusterID = clusterID
		i.Type = entity.InstanceTypeMember
		i.Addresses = []string{address}
		// created_at 排成员顺序
		i.CreatedAt = time.Now().UTC().Add(time.Duration(order) * time.Second)
	}}, mutate...)...)
	require.NoError(t, e.deps.Statuses.SetServiceStatus(context.Background(), id,
		string(entity.ServiceStatusRunning), time.Now()))
	return inst
}

func TestComputeSlotRanges(t *testing.T) {
	t.Parallel()

	t.Run("余数从前往后摊", func(t *testing.T) {
		ranges := computeSlotRanges(16384, 3)
		require.Len(t, ranges, 3)
		assert.Equal(t, [2]int{0, 5461}, ranges[0])
		assert.Equal(t, [2]int{5462, 10922}, ranges[1])
		assert.Equal(t, [2]int{10923, 16383}, ranges[2])
	})

	t.Run("整个环恰好覆盖一次", func(t *testing.T) {
		for _, n := range []int{1, 2, 3, 5, 7, 16, 100} {
			ranges := computeSlotRanges(16384, n)
			require.Len(t, ranges, n)
			next := 0
			for _, r := range ranges {
				assert.Equal(t, next, r[0])
				assert.LessOrEqual(t, r[0], r[1])
				next = r[1] + 1
			}
			assert.Equal(t, 16384, next)
		}
	})
}

func TestClusterCreateRedis(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newClusterService(env)
	ctx := context.Background()
	env.seedVersion(t, "dsv-redis70", "redis")
	env.seedCluster(t, "cls-redis", "dsv-redis70")
	env.seedMember(t, "cls-redis", "dbi-r0", "10.0.1.1", 0)
	env.seedMember(t, "cls-redis", "dbi-r1", "10.0.1.2", 1)
	env.seedMember(t, "cls-redis", "dbi-r2", "10.0.1.3", 2)
	env.dialAnyGuest()

	env.guest.On("ClusterMeet", mock.Anything, "10.0.1.1", 6379).Return(nil)
	env.guest.On("ClusterAddSlots", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	env.guest.On("ClusterComplete", mock.Anything).Return(nil)

	require.NoError(t, svc.CreateCluster(ctx, &entity.ClusterActionRequest{ClusterID: "cls-redis"}))
	env.runFlows()

	cluster, err := env.deps.Clusters.GetByID(ctx, "cls-redis")
	require.NoError(t, err)
	assert.Equal(t, string(entity.ClusterTaskNone), cluster.Task)

	// 首成员不 meet 自己，其余两个入环
	env.guest.AssertNumberOfCalls(t, "ClusterMeet", 2)
	env.guest.AssertCalled(t, "ClusterAddSlots", mock.Anything, 0, 5461)
	env.guest.AssertCalled(t, "ClusterAddSlots", mock.Anything, 5462, 10922)
	env.guest.AssertCalled(t, "ClusterAddSlots", mock.Anything, 10923, 16383)
	env.guest.AssertNumberOfCalls(t, "ClusterComplete", 3)
}

func TestClusterCreateMongo(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newClusterService(env)
	ctx := context.Background()
	env.seedVersion(t, "dsv-mongo70", "mongodb")
	env.seedCluster(t, "cls-mongo", "dsv-mongo70")
	env.seedMember(t, "cls-mongo", "dbi-cfg0", "10.0.2.1", 0, func(i *model.Instance) {
		i.Type = entity.InstanceTypeConfigServer
	})
	env.seedMember(t, "cls-mongo", "dbi-mongos0", "10.0.2.2", 1, func(i *model.Instance) {
		i.Type = entity.InstanceTypeQueryRouter
	})
	env.seedMember(t, "cls-mongo", "dbi-mongos1", "10.0.2.3", 2, func(i *model.Instance) {
		i.Type = entity.InstanceTypeQueryRouter
	})
	env.seedMember(t, "cls-mongo", "dbi-d0", "10.0.2.4", 3, func(i *model.Instance) { i.ShardID = "shard-1" })
	env.seedMember(t, "cls-mongo", "dbi-d1", "10.0.2.5", 4, func(i *model.Instance) { i.ShardID = "shard-1" })
	env.dialAnyGuest()

	env.guest.On("AddConfigServers", mock.Anything, []string{"10.0.2.1"}).Return(nil)
	env.guest.On("PrepPrimary", mock.Anything).Return(nil)
	env.guest.On("AddMembers", mock.Anything, []string{"10.0.2.5"}).Return(nil)
	env.guest.On("AddShard", mock.Anything, "shard-1", "10.0.2.4").Return(nil)
	env.guest.On("CreateAdminUser", mock.Anything, mock.Anything).Return(nil)
	env.guest.On("StoreAdminPassword", mock.Anything, mock.Anything).Return(nil)
	env.guest.On("ClusterComplete", mock.Anything).Return(nil)

	require.NoError(t, svc.CreateCluster(ctx, &entity.ClusterActionRequest{ClusterID: "cls-mongo"}))
	env.runFlows()

	cluster, err := env.deps.Clusters.GetByID(ctx, "cls-mongo")
	require.NoError(t, err)
	assert.Equal(t, string(entity.ClusterTaskNone), cluster.Task)

	// 两个路由都认识 config server，分片建在首个数据成员上
	env.guest.AssertNumberOfCalls(t, "AddConfigServers", 2)
	env.guest.AssertNumberOfCalls(t, "PrepPrimary", 1)
	env.guest.AssertCalled(t, "AddShard", mock.Anything, "shard-1", "10.0.2.4")
	// 管理凭据建一次，剩下的路由只落盘
	env.guest.AssertNumberOfCalls(t, "CreateAdminUser", 1)
	env.guest.AssertNumberOfCalls(t, "StoreAdminPassword", 1)
	env.guest.AssertNumberOfCalls(t, "ClusterComplete", 5)
}

// 分片组网单步失败：集群和出错分片的成员都停在哨兵上，其余成员不受牵连
func TestClusterCreateMongoShardFailureStampsShard(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newClusterService(env)
	ctx := context.Background()
	env.seedVersion(t, "dsv-mongo70", "mongodb")
	env.seedCluster(t, "cls-bad", "dsv-mongo70")
	env.seedMember(t, "cls-bad", "dbi-bcfg0", "10.0.3.1", 0, func(i *model.Instance) {
		i.Type = entity.InstanceTypeConfigServer
	})
	env.seedMember(t, "cls-bad", "dbi-bq0", "10.0.3.2", 1, func(i *model.Instance) {
		i.Type = entity.InstanceTypeQueryRouter
	})
	env.seedMember(t, "cls-bad", "dbi-bm0", "10.0.3.3", 2, func(i *model.Instance) { i.ShardID = "shd-1" })
	env.seedMember(t, "cls-bad", "dbi-bm1", "10.0.3.4", 3, func(i *model.Instance) { i.ShardID = "shd-1" })
	env.dialAnyGuest()

	env.guest.On("AddConfigServers", mock.Anything, []string{"10.0.3.1"}).Return(nil)
	env.guest.On("PrepPrimary", mock.Anything).Return(assert.AnError)

	require.NoError(t, svc.CreateCluster(ctx, &entity.ClusterActionRequest{ClusterID: "cls-bad"}))
	env.runFlows()

	cluster, err := env.deps.Clusters.GetByID(ctx, "cls-bad")
	require.NoError(t, err)
	assert.Equal(t, string(entity.ClusterTaskBuildingError), cluster.Task)

	// 出错分片的两个数据成员都打哨兵，config server 和路由保持空闲
	assert.Equal(t, string(entity.TaskBuildingErrorServer), env.taskOf(t, "dbi-bm0"))
	assert.Equal(t, string(entity.TaskBuildingErrorServer), env.taskOf(t, "dbi-bm1"))
	assert.Equal(t, string(entity.TaskNone), env.taskOf(t, "dbi-bcfg0"))
	assert.Equal(t, string(entity.TaskNone), env.taskOf(t, "dbi-bq0"))

	env.guest.AssertNotCalled(t, "ClusterComplete", mock.Anything)
	assert.Equal(t, 1, env.notifier.errorCount())
}

// 成员迟迟不就绪：超出时限后所有成员打上哨兵，集群任务槽释放
func TestClusterCreateDeadlineStampsMembers(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newClusterService(env)
	ctx := context.Background()
	env.seedVersion(t, "dsv-mysql57", "mysql")
	env.seedCluster(t, "cls-slow", "dsv-mysql57")
	// 成员落了库但引擎一直没报活
	env.seedInstance(t, "dbi-s0", func(i *model.Instance) { i.ClusterID = "cls-slow" })
	env.seedInstance(t, "dbi-s1", func(i *model.Instance) { i.ClusterID = "cls-slow" })

	require.NoError(t, svc.CreateCluster(ctx, &entity.ClusterActionRequest{ClusterID: "cls-slow"}))
	env.runFlows()

	assert.Equal(t, string(entity.TaskBuildingErrorServer), env.taskOf(t, "dbi-s0"))
	assert.Equal(t, string(entity.TaskBuildingErrorServer), env.taskOf(t, "dbi-s1"))

	cluster, err := env.deps.Clusters.GetByID(ctx, "cls-slow")
	require.NoError(t, err)
	assert.Equal(t, string(entity.ClusterTaskNone), cluster.Task)
	assert.Equal(t, 1, env.notifier.errorCount())
}

func TestClusterUnknownManagerRejected(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newClusterService(env)
	ctx := context.Background()
	env.seedVersion(t, "dsv-pg16", "postgresql")
	env.seedCluster(t, "cls-pg", "dsv-pg16")

	err := svc.CreateCluster(ctx, &entity.ClusterActionRequest{ClusterID: "cls-pg"})
	assert.ErrorIs(t, err, apierror.ErrBadRequest)
	// 校验失败发生在准入之前，任务槽不被占用
	cluster, gerr := env.deps.Clusters.GetByID(ctx, "cls-pg")
	require.NoError(t, gerr)
	assert.Equal(t, string(entity.ClusterTaskNone), cluster.Task)
}

func TestClusterSecondDirectiveRejected(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	svc := newClusterService(env)
	ctx := context.Background()
	env.seedVersion(t, "dsv-mysql57", "mysql")
	cluster := env.seedCluster(t, "cls-busy", "dsv-mysql57")
	cluster.Task = string(entity.ClusterTaskBuilding)
	require.NoError(t, env.deps.Clusters.Update(ctx, cluster))

	err := svc.GrowCluster(ctx, &entity.GrowClusterRequest{ClusterID: "cls-busy", NewIDs: []string{"dbi-x"}})
	assert.ErrorIs(t, err, apierror.ErrUnprocessable)
}
