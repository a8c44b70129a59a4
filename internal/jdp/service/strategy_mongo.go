package service

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/guestagent"
)

// mongoStrategy 分片拓扑：config server + query router + 按 shard_id 分组的副本集
// 组网顺序固定：先把 config server 告诉路由，再逐个分片建副本集并挂到路由上
type mongoStrategy struct{}

func (st *mongoStrategy) CreateCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, members []*model.Instance) error {
	if err := cs.waitMembersReady(ctx, members); err != nil {
		return err
	}
	members, err := cs.refreshMembers(ctx, cluster.ID)
	if err != nil {
		return err
	}
	configServers, routers, dataMembers := splitMongoMembers(members)
	if len(routers) == 0 || len(configServers) == 0 {
		return apierror.Wrapf(apierror.ErrBadRequest, nil,
			"cluster %s needs at least one query router and one config server", cluster.ID)
	}

	cfgIPs := memberIPs(configServers)
	g, gctx := errgroup.WithContext(ctx)
	for _, router := range routers {
		router := router
		g.Go(func() error {
			return cs.guestCall(gctx, router, func(ctx context.Context, client guestagent.Client) error {
				return client.AddConfigServers(ctx, cfgIPs)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for shardID, shard := range groupByShard(dataMembers) {
		if err := st.buildShard(ctx, cs, shardID, shard, routers[0]); err != nil {
			return err
		}
	}

	// 管理凭据在一个路由上创建，其余路由只落盘密码
	password := uuid.NewString()
	if err := cs.guestCall(ctx, routers[0], func(ctx context.Context, client guestagent.Client) error {
		return client.CreateAdminUser(ctx, password)
	}); err != nil {
		return err
	}
	for _, router := range routers[1:] {
		if err := cs.guestCall(ctx, router, func(ctx context.Context, client guestagent.Client) error {
			return client.StoreAdminPassword(ctx, password)
		}); err != nil {
			return err
		}
	}

	return cs.clusterComplete(ctx, members)
}

func (st *mongoStrategy) GrowCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, existing, added []*model.Instance) error {
	if err := cs.waitMembersReady(ctx, added); err != nil {
		return err
	}
	members, err := cs.refreshMembers(ctx, cluster.ID)
	if err != nil {
		return err
	}
	addedSet := memberIDSet(added)
	added = pickMembers(members, addedSet)
	existing = excludeMembers(members, addedSet)

	configServers, oldRouters, _ := splitMongoMembers(existing)
	if len(oldRouters) == 0 {
		return apierror.Wrapf(apierror.ErrBadRequest, nil,
			"cluster %s has no query router to coordinate growth", cluster.ID)
	}
	_, newRouters, newDataMembers := splitMongoMembers(added)

	if len(newRouters) > 0 {
		cfgIPs := memberIPs(configServers)
		password, err := st.adminPassword(ctx, cs, oldRouters[0])
		if err != nil {
			return err
		}
		for _, router := range newRouters {
			if err := cs.guestCall(ctx, router, func(ctx context.Context, client guestagent.Client) error {
				if err := client.AddConfigServers(ctx, cfgIPs); err != nil {
					return err
				}
				return client.StoreAdminPassword(ctx, password)
			}); err != nil {
				return err
			}
		}
	}

	existingShards := groupByShard(existing)
	for shardID, shard := range groupByShard(newDataMembers) {
		if current, ok := existingShards[shardID]; ok {
			// 分片已存在时只把新成员并入既有副本集
			ips := memberIPs(shard)
			if err := cs.guestCall(ctx, current[0], func(ctx context.Context, client guestagent.Client) error {
				return client.AddMembers(ctx, ips)
			}); err != nil {
				return &shardFailure{members: shard, err: err}
			}
			continue
		}
		if err := st.buildShard(ctx, cs, shardID, shard, oldRouters[0]); err != nil {
			return err
		}
	}

	return cs.clusterComplete(ctx, added)
}

func (st *mongoStrategy) AddShard(ctx context.Context, cs *ClusterService, cluster *model.Cluster, shardMembers []*model.Instance, replicaSetName string) error {
	if err := cs.waitMembersReady(ctx, shardMembers); err != nil {
		return err
	}
	members, err := cs.refreshMembers(ctx, cluster.ID)
	if err != nil {
		return err
	}
	shardSet := memberIDSet(shardMembers)
	shardMembers = pickMembers(members, shardSet)
	if len(shardMembers) == 0 {
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "cluster %s shard has no members", cluster.ID)
	}
	_, routers, _ := splitMongoMembers(excludeMembers(members, shardSet))
	if len(routers) == 0 {
		return apierror.Wrapf(apierror.ErrBadRequest, nil,
			"cluster %s has no query router to register the shard on", cluster.ID)
	}
	if replicaSetName == "" {
		replicaSetName = shardMembers[0].ShardID
	}

	if err := st.buildShard(ctx, cs, replicaSetName, shardMembers, routers[0]); err != nil {
		return err
	}
	return cs.clusterComplete(ctx, shardMembers)
}

// buildShard 把一个 shard_id 分组编成副本集并挂到路由上
// 第一个成员当主，其余 AddMembers 并入；失败带出该分片的成员
func (st *mongoStrategy) buildShard(ctx context.Context, cs *ClusterService, replicaSetName string, shard []*model.Instance, router *model.Instance) error {
	if err := st.assembleShard(ctx, cs, replicaSetName, shard, router); err != nil {
		return &shardFailure{members: shard, err: err}
	}
	return nil
}

func (st *mongoStrategy) assembleShard(ctx context.Context, cs *ClusterService, replicaSetName string, shard []*model.Instance, router *model.Instance) error {
	primary := shard[0]
	if err := cs.guestCall(ctx, primary, func(ctx context.Context, client guestagent.Client) error {
		return client.PrepPrimary(ctx)
	}); err != nil {
		return err
	}
	if others := memberIPs(shard[1:]); len(others) > 0 {
		if err := cs.guestCall(ctx, primary, func(ctx context.Context, client guestagent.Client) error {
			return client.AddMembers(ctx, others)
		}); err != nil {
			return err
		}
	}
	primaryIP := firstAddress(primary)
	return cs.guestCall(ctx, router, func(ctx context.Context, client guestagent.Client) error {
		return client.AddShard(ctx, replicaSetName, primaryIP)
	})
}

// adminPassword 从已有路由取回集群管理密码
func (st *mongoStrategy) adminPassword(ctx context.Context, cs *ClusterService, router *model.Instance) (string, error) {
	var password string
	err := cs.guestCall(ctx, router, func(ctx context.Context, client guestagent.Client) error {
		var err error
		password, err = client.GetAdminPassword(ctx)
		return err
	})
	return password, err
}

// splitMongoMembers 按成员角色切分，空 type 视同数据成员
func splitMongoMembers(members []*model.Instance) (configServers, routers, dataMembers []*model.Instance) {
	for _, member := range members {
		switch member.Type {
		case entity.InstanceTypeConfigServer:
			configServers = append(configServers, member)
		case entity.InstanceTypeQueryRouter:
			routers = append(routers, member)
		default:
			dataMembers = append(dataMembers, member)
		}
	}
	return configServers, routers, dataMembers
}

// groupByShard 数据成员按 shard_id 分组
func groupByShard(members []*model.Instance) map[string][]*model.Instance {
	shards := make(map[string][]*model.Instance)
	for _, member := range members {
		shards[member.ShardID] = append(shards[member.ShardID], member)
	}
	return shards
}

// excludeMembers 取 ID 集合的补集
func excludeMembers(members []*model.Instance, ids map[string]struct{}) []*model.Instance {
	rest := make([]*model.Instance, 0, len(members))
	for _, member := range members {
		if _, ok := ids[member.ID]; !ok {
			rest = append(rest, member)
		}
	}
	return rest
}
