package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/guestagent"
)

const (
	// redisRingSlots 哈希环槽位总数，redis cluster 固定 16384
	redisRingSlots = 16384
	redisPort      = 6379
)

// redisStrategy 哈希环拓扑
// 所有成员 meet 到首成员，槽位按成员数连续均分，余数从前往后摊
type redisStrategy struct{}

func (st *redisStrategy) CreateCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, members []*model.Instance) error {
	if err := cs.waitMembersReady(ctx, members); err != nil {
		return err
	}
	members, err := cs.refreshMembers(ctx, cluster.ID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "cluster %s has no members", cluster.ID)
	}

	headIP := firstAddress(members[0])
	g, gctx := errgroup.WithContext(ctx)
	for _, member := range members[1:] {
		member := member
		g.Go(func() error {
			return cs.guestCall(gctx, member, func(ctx context.Context, client guestagent.Client) error {
				return client.ClusterMeet(ctx, headIP, redisPort)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ranges := computeSlotRanges(redisRingSlots, len(members))
	for i, member := range members {
		first, last := ranges[i][0], ranges[i][1]
		if err := cs.guestCall(ctx, member, func(ctx context.Context, client guestagent.Client) error {
			return client.ClusterAddSlots(ctx, first, last)
		}); err != nil {
			return err
		}
	}

	return cs.clusterComplete(ctx, members)
}

func (st *redisStrategy) GrowCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, existing, added []*model.Instance) error {
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
	if len(existing) == 0 {
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "cluster %s has no existing member to meet", cluster.ID)
	}

	// 新成员只入环不分槽，槽位迁移由运维另行触发
	headIP := firstAddress(existing[0])
	g, gctx := errgroup.WithContext(ctx)
	for _, member := range added {
		member := member
		g.Go(func() error {
			return cs.guestCall(gctx, member, func(ctx context.Context, client guestagent.Client) error {
				return client.ClusterMeet(ctx, headIP, redisPort)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return cs.clusterComplete(ctx, added)
}

func (st *redisStrategy) AddShard(ctx context.Context, cs *ClusterService, cluster *model.Cluster, shardMembers []*model.Instance, replicaSetName string) error {
	return apierror.Wrapf(apierror.ErrBadRequest, nil, "cluster %s does not support shards", cluster.ID)
}

// computeSlotRanges 把 [0,total) 均分成 n 段闭区间
// 前 total%n 段多拿一个槽，并集恰好覆盖整个环且互不重叠
func computeSlotRanges(total, n int) [][2]int {
	base := total / n
	extra := total % n
	ranges := make([][2]int, 0, n)
	next := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		ranges = append(ranges, [2]int{next, next + size - 1})
		next += size
	}
	return ranges
}
