package service

import (
	"context"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
)

// mysqlStrategy mysql/pxc 的对等拓扑
// 成员之间由引擎自行组网，编排侧只等就绪后逐个收尾
type mysqlStrategy struct{}

func (st *mysqlStrategy) CreateCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, members []*model.Instance) error {
	if err := cs.waitMembersReady(ctx, members); err != nil {
		return err
	}
	// 供给流程写回的地址要重读才能拿到
	members, err := cs.refreshMembers(ctx, cluster.ID)
	if err != nil {
		return err
	}
	return cs.clusterComplete(ctx, members)
}

func (st *mysqlStrategy) GrowCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, existing, added []*model.Instance) error {
	if err := cs.waitMembersReady(ctx, added); err != nil {
		return err
	}
	members, err := cs.refreshMembers(ctx, cluster.ID)
	if err != nil {
		return err
	}
	added = pickMembers(members, memberIDSet(added))
	return cs.clusterComplete(ctx, added)
}

func (st *mysqlStrategy) AddShard(ctx context.Context, cs *ClusterService, cluster *model.Cluster, shardMembers []*model.Instance, replicaSetName string) error {
	return apierror.Wrapf(apierror.ErrBadRequest, nil, "cluster %s does not support shards", cluster.ID)
}

// memberIDSet 成员 ID 集合，刷新行后按 ID 找回同一批成员
func memberIDSet(members []*model.Instance) map[string]struct{} {
	set := make(map[string]struct{}, len(members))
	for _, member := range members {
		set[member.ID] = struct{}{}
	}
	return set
}

// pickMembers 从刷新后的全量成员里挑出指定 ID 的那部分
func pickMembers(members []*model.Instance, ids map[string]struct{}) []*model.Instance {
	picked := make([]*model.Instance, 0, len(ids))
	for _, member := range members {
		if _, ok := ids[member.ID]; ok {
			picked = append(picked, member)
		}
	}
	return picked
}
