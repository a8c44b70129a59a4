package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/guestagent"
)

// verticaClusterUsers 组网前需要互信的系统账号
var verticaClusterUsers = []string{"root", "dbadmin"}

// verticaStrategy 安装式拓扑
// 先在所有节点间交换 SSH 公钥做互信，再在首节点上跑集群安装
type verticaStrategy struct{}

func (st *verticaStrategy) CreateCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, members []*model.Instance) error {
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

	for _, user := range verticaClusterUsers {
		if err := st.exchangeKeys(ctx, cs, members, user); err != nil {
			return err
		}
	}

	ips := memberIPs(members)
	if err := cs.guestCall(ctx, members[0], func(ctx context.Context, client guestagent.Client) error {
		return client.InstallCluster(ctx, ips)
	}); err != nil {
		return err
	}
	return cs.clusterComplete(ctx, members)
}

func (st *verticaStrategy) GrowCluster(ctx context.Context, cs *ClusterService, cluster *model.Cluster, existing, added []*model.Instance) error {
	if err := cs.waitMembersReady(ctx, added); err != nil {
		return err
	}
	members, err := cs.refreshMembers(ctx, cluster.ID)
	if err != nil {
		return err
	}
	addedSet := memberIDSet(added)
	added = pickMembers(members, addedSet)

	// 互信要覆盖全量节点，新旧节点都重新下发一遍
	for _, user := range verticaClusterUsers {
		if err := st.exchangeKeys(ctx, cs, members, user); err != nil {
			return err
		}
	}

	ips := memberIPs(members)
	if err := cs.guestCall(ctx, members[0], func(ctx context.Context, client guestagent.Client) error {
		return client.InstallCluster(ctx, ips)
	}); err != nil {
		return err
	}
	return cs.clusterComplete(ctx, added)
}

func (st *verticaStrategy) AddShard(ctx context.Context, cs *ClusterService, cluster *model.Cluster, shardMembers []*model.Instance, replicaSetName string) error {
	return apierror.Wrapf(apierror.ErrBadRequest, nil, "cluster %s does not support shards", cluster.ID)
}

// exchangeKeys 收齐指定账号在每个节点上的公钥，校验后全量回灌到每个节点
func (st *verticaStrategy) exchangeKeys(ctx context.Context, cs *ClusterService, members []*model.Instance, user string) error {
	blobs := make([]string, len(members))
	g, gctx := errgroup.WithContext(ctx)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			return cs.guestCall(gctx, member, func(ctx context.Context, client guestagent.Client) error {
				blob, err := client.GetPublicKeys(ctx, user)
				if err != nil {
					return err
				}
				blobs[i] = blob
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var keys []string
	for i, blob := range blobs {
		for _, line := range strings.Split(blob, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line)); err != nil {
				return apierror.Wrapf(apierror.ErrGuestError, err,
					"instance %s returned an invalid %s public key", members[i].ID, user)
			}
			keys = append(keys, line)
		}
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, member := range members {
		member := member
		g.Go(func() error {
			return cs.guestCall(gctx, member, func(ctx context.Context, client guestagent.Client) error {
				return client.AuthorizePublicKeys(ctx, user, keys)
			})
		})
	}
	return g.Wait()
}
