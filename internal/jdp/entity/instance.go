package entity

import "time"

// 实例在集群拓扑中的角色
const (
	InstanceTypeMember       = "member"
	InstanceTypeConfigServer = "config_server"
	InstanceTypeQueryRouter  = "query_router"
)

// Instance 数据库实例
type Instance struct {
	ID       string `json:"id"` // dbi-{id}
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Hostname string `json:"hostname,omitempty"` // DNS 名（启用 DNS 时）

	FlavorID   string `json:"flavor_id"`
	VolumeSize int    `json:"volume_size,omitempty"` // GB，不用卷时为 0
	VolumeID   string `json:"volume_id,omitempty"`
	ComputeID  string `json:"compute_id,omitempty"` // 创建后由 fabric 分配

	DatastoreVersionID string `json:"datastore_version_id"`

	// ServerStatus fabric 原样回显的 server 状态
	ServerStatus string `json:"server_status,omitempty"`
	Task         Task   `json:"task"`

	// 集群成员信息
	ClusterID string `json:"cluster_id,omitempty"`
	ShardID   string `json:"shard_id,omitempty"`
	Type      string `json:"type,omitempty"` // member, config_server, query_router

	// SlaveOfID 本实例是它的副本
	SlaveOfID string `json:"slave_of_id,omitempty"`

	ConfigurationID string `json:"configuration_id,omitempty"`

	Addresses []string `json:"addresses,omitempty"`

	AvailabilityZone string `json:"availability_zone,omitempty"`
	RegionName       string `json:"region_name,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Deleted   bool       `json:"deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsReplica 是否为副本
func (i *Instance) IsReplica() bool {
	return i.SlaveOfID != ""
}

// IsClusterMember 是否为集群成员
func (i *Instance) IsClusterMember() bool {
	return i.ClusterID != ""
}

// Address 首选地址，DNS 和 guest RPC 都用它
func (i *Instance) Address() string {
	if len(i.Addresses) == 0 {
		return ""
	}
	return i.Addresses[0]
}

// InstanceView 对外返回的实例视图，Status 是投影后的稳定状态
type InstanceView struct {
	Instance
	Status string `json:"status"`
	// Fault 最近一次任务失败的记录，没有失败过则为空
	Fault *Fault `json:"fault,omitempty"`
}
