package entity

// CreateInstanceRequest 入站 create_instance 指令载荷
type CreateInstanceRequest struct {
	// InstanceID 为空时由编排器生成
	InstanceID         string   `json:"instance_id"`
	TenantID           string   `json:"tenant_id" binding:"required"`
	Name               string   `json:"name" binding:"required"`
	FlavorID           string   `json:"flavor_id" binding:"required"`
	ImageID            string   `json:"image_id"`
	DatastoreVersionID string   `json:"datastore_version_id" binding:"required"`
	VolumeSize         int      `json:"volume_size,omitempty"`
	Databases          []string `json:"databases,omitempty"`
	Users              []string `json:"users,omitempty"`
	// BackupID 非空时从该备份恢复
	BackupID         string   `json:"backup_id,omitempty"`
	AvailabilityZone string   `json:"availability_zone,omitempty"`
	NICs             []string `json:"nics,omitempty"`
	ConfigurationID  string   `json:"configuration_id,omitempty"`
	// RootEnabled 建实例时同时开通管理账号，密码为空则自动生成
	RootEnabled  bool   `json:"root_enabled,omitempty"`
	RootPassword string `json:"root_password,omitempty"`
	// ReplicaOf 非空时建成该实例的副本
	ReplicaOf string `json:"replica_of,omitempty"`
	ClusterID string `json:"cluster_id,omitempty"`
	ShardID   string `json:"shard_id,omitempty"`
	Type      string `json:"type,omitempty"`
}

// ResizeFlavorRequest 入站 resize_flavor 指令载荷
type ResizeFlavorRequest struct {
	InstanceID  string `json:"instance_id" binding:"required"`
	OldFlavorID string `json:"old_flavor_id" binding:"required"`
	NewFlavorID string `json:"new_flavor_id" binding:"required"`
}

// ResizeVolumeRequest 入站 resize_volume 指令载荷
type ResizeVolumeRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
	NewSize    int    `json:"new_size" binding:"required"`
}

// MigrateRequest 入站 migrate 指令载荷
type MigrateRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
	// Host 指定目标宿主，为空时由 fabric 调度
	Host string `json:"host,omitempty"`
}

// InstanceActionRequest 只带实例 id 的指令载荷（delete、reboot、restart）
type InstanceActionRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
}

// BackupActionRequest 备份指令载荷
type BackupActionRequest struct {
	InstanceID string `json:"instance_id"`
	BackupID   string `json:"backup_id" binding:"required"`
}

// UpgradeRequest 入站 upgrade 指令载荷
type UpgradeRequest struct {
	InstanceID         string `json:"instance_id" binding:"required"`
	DatastoreVersionID string `json:"datastore_version_id" binding:"required"`
}

// PromoteRequest 副本提升指令载荷
type PromoteRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
}

// EjectRequest 剔除失联主库的指令载荷
type EjectRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
}

// DetachReplicaRequest 副本脱离指令载荷
type DetachReplicaRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
}

// ClusterActionRequest 集群指令载荷
type ClusterActionRequest struct {
	ClusterID string `json:"cluster_id" binding:"required"`
}

// GrowClusterRequest 集群扩容指令载荷
type GrowClusterRequest struct {
	ClusterID string   `json:"cluster_id" binding:"required"`
	NewIDs    []string `json:"new_ids" binding:"required"`
}

// ShrinkClusterRequest 集群缩容指令载荷
type ShrinkClusterRequest struct {
	ClusterID string   `json:"cluster_id" binding:"required"`
	IDs       []string `json:"ids" binding:"required"`
}

// AddShardRequest 加分片指令载荷
type AddShardRequest struct {
	ClusterID      string `json:"cluster_id" binding:"required"`
	ShardID        string `json:"shard_id" binding:"required"`
	ReplicaSetName string `json:"replica_set_name" binding:"required"`
}

// CreateClusterRequest 建群请求：先落集群和成员行，再投递 create_cluster 指令
type CreateClusterRequest struct {
	ClusterID          string                  `json:"cluster_id"`
	TenantID           string                  `json:"tenant_id" binding:"required"`
	Name               string                  `json:"name" binding:"required"`
	DatastoreVersionID string                  `json:"datastore_version_id" binding:"required"`
	ConfigurationID    string                  `json:"configuration_id,omitempty"`
	Instances          []CreateInstanceRequest `json:"instances" binding:"required"`
}
