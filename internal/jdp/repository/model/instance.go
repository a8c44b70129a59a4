package model

import (
	"time"

	"gorm.io/gorm"
)

// Instance 实例表
type Instance struct {
	ID       string `gorm:"primaryKey;type:text;column:id" json:"id"` // dbi-{id}
	TenantID string `gorm:"type:text;not null;index:idx_instances_tenant_id;column:tenant_id" json:"tenant_id"`
	Name     string `gorm:"type:text;not null;column:name" json:"name"`
	Hostname string `gorm:"type:text;column:hostname" json:"hostname"`

	FlavorID   string `gorm:"type:text;not null;column:flavor_id" json:"flavor_id"`
	VolumeSize int    `gorm:"type:integer;column:volume_size" json:"volume_size"` // GB
	VolumeID   string `gorm:"type:text;column:volume_id" json:"volume_id"`
	// ComputeID 在发起 fabric 创建调用前就落库，崩溃后不丢句柄
	ComputeID string `gorm:"type:text;index:idx_instances_compute_id;column:compute_id" json:"compute_id"`
	// StackID 按模板栈供给时记下栈句柄，删除时整栈回收
	StackID string `gorm:"type:text;column:stack_id" json:"stack_id"`

	DatastoreVersionID string `gorm:"type:text;index:idx_instances_dsv_id;column:datastore_version_id" json:"datastore_version_id"`

	ServerStatus string `gorm:"type:text;column:server_status" json:"server_status"`
	Task         string `gorm:"type:text;not null;index:idx_instances_task;column:task" json:"task"`

	ClusterID string `gorm:"type:text;index:idx_instances_cluster_id;column:cluster_id" json:"cluster_id"`
	ShardID   string `gorm:"type:text;column:shard_id" json:"shard_id"`
	Type      string `gorm:"type:text;column:type" json:"type"`

	// SlaveOfID 副本指向的主库
	SlaveOfID string `gorm:"type:text;index:idx_instances_slave_of_id;column:slave_of_id" json:"slave_of_id"`

	ConfigurationID string `gorm:"type:text;column:configuration_id" json:"configuration_id"`

	// Addresses fabric 返回的地址列表，JSON 存储
	Addresses []string `gorm:"serializer:json;type:text;column:addresses" json:"addresses"`

	AvailabilityZone string `gorm:"type:text;column:availability_zone" json:"availability_zone"`
	RegionName       string `gorm:"type:text;column:region_name" json:"region_name"`

	CreatedAt time.Time      `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"type:datetime;not null;index:idx_instances_updated_at;column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"type:datetime;index:idx_instances_deleted_at;column:deleted_at" json:"deleted_at,omitempty"`
}

// TableName 指定表名
func (Instance) TableName() string {
	return "instances"
}
