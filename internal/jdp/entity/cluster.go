package entity

import "time"

// Cluster 数据库集群
// 成员关系通过扫描 cluster_id 匹配的实例行派生，不单独存表
type Cluster struct {
	ID                 string     `json:"id"` // cls-{id}
	TenantID           string     `json:"tenant_id"`
	Name               string     `json:"name"`
	DatastoreVersionID string     `json:"datastore_version_id"`
	Task               Task       `json:"task"`
	ConfigurationID    string     `json:"configuration_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Deleted            bool       `json:"deleted,omitempty"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

// ClusterView 对外返回的集群视图
type ClusterView struct {
	Cluster
	Instances []InstanceView `json:"instances,omitempty"`
}
