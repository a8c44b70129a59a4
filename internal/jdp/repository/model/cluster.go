package model

import (
	"time"

	"gorm.io/gorm"
)

// Cluster 集群表
// 成员不单独存表，扫描 instances.cluster_id 派生
type Cluster struct {
	ID                 string         `gorm:"primaryKey;type:text;column:id" json:"id"` // cls-{id}
	TenantID           string         `gorm:"type:text;not null;index:idx_clusters_tenant_id;column:tenant_id" json:"tenant_id"`
	Name               string         `gorm:"type:text;not null;column:name" json:"name"`
	DatastoreVersionID string         `gorm:"type:text;not null;column:datastore_version_id" json:"datastore_version_id"`
	Task               string         `gorm:"type:text;not null;column:task" json:"task"`
	ConfigurationID    string         `gorm:"type:text;column:configuration_id" json:"configuration_id"`
	CreatedAt          time.Time      `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"type:datetime;not null;index:idx_clusters_updated_at;column:updated_at" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"type:datetime;index:idx_clusters_deleted_at;column:deleted_at" json:"deleted_at,omitempty"`
}

// TableName 指定表名
func (Cluster) TableName() string {
	return "clusters"
}
