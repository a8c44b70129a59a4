package model

import (
	"time"

	"gorm.io/gorm"
)

// ConfigurationGroup 参数覆盖组表
type ConfigurationGroup struct {
	ID                 string            `gorm:"primaryKey;type:text;column:id" json:"id"` // cfg-{id}
	TenantID           string            `gorm:"type:text;not null;index:idx_cfg_tenant_id;column:tenant_id" json:"tenant_id"`
	Name               string            `gorm:"type:text;not null;column:name" json:"name"`
	Description        string            `gorm:"type:text;column:description" json:"description"`
	DatastoreVersionID string            `gorm:"type:text;not null;column:datastore_version_id" json:"datastore_version_id"`
	Values             map[string]string `gorm:"serializer:json;type:text;column:values" json:"values"`
	CreatedAt          time.Time         `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"type:datetime;not null;index:idx_cfg_updated_at;column:updated_at" json:"updated_at"`
	DeletedAt          gorm.DeletedAt    `gorm:"type:datetime;index:idx_cfg_deleted_at;column:deleted_at" json:"deleted_at,omitempty"`
}

// TableName 指定表名
func (ConfigurationGroup) TableName() string {
	return "configuration_groups"
}

// ConfigurationParameter 参数元数据表
type ConfigurationParameter struct {
	Name               string `gorm:"primaryKey;type:text;column:name" json:"name"`
	DatastoreVersionID string `gorm:"primaryKey;type:text;column:datastore_version_id" json:"datastore_version_id"`
	Type               string `gorm:"type:text;not null;column:type" json:"type"`
	MinValue           *int64 `gorm:"type:integer;column:min_value" json:"min_value"`
	MaxValue           *int64 `gorm:"type:integer;column:max_value" json:"max_value"`
	RestartRequired    bool   `gorm:"type:boolean;not null;default:false;column:restart_required" json:"restart_required"`
}

// TableName 指定表名
func (ConfigurationParameter) TableName() string {
	return "configuration_parameters"
}
