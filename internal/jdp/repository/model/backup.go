package model

import (
	"time"

	"gorm.io/gorm"
)

// Backup 备份表
// 备份行可以活过实例的删除
type Backup struct {
	ID          string `gorm:"primaryKey;type:text;column:id" json:"id"` // bak-{id}
	TenantID    string `gorm:"type:text;not null;index:idx_backups_tenant_id;column:tenant_id" json:"tenant_id"`
	InstanceID  string `gorm:"type:text;index:idx_backups_instance_id;column:instance_id" json:"instance_id"`
	ParentID    string `gorm:"type:text;column:parent_id" json:"parent_id"`
	Name        string `gorm:"type:text;not null;column:name" json:"name"`
	Description string `gorm:"type:text;column:description" json:"description"`

	State string `gorm:"type:text;not null;index:idx_backups_state;column:state" json:"state"`

	Location   string  `gorm:"type:text;column:location" json:"location"`
	SizeGB     float64 `gorm:"type:real;column:size_gb" json:"size_gb"`
	Checksum   string  `gorm:"type:text;column:checksum" json:"checksum"`
	BackupType string  `gorm:"type:text;column:backup_type" json:"backup_type"`

	DatastoreVersionID string `gorm:"type:text;column:datastore_version_id" json:"datastore_version_id"`

	CreatedAt time.Time      `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"type:datetime;not null;index:idx_backups_updated_at;column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"type:datetime;index:idx_backups_deleted_at;column:deleted_at" json:"deleted_at,omitempty"`
}

// TableName 指定表名
func (Backup) TableName() string {
	return "backups"
}
