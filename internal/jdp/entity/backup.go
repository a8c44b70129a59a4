package entity

import (
	"strings"
	"time"
)

// BackupState 备份状态，由 guest 的 update_backup 心跳推进
type BackupState string

const (
	BackupStateNew          BackupState = "NEW"
	BackupStateBuilding     BackupState = "BUILDING"
	BackupStateSaving       BackupState = "SAVING"
	BackupStateCompleted    BackupState = "COMPLETED"
	BackupStateFailed       BackupState = "FAILED"
	BackupStateDeleteFailed BackupState = "DELETE_FAILED"
)

// 备份类型
const (
	BackupTypeFull        = "full"
	BackupTypeIncremental = "incremental"
)

// Backup 备份记录
type Backup struct {
	ID          string `json:"id"` // bak-{id}
	TenantID    string `json:"tenant_id"`
	InstanceID  string `json:"instance_id"`
	ParentID    string `json:"parent_id,omitempty"` // 增量链的上一个备份
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	State BackupState `json:"state"`
	// Location 对象存储 URI，最后一段是文件名
	Location   string  `json:"location,omitempty"`
	SizeGB     float64 `json:"size_gb,omitempty"`
	Checksum   string  `json:"checksum,omitempty"`
	BackupType string  `json:"backup_type,omitempty"`

	DatastoreVersionID string `json:"datastore_version_id"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Deleted   bool       `json:"deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Filename location 的最后一段
func (b *Backup) Filename() string {
	if b.Location == "" {
		return ""
	}
	parts := strings.Split(strings.TrimRight(b.Location, "/"), "/")
	return parts[len(parts)-1]
}

// IsRunning 备份还在进行中，进行中的备份不允许删除
func (b *Backup) IsRunning() bool {
	switch b.State {
	case BackupStateNew, BackupStateBuilding, BackupStateSaving:
		return true
	}
	return false
}

// IsDone 备份已经终结
func (b *Backup) IsDone() bool {
	switch b.State {
	case BackupStateCompleted, BackupStateFailed, BackupStateDeleteFailed:
		return true
	}
	return false
}
