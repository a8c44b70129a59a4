package entity

import "time"

// InstanceServiceStatus 实例的最新引擎状态行
type InstanceServiceStatus struct {
	InstanceID string        `json:"instance_id"`
	Status     ServiceStatus `json:"status"`
	// UpdatedAt 取自心跳的 sent_at，单调递增
	UpdatedAt time.Time `json:"updated_at"`
}

// AgentHeartbeat guest agent 的报活记录
type AgentHeartbeat struct {
	InstanceID        string    `json:"instance_id"`
	GuestAgentVersion string    `json:"guest_agent_version,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HeartbeatPayload 入站心跳载荷
type HeartbeatPayload struct {
	InstanceID    string        `json:"instance_id" binding:"required"`
	ServiceStatus ServiceStatus `json:"service_status" binding:"required"`
	// SentAt 发送方时钟，旧于已存时间戳的心跳被丢弃
	SentAt            time.Time `json:"sent_at" binding:"required"`
	GuestAgentVersion string    `json:"guest_agent_version,omitempty"`
}

// BackupUpdatePayload 入站备份进度载荷
type BackupUpdatePayload struct {
	InstanceID string      `json:"instance_id" binding:"required"`
	BackupID   string      `json:"backup_id" binding:"required"`
	SentAt     time.Time   `json:"sent_at" binding:"required"`
	State      BackupState `json:"state,omitempty"`
	Location   string      `json:"location,omitempty"`
	SizeGB     float64     `json:"size_gb,omitempty"`
	Checksum   string      `json:"checksum,omitempty"`
	BackupType string      `json:"backup_type,omitempty"`
}
