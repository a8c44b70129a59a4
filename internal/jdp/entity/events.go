package entity

import "time"

// 用量事件类型，对应 jdp.instance.* 事件族
const (
	EventInstanceCreate       = "jdp.instance.create"
	EventInstanceDelete       = "jdp.instance.delete"
	EventInstanceModifyFlavor = "jdp.instance.modify_flavor"
	EventInstanceModifyVolume = "jdp.instance.modify_volume"
	EventInstanceExists       = "jdp.instance.exists"
	EventInstanceError        = "jdp.instance.error"
)

// UsageEvent 生命周期/用量事件载荷
type UsageEvent struct {
	EventType        string     `json:"event_type"`
	InstanceID       string     `json:"instance_id"`
	TenantID         string     `json:"tenant_id"`
	InstanceName     string     `json:"instance_name"`
	InstanceSize     int        `json:"instance_size"` // flavor 内存 MB
	LaunchedAt       time.Time  `json:"launched_at"`
	CreatedAt        time.Time  `json:"created_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	ModifyAt         *time.Time `json:"modify_at,omitempty"`
	Region           string     `json:"region,omitempty"`
	AvailabilityZone string     `json:"availability_zone,omitempty"`
	ServiceID        string     `json:"service_id,omitempty"`
	UserID           string     `json:"user_id,omitempty"`
	// OldInstanceSize resize 事件里变更前的规格
	OldInstanceSize int `json:"old_instance_size,omitempty"`
	VolumeSize      int `json:"volume_size,omitempty"`
	OldVolumeSize   int `json:"old_volume_size,omitempty"`
}

// ErrorEvent 错误/状态事件载荷，仅作通报
type ErrorEvent struct {
	EventType  string    `json:"event_type"`
	InstanceID string    `json:"instance_id,omitempty"`
	ClusterID  string    `json:"cluster_id,omitempty"`
	TenantID   string    `json:"tenant_id,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
