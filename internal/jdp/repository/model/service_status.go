package model

import "time"

// ServiceStatus 实例引擎状态表
// updated_at 取自心跳的 sent_at，只允许单调前进
type ServiceStatus struct {
	InstanceID string    `gorm:"primaryKey;type:text;column:instance_id" json:"instance_id"`
	Status     string    `gorm:"type:text;not null;column:status" json:"status"`
	UpdatedAt  time.Time `gorm:"type:datetime;not null;column:updated_at" json:"updated_at"`
}

// TableName 指定表名
func (ServiceStatus) TableName() string {
	return "service_statuses"
}

// AgentHeartbeat agent 报活表
type AgentHeartbeat struct {
	InstanceID        string    `gorm:"primaryKey;type:text;column:instance_id" json:"instance_id"`
	GuestAgentVersion string    `gorm:"type:text;column:guest_agent_version" json:"guest_agent_version"`
	UpdatedAt         time.Time `gorm:"type:datetime;not null;column:updated_at" json:"updated_at"`
}

// TableName 指定表名
func (AgentHeartbeat) TableName() string {
	return "agent_heartbeats"
}

// Fault 任务失败记录表
type Fault struct {
	InstanceID string    `gorm:"primaryKey;type:text;column:instance_id" json:"instance_id"`
	Message    string    `gorm:"type:text;not null;column:message" json:"message"`
	Details    string    `gorm:"type:text;column:details" json:"details"`
	CreatedAt  time.Time `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
}

// TableName 指定表名
func (Fault) TableName() string {
	return "faults"
}
