package model

import "time"

// RootHistory 管理账号开通记录
// 每个实例至多一行，记录第一次开通的时间和操作者
type RootHistory struct {
	InstanceID string    `gorm:"primaryKey;type:text;column:instance_id" json:"instance_id"`
	User       string    `gorm:"type:text;column:user" json:"user"`
	CreatedAt  time.Time `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
}

// TableName 指定表名
func (RootHistory) TableName() string {
	return "root_enabled_history"
}
