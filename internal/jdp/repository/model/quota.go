package model

import "time"

// Quota 租户配额表，(tenant_id, resource) 唯一
type Quota struct {
	ID        uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TenantID  string    `gorm:"type:text;not null;uniqueIndex:idx_quotas_tenant_resource;column:tenant_id" json:"tenant_id"`
	Resource  string    `gorm:"type:text;not null;uniqueIndex:idx_quotas_tenant_resource;column:resource" json:"resource"`
	HardLimit int       `gorm:"type:integer;not null;column:hard_limit" json:"hard_limit"`
	InUse     int       `gorm:"type:integer;not null;default:0;column:in_use" json:"in_use"`
	Reserved  int       `gorm:"type:integer;not null;default:0;column:reserved" json:"reserved"`
	CreatedAt time.Time `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;column:updated_at" json:"updated_at"`
}

// TableName 指定表名
func (Quota) TableName() string {
	return "quotas"
}

// Reservation 挂起的配额增量表
type Reservation struct {
	ID        string    `gorm:"primaryKey;type:text;column:id" json:"id"`
	TenantID  string    `gorm:"type:text;not null;index:idx_reservations_tenant_id;column:tenant_id" json:"tenant_id"`
	Resource  string    `gorm:"type:text;not null;column:resource" json:"resource"`
	Delta     int       `gorm:"type:integer;not null;column:delta" json:"delta"`
	CreatedAt time.Time `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
}

// TableName 指定表名
func (Reservation) TableName() string {
	return "reservations"
}
