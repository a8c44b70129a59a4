package entity

import "time"

// 配额资源名
const (
	ResourceInstances = "instances"
	ResourceVolumes   = "volumes"
	ResourceBackups   = "backups"
)

// Quota 租户在单个资源上的配额
// 承诺时满足 in_use + reserved <= hard_limit
type Quota struct {
	TenantID  string `json:"tenant_id"`
	Resource  string `json:"resource"`
	HardLimit int    `json:"hard_limit"`
	InUse     int    `json:"in_use"`
	Reserved  int    `json:"reserved"`
}

// Available 还能预留的额度
func (q *Quota) Available() int {
	return q.HardLimit - q.InUse - q.Reserved
}

// Reservation 一次任务的挂起配额增量
// 动作成功后 commit 进 in_use，失败则 rollback
type Reservation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Resource  string    `json:"resource"`
	Delta     int       `json:"delta"`
	CreatedAt time.Time `json:"created_at"`
}
