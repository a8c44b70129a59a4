// Package guestagent 是编排器到实例内 agent 的出站 RPC 客户端
// 每个实例一个 Client，同一实例上同时只有一个在途调用
package guestagent

import "context"

// Database 预建数据库
type Database struct {
	Name      string `json:"name"`
	Charset   string `json:"charset,omitempty"`
	Collation string `json:"collation,omitempty"`
}

// User 预建数据库用户
type User struct {
	Name      string   `json:"name"`
	Password  string   `json:"password"`
	Host      string   `json:"host,omitempty"`
	Databases []string `json:"databases,omitempty"`
}

// ReplicaSource 副本初始化时主库的位置信息
type ReplicaSource struct {
	MasterHost string `json:"master_host"`
	MasterPort int    `json:"master_port"`
	// Snapshot 主库当前位点快照，引擎自行解释
	Snapshot map[string]string `json:"snapshot,omitempty"`
}

// PrepareRequest guest prepare 的全部输入
type PrepareRequest struct {
	FlavorRAMMB    int            `json:"memory_mb"`
	Databases      []Database     `json:"databases,omitempty"`
	Users          []User         `json:"users,omitempty"`
	DevicePath     string         `json:"device_path,omitempty"`
	MountPoint     string         `json:"mount_point,omitempty"`
	BackupID       string         `json:"backup_id,omitempty"`
	ConfigContents string         `json:"config_contents,omitempty"`
	Overrides      string         `json:"overrides,omitempty"`
	ClusterConfig  map[string]any `json:"cluster_config,omitempty"`
	ReplicaSource  *ReplicaSource `json:"replica_source,omitempty"`
}

// VolumeInfo guest 报告的数据卷使用情况
type VolumeInfo struct {
	UsedGB  float64 `json:"used_gb"`
	TotalGB float64 `json:"total_gb"`
}

// Client 实例内 agent 的调用面
// 所有方法阻塞到 agent 返回；超时由 ctx 控制
type Client interface {
	// Prepare 初始化数据面：挂卷、建库建用户、按需恢复备份
	Prepare(ctx context.Context, req *PrepareRequest) error
	// StopDB 停库，doNotStartOnReboot 为 true 时禁用开机自启
	StopDB(ctx context.Context, doNotStartOnReboot bool) error
	// Restart 重启数据库引擎
	Restart(ctx context.Context) error
	// StartWithConfig 用新渲染的配置启动引擎
	StartWithConfig(ctx context.Context, configContents string) error
	// ResetConfiguration 回写配置但不重启
	ResetConfiguration(ctx context.Context, configContents string) error
	// CreateBackup 让 guest dump 并上传，进度走 update_backup 心跳
	CreateBackup(ctx context.Context, backupID string) error
	// UpdateGuest agent 自升级
	UpdateGuest(ctx context.Context) error
	GetVolumeInfo(ctx context.Context) (*VolumeInfo, error)
	// ResizeFS 卷扩容后放大文件系统
	ResizeFS(ctx context.Context) error
	// IsReadOnly 查询引擎是否处于只读（副本脱离后轮询用）
	IsReadOnly(ctx context.Context) (bool, error)
	// GetReplicationSnapshot 取主库当前复制位点，喂给新副本的 prepare
	GetReplicationSnapshot(ctx context.Context) (map[string]string, error)

	// redis 拓扑
	ClusterMeet(ctx context.Context, ip string, port int) error
	ClusterAddSlots(ctx context.Context, first, last int) error

	// mongodb 拓扑
	PrepPrimary(ctx context.Context) error
	AddMembers(ctx context.Context, ips []string) error
	AddShard(ctx context.Context, replicaSetName, primaryIP string) error
	AddConfigServers(ctx context.Context, ips []string) error
	CreateAdminUser(ctx context.Context, password string) error
	StoreAdminPassword(ctx context.Context, password string) error
	GetAdminPassword(ctx context.Context) (string, error)

	// vertica 拓扑
	GetPublicKeys(ctx context.Context, user string) (string, error)
	AuthorizePublicKeys(ctx context.Context, user string, keys []string) error
	InstallCluster(ctx context.Context, memberIPs []string) error

	// ClusterComplete 拓扑收尾，所有策略最后都会调
	ClusterComplete(ctx context.Context) error
}

// Dialer 按实例地址创建 Client
type Dialer interface {
	Dial(address string) Client
}
