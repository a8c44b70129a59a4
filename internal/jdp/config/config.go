package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	// Address 是 API 服务绑定地址
	// 可以通过环境变量 JDP_ADDRESS 配置
	Address string

	// DBPath 是 sqlite 数据库文件路径
	// 可以通过环境变量 JDP_DB_PATH 配置
	// 默认：~/.local/share/jdp/jdp.db
	DBPath string

	// LibvirtURI 是 libvirt 连接 URI
	// 支持以下格式：
	// - qemu:///system (本地系统连接，默认)
	// - qemu+ssh://user@host/system (SSH 远程连接)
	// - qemu+tcp://host/system (TCP 远程连接)
	// 可以通过环境变量 LIBVIRT_URI 配置
	LibvirtURI string

	// DataDir 是数据目录，用于存放镜像、cloud-init ISO 等
	DataDir string

	// PoolName 是 libvirt 存储池名字
	PoolName string

	// Bridge 是实例网络使用的网桥
	Bridge string

	// Region 标识本控制面所在的区域，会带在用量事件里
	Region string

	// ServiceID 是本服务在用量事件中上报的服务标识
	ServiceID string

	// GuestPort 是 guest agent 的监听端口
	GuestPort int

	// AgentCallTimeout 是单次 guest agent 调用的超时
	AgentCallTimeout time.Duration

	// AgentHeartbeatExpiry 是心跳过期时间，超过则实例视为失联
	AgentHeartbeatExpiry time.Duration

	// UsageTimeout 是实例创建后等待 guest 就绪的最长时间
	UsageTimeout time.Duration

	// RestartTimeout 是等待 guest 重启完成的最长时间
	RestartTimeout time.Duration

	// RebootFabricTimeout 是等待底层虚机重启完成的最长时间
	RebootFabricTimeout time.Duration

	// ResizeTimeout 是等待规格变更（整个确认/回滚流程）的最长时间
	ResizeTimeout time.Duration

	// VolumeTimeout 是卷创建/扩容的最长等待时间
	VolumeTimeout time.Duration

	// ServerDeleteTimeout 是删除实例时等待虚机消失的最长时间
	ServerDeleteTimeout time.Duration

	// ClusterDeadline 是集群编排（建群/扩容/缩容）的总时限
	ClusterDeadline time.Duration

	// EjectQuarantine 是主库驱逐前心跳需要静默的时长
	// 心跳比现在新于该窗口时拒绝驱逐
	EjectQuarantine time.Duration

	// PollInterval 是各类轮询的休眠间隔
	PollInterval time.Duration

	// UsageAuditInterval 是存在性审计事件的发送周期，0 表示关闭
	UsageAuditInterval time.Duration

	// MaxAcceptedVolumeSize 单卷可接受的最大容量 GB
	MaxAcceptedVolumeSize int

	// BackupContainer 备份数据所在的对象存储容器
	BackupContainer string

	// DNSEnabled 控制是否为实例注册 DNS 记录
	DNSEnabled bool

	// DNSDomain 是实例记录挂载的域
	DNSDomain string

	// StackTemplate 是按模板栈供给实例时使用的编排模板文件
	// 为空时走普通的计算 fabric 供给
	StackTemplate string

	// QuotaDefaults 是各资源的默认配额上限
	QuotaDefaults map[string]int
}

func New() (*Config, error) {
	dataDir := getDataDir()
	cfg := &Config{
		Address:               getEnvString("JDP_ADDRESS", "0.0.0.0:8779"),
		DBPath:                getEnvString("JDP_DB_PATH", filepath.Join(dataDir, "jdp.db")),
		LibvirtURI:            getLibvirtURI(),
		DataDir:               dataDir,
		PoolName:              getEnvString("JDP_POOL_NAME", "jdp"),
		Bridge:                getEnvString("JDP_BRIDGE", "br0"),
		Region:                getEnvString("JDP_REGION", "LOCAL_DEV"),
		ServiceID:             getEnvString("JDP_SERVICE_ID", "jdp"),
		GuestPort:             getEnvInt("JDP_GUEST_PORT", 8778),
		AgentCallTimeout:      getEnvDuration("JDP_AGENT_CALL_TIMEOUT", 25*time.Second),
		AgentHeartbeatExpiry:  getEnvDuration("JDP_AGENT_HEARTBEAT_EXPIRY", 60*time.Second),
		UsageTimeout:          getEnvDuration("JDP_USAGE_TIMEOUT", 900*time.Second),
		RestartTimeout:        getEnvDuration("JDP_RESTART_TIMEOUT", 300*time.Second),
		RebootFabricTimeout:   getEnvDuration("JDP_REBOOT_FABRIC_TIMEOUT", 120*time.Second),
		ResizeTimeout:         getEnvDuration("JDP_RESIZE_TIMEOUT", 600*time.Second),
		VolumeTimeout:         getEnvDuration("JDP_VOLUME_TIMEOUT", 180*time.Second),
		ServerDeleteTimeout:   getEnvDuration("JDP_SERVER_DELETE_TIMEOUT", 480*time.Second),
		ClusterDeadline:       getEnvDuration("JDP_CLUSTER_DEADLINE", 1800*time.Second),
		EjectQuarantine:       getEnvDuration("JDP_EJECT_QUARANTINE", 60*time.Second),
		PollInterval:          getEnvDuration("JDP_POLL_INTERVAL", 3*time.Second),
		UsageAuditInterval:    getEnvDuration("JDP_USAGE_AUDIT_INTERVAL", 0),
		MaxAcceptedVolumeSize: getEnvInt("JDP_MAX_ACCEPTED_VOLUME_SIZE", 100),
		BackupContainer:       getEnvString("JDP_BACKUP_CONTAINER", "database_backups"),
		DNSEnabled:            getEnvBool("JDP_DNS_ENABLED", false),
		DNSDomain:             getEnvString("JDP_DNS_DOMAIN", "jdp.local."),
		StackTemplate:         getEnvString("JDP_STACK_TEMPLATE", ""),
		QuotaDefaults: map[string]int{
			"instances": getEnvInt("JDP_QUOTA_INSTANCES", 10),
			"volumes":   getEnvInt("JDP_QUOTA_VOLUMES", 40),
			"backups":   getEnvInt("JDP_QUOTA_BACKUPS", 50),
		},
	}
	return cfg, nil
}

// getLibvirtURI 获取 libvirt URI，优先使用环境变量
func getLibvirtURI() string {
	if uri := os.Getenv("LIBVIRT_URI"); uri != "" {
		return uri
	}
	if uri := os.Getenv("JDP_LIBVIRT_URI"); uri != "" {
		return uri
	}
	return "qemu:///system"
}

// getDataDir 获取数据目录，优先使用环境变量
func getDataDir() string {
	if dir := os.Getenv("JDP_DATA_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "jdp")
	}
	return filepath.Join(".", "data")
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvDuration 解析时长，同时兼容纯秒数写法
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
