package cloudinit

// MetaData cloud-init meta-data 结构
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// UserData cloud-init user-data（#cloud-config）结构
type UserData struct {
	WriteFiles  []WriteFile `yaml:"write_files,omitempty"`
	RunCmd      []string    `yaml:"runcmd,omitempty"`
	Packages    []string    `yaml:"packages,omitempty"`
	Timezone    string      `yaml:"timezone,omitempty"`
	DisableRoot bool        `yaml:"disable_root,omitempty"`
}

// WriteFile cloud-init 写入文件配置
type WriteFile struct {
	Path        string `yaml:"path"`
	Content     string `yaml:"content"`
	Owner       string `yaml:"owner,omitempty"`
	Permissions string `yaml:"permissions,omitempty"`
	Encoding    string `yaml:"encoding,omitempty"`
}

// GuestInfo 注入到实例里的 guest agent 身份信息
// agent 靠它知道自己是谁、该启动哪个 datastore manager
type GuestInfo struct {
	InstanceID       string `yaml:"guest_id"`
	ClusterID        string `yaml:"cluster_id,omitempty"`
	TenantID         string `yaml:"tenant_id"`
	DatastoreManager string `yaml:"datastore_manager"`
}

// GuestConfig 生成 guest 引导负载的全部输入
type GuestConfig struct {
	Info GuestInfo
	// AgentConfig guest agent 配置文件内容，原样注入
	AgentConfig string
	// InjectedFiles 额外注入的文件：路径 -> 内容
	InjectedFiles map[string]string
	// RestartCmd agent 读取新配置后的重启命令
	RestartCmd []string
}
