// Package cloudinit 生成数据库实例的 cloud-init 引导负载
// guest agent 的身份信息和配置通过 write_files 注入，实例首次启动时生效
package cloudinit

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	// GuestInfoPath guest 身份文件在实例里的路径
	GuestInfoPath = "/etc/jdp/conf.d/guest_info.yaml"
	// AgentConfigPath guest agent 配置文件在实例里的路径
	AgentConfigPath = "/etc/jdp/jdp-guestagent.yaml"
)

// Generator cloud-init 负载生成器
type Generator struct{}

// NewGenerator 创建生成器
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateMetaData 生成 meta-data 文件内容
func (g *Generator) GenerateMetaData(instanceID, hostname string) (string, error) {
	if instanceID == "" {
		return "", fmt.Errorf("instance id is required")
	}
	if hostname == "" {
		hostname = instanceID
	}

	yamlData, err := yaml.Marshal(&MetaData{
		InstanceID:    instanceID,
		LocalHostname: hostname,
	})
	if err != nil {
		return "", fmt.Errorf("marshal meta-data: %w", err)
	}
	return string(yamlData), nil
}

// GenerateGuestUserData 从 GuestConfig 生成 user-data 文件内容
func (g *Generator) GenerateGuestUserData(cfg *GuestConfig) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("guest config is required")
	}
	if cfg.Info.InstanceID == "" {
		return "", fmt.Errorf("guest instance id is required")
	}
	if cfg.Info.DatastoreManager == "" {
		return "", fmt.Errorf("datastore manager is required")
	}

	infoYAML, err := yaml.Marshal(&cfg.Info)
	if err != nil {
		return "", fmt.Errorf("marshal guest info: %w", err)
	}

	userData := &UserData{
		WriteFiles: []WriteFile{
			{
				Path:        GuestInfoPath,
				Content:     string(infoYAML),
				Owner:       "jdp:jdp",
				Permissions: "0600",
			},
		},
	}
	if cfg.AgentConfig != "" {
		userData.WriteFiles = append(userData.WriteFiles, WriteFile{
			Path:        AgentConfigPath,
			Content:     cfg.AgentConfig,
			Owner:       "jdp:jdp",
			Permissions: "0600",
		})
	}

	// 注入顺序固定，避免同样的输入生成不同的负载
	paths := make([]string, 0, len(cfg.InjectedFiles))
	for path := range cfg.InjectedFiles {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		userData.WriteFiles = append(userData.WriteFiles, WriteFile{
			Path:        path,
			Content:     cfg.InjectedFiles[path],
			Owner:       "root:root",
			Permissions: "0644",
		})
	}

	userData.RunCmd = cfg.RestartCmd

	return g.GenerateUserDataFromStruct(userData)
}

// GenerateUserDataFromStruct 序列化 UserData 并添加 cloud-config 头
func (g *Generator) GenerateUserDataFromStruct(userData *UserData) (string, error) {
	if userData == nil {
		return "", fmt.Errorf("user data is required")
	}
	yamlData, err := yaml.Marshal(userData)
	if err != nil {
		return "", fmt.Errorf("marshal user-data: %w", err)
	}
	return "#cloud-config\n" + string(yamlData), nil
}
