package cloudinit

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ISOBuilder 把 cloud-init 负载打包成 NoCloud ISO
type ISOBuilder struct {
	generator *Generator
}

// NewISOBuilder 创建 ISO 构建器
func NewISOBuilder() *ISOBuilder {
	return &ISOBuilder{generator: NewGenerator()}
}

// BuildOptions ISO 构建选项
type BuildOptions struct {
	// Name 实例名（也用于 ISO 文件名）
	Name string
	// OutputDir ISO 输出目录
	OutputDir string
	// Guest 引导负载
	Guest *GuestConfig
	// Hostname 实例主机名，为空时用 Name
	Hostname string
}

// RawBuildOptions 用现成的 user-data 内容构建 ISO
type RawBuildOptions struct {
	Name      string
	OutputDir string
	// UserData 完整的 user-data 内容（含 #cloud-config 头）
	UserData string
	Hostname string
}

// BuildISO 从 GuestConfig 生成 cloud-init ISO，返回 ISO 路径
func (b *ISOBuilder) BuildISO(opts *BuildOptions) (string, error) {
	if opts.Guest == nil {
		return "", fmt.Errorf("guest config is required")
	}
	userData, err := b.generator.GenerateGuestUserData(opts.Guest)
	if err != nil {
		return "", err
	}
	return b.BuildISOFromRaw(&RawBuildOptions{
		Name:      opts.Name,
		OutputDir: opts.OutputDir,
		UserData:  userData,
		Hostname:  opts.Hostname,
	})
}

// BuildISOFromRaw 用现成的 user-data 内容生成 cloud-init ISO
func (b *ISOBuilder) BuildISOFromRaw(opts *RawBuildOptions) (string, error) {
	if opts.Name == "" {
		return "", fmt.Errorf("name is required")
	}
	if opts.UserData == "" {
		return "", fmt.Errorf("user data is required")
	}

	tmpDir, err := os.MkdirTemp("", "cloudinit-")
	if err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	metaData, err := b.generator.GenerateMetaData(opts.Name, opts.Hostname)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "meta-data"), []byte(metaData), 0o600); err != nil {
		return "", fmt.Errorf("write meta-data: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "user-data"), []byte(opts.UserData), 0o600); err != nil {
		return "", fmt.Errorf("write user-data: %w", err)
	}

	isoPath := ISOPath(opts.Name, opts.OutputDir)

	// NoCloud 数据源要求卷标为 cidata
	var cmd *exec.Cmd
	if _, err := exec.LookPath("genisoimage"); err == nil {
		cmd = exec.Command("genisoimage",
			"-output", isoPath,
			"-volid", "cidata",
			"-joliet",
			"-rock",
			tmpDir,
		)
	} else if _, err := exec.LookPath("mkisofs"); err == nil {
		cmd = exec.Command("mkisofs",
			"-output", isoPath,
			"-volid", "cidata",
			"-joliet",
			"-rock",
			tmpDir,
		)
	} else {
		return "", fmt.Errorf("neither genisoimage nor mkisofs found")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("create ISO: %w, output: %s", err, string(output))
	}
	return isoPath, nil
}

// CleanupISO 删除实例的 cloud-init ISO
func (b *ISOBuilder) CleanupISO(name, outputDir string) error {
	if err := os.Remove(ISOPath(name, outputDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cloud-init ISO: %w", err)
	}
	return nil
}

// ISOPath 实例 cloud-init ISO 的存放路径
func ISOPath(name, outputDir string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s-cidata.iso", name))
}
