// Package qemuimg 封装 qemu-img 命令行工具
// 本地驱动用它管理实例磁盘：增量镜像、扩容和完整性检查
package qemuimg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner qemu-img 操作接口，便于测试时 mock
type Runner interface {
	// CreateFromBackingFile 基于 backing file 创建增量镜像
	CreateFromBackingFile(ctx context.Context, format, backingFormat, backingFile, outputFile string) error
	// CreateEmpty 创建空白镜像
	CreateEmpty(ctx context.Context, format, outputFile string, sizeGB uint64) error
	// Resize 扩容镜像，只允许扩大
	Resize(ctx context.Context, imagePath string, sizeGB uint64) error
	// Info 返回 qemu-img info 的原始输出
	Info(ctx context.Context, imagePath string) (string, error)
	// GetFormat 返回镜像的实际格式
	GetFormat(ctx context.Context, imagePath string) (string, error)
	// Check 检查镜像完整性
	Check(ctx context.Context, imagePath, format string) error
}

// Client 调用本机 qemu-img 的默认实现
type Client struct {
	qemuImgPath string
	timeout     time.Duration
}

var _ Runner = (*Client)(nil)

// New 创建 client，qemuImgPath 为空时使用 PATH 里的 qemu-img
func New(qemuImgPath string) *Client {
	if qemuImgPath == "" {
		qemuImgPath = "qemu-img"
	}
	return &Client{
		qemuImgPath: qemuImgPath,
		// 大镜像操作可能很慢
		timeout: 30 * time.Minute,
	}
}

// WithTimeout 设置操作超时时间
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

func (c *Client) run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.qemuImgPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("qemu-img %s: %w, output: %s", args[0], err, string(output))
	}
	return output, nil
}

// CreateFromBackingFile 基于 backing file 创建增量镜像
func (c *Client) CreateFromBackingFile(ctx context.Context, format, backingFormat, backingFile, outputFile string) error {
	_, err := c.run(ctx, c.timeout, "create",
		"-f", format,
		"-F", backingFormat,
		"-b", backingFile,
		outputFile,
	)
	return err
}

// CreateEmpty 创建空白镜像
func (c *Client) CreateEmpty(ctx context.Context, format, outputFile string, sizeGB uint64) error {
	_, err := c.run(ctx, c.timeout, "create",
		"-f", format,
		outputFile,
		fmt.Sprintf("%dG", sizeGB),
	)
	return err
}

// Resize 扩容镜像到 sizeGB
// qemu-img 缩容需要 --shrink，这里不支持缩容
func (c *Client) Resize(ctx context.Context, imagePath string, sizeGB uint64) error {
	_, err := c.run(ctx, c.timeout, "resize",
		imagePath,
		fmt.Sprintf("%dG", sizeGB),
	)
	return err
}

// Info 返回 qemu-img info 的原始输出
func (c *Client) Info(ctx context.Context, imagePath string) (string, error) {
	output, err := c.run(ctx, 30*time.Second, "info", imagePath)
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// GetFormat 从 info 输出解析镜像格式（如 qcow2、raw）
func (c *Client) GetFormat(ctx context.Context, imagePath string) (string, error) {
	info, err := c.Info(ctx, imagePath)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "file format:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1]), nil
			}
		}
	}
	return "", fmt.Errorf("no file format in qemu-img info output for %s", imagePath)
}

// Check 检查镜像完整性，镜像损坏时返回错误
func (c *Client) Check(ctx context.Context, imagePath, format string) error {
	_, err := c.run(ctx, c.timeout, "check",
		"-f", format,
		imagePath,
	)
	return err
}
