// Package fabric 定义编排器对基础设施（计算、块存储、对象存储、DNS、编排模板）的驱动接口
// 所有调用对编排器来说都是同步的，长操作通过状态字段轮询收敛
package fabric

import (
	"context"
	"errors"
)

// 计算 fabric 返回的 server 状态
const (
	ServerStatusBuild        = "BUILD"
	ServerStatusActive       = "ACTIVE"
	ServerStatusError        = "ERROR"
	ServerStatusReboot       = "REBOOT"
	ServerStatusResize       = "RESIZE"
	ServerStatusVerifyResize = "VERIFY_RESIZE"
	ServerStatusShutdown     = "SHUTDOWN"
	ServerStatusDeleted      = "DELETED"
)

// Server 计算实例信息
type Server struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`    // BUILD, ACTIVE, ERROR, ...
	Addresses []string `json:"addresses"` // 第一个地址用于 DNS 和 guest RPC
	FlavorID  string   `json:"flavor_id"`
	Host      string   `json:"host"` // 宿主机（迁移时使用）
}

// Flavor 实例规格
type Flavor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	RAMMB  int    `json:"ram_mb"`
	VCPUs  int    `json:"vcpus"`
	DiskGB int    `json:"disk_gb"`
}

// BlockDeviceMapping 块设备映射
type BlockDeviceMapping struct {
	VolumeID            string `json:"volume_id"`
	DeviceName          string `json:"device_name"`
	DeleteOnTermination bool   `json:"delete_on_termination"`
}

// CreateServerRequest 创建计算实例请求
type CreateServerRequest struct {
	Name               string              `json:"name"`
	ImageID            string              `json:"image_id"`
	FlavorID           string              `json:"flavor_id"`
	Files              map[string]string   `json:"files,omitempty"`    // 文件注入：路径 -> 内容
	UserData           []byte              `json:"userdata,omitempty"` // cloud-init 负载
	SecurityGroups     []string            `json:"security_groups,omitempty"`
	BlockDeviceMapping *BlockDeviceMapping `json:"block_device_mapping,omitempty"`
	AvailabilityZone   string              `json:"availability_zone,omitempty"`
	NICs               []string            `json:"nics,omitempty"`
}

// ComputeDriver 计算 fabric 驱动
type ComputeDriver interface {
	Create(ctx context.Context, req *CreateServerRequest) (*Server, error)
	Get(ctx context.Context, id string) (*Server, error)
	Delete(ctx context.Context, id string) error
	Reboot(ctx context.Context, id string) error
	Resize(ctx context.Context, id, newFlavorID string) error
	ConfirmResize(ctx context.Context, id string) error
	RevertResize(ctx context.Context, id string) error
	Migrate(ctx context.Context, id, forceHost string) error
	GetFlavor(ctx context.Context, id string) (*Flavor, error)
}

// Volume 块存储卷信息
type Volume struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"` // creating, available, in-use, error
	SizeGB   int    `json:"size_gb"`
	ServerID string `json:"server_id,omitempty"` // 已附加到的实例
	Device   string `json:"device,omitempty"`
}

// 块存储 fabric 返回的 volume 状态
const (
	VolumeStatusCreating  = "creating"
	VolumeStatusAvailable = "available"
	VolumeStatusInUse     = "in-use"
	VolumeStatusError     = "error"
)

// VolumeDriver 块存储 fabric 驱动
type VolumeDriver interface {
	Create(ctx context.Context, sizeGB int, name, description, volumeType string) (*Volume, error)
	Get(ctx context.Context, id string) (*Volume, error)
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, newSizeGB int) error
	Attach(ctx context.Context, serverID, volumeID, device string) error
	Detach(ctx context.Context, serverID, volumeID string) error
}

// ObjectInfo 对象存储中单个对象的元信息
type ObjectInfo struct {
	Key          string            `json:"key"`
	SizeBytes    int64             `json:"size_bytes"`
	ETag         string            `json:"etag"`
	ContentType  string            `json:"content_type"`
	Headers      map[string]string `json:"headers,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
}

// ObjectStoreDriver 对象存储驱动
// 备份数据以 manifest + segment 的形式存放
type ObjectStoreDriver interface {
	HeadObject(ctx context.Context, container, key string) (*ObjectInfo, error)
	GetContainer(ctx context.Context, container, prefix string) ([]ObjectInfo, error)
	DeleteObject(ctx context.Context, container, key string) error
}

// DNSDriver DNS 驱动
type DNSDriver interface {
	CreateInstanceEntry(ctx context.Context, instanceID, address string) error
	DeleteInstanceEntry(ctx context.Context, instanceID string) error
	DetermineHostname(instanceID string) string
}

// Stack 编排模板栈信息
type Stack struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // CREATE_IN_PROGRESS, CREATE_COMPLETE, CREATE_FAILED, DELETE_COMPLETE
	// Outputs 模板声明的输出，server_id / address 由此取
	Outputs map[string]string `json:"outputs,omitempty"`
}

// 编排模板栈的状态
const (
	StackStatusCreateInProgress = "CREATE_IN_PROGRESS"
	StackStatusCreateComplete   = "CREATE_COMPLETE"
	StackStatusCreateFailed     = "CREATE_FAILED"
	StackStatusDeleteComplete   = "DELETE_COMPLETE"
)

// StackDriver 模板编排驱动（可选，按模板创建实例的部署方式）
type StackDriver interface {
	CreateStack(ctx context.Context, name, template string, parameters map[string]string) (*Stack, error)
	GetStack(ctx context.Context, id string) (*Stack, error)
	DeleteStack(ctx context.Context, id string) error
}

// NotFoundError fabric 资源不存在
// 删除流程轮询到 NotFound 即认为资源已释放
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return "fabric: " + e.Resource + " " + e.ID + " not found"
}

// IsNotFound 判断是否为资源不存在错误
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
