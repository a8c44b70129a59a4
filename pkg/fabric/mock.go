package fabric

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockComputeDriver 是 ComputeDriver 的 mock 实现
// 用于测试，不需要真实的计算 fabric
type MockComputeDriver struct {
	mock.Mock
}

// NewMockComputeDriver 创建 mock 计算驱动
func NewMockComputeDriver() *MockComputeDriver {
	return &MockComputeDriver{}
}

func (m *MockComputeDriver) Create(ctx context.Context, req *CreateServerRequest) (*Server, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Server), args.Error(1)
}

func (m *MockComputeDriver) Get(ctx context.Context, id string) (*Server, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Server), args.Error(1)
}

func (m *MockComputeDriver) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockComputeDriver) Reboot(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockComputeDriver) Resize(ctx context.Context, id, newFlavorID string) error {
	args := m.Called(ctx, id, newFlavorID)
	return args.Error(0)
}

func (m *MockComputeDriver) ConfirmResize(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockComputeDriver) RevertResize(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockComputeDriver) Migrate(ctx context.Context, id, forceHost string) error {
	args := m.Called(ctx, id, forceHost)
	return args.Error(0)
}

func (m *MockComputeDriver) GetFlavor(ctx context.Context, id string) (*Flavor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Flavor), args.Error(1)
}

var _ ComputeDriver = (*MockComputeDriver)(nil)

// MockVolumeDriver 是 VolumeDriver 的 mock 实现
type MockVolumeDriver struct {
	mock.Mock
}

// NewMockVolumeDriver 创建 mock 块存储驱动
func NewMockVolumeDriver() *MockVolumeDriver {
	return &MockVolumeDriver{}
}

func (m *MockVolumeDriver) Create(ctx context.Context, sizeGB int, name, description, volumeType string) (*Volume, error) {
	args := m.Called(ctx, sizeGB, name, description, volumeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Volume), args.Error(1)
}

func (m *MockVolumeDriver) Get(ctx context.Context, id string) (*Volume, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Volume), args.Error(1)
}

func (m *MockVolumeDriver) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockVolumeDriver) Extend(ctx context.Context, id string, newSizeGB int) error {
	args := m.Called(ctx, id, newSizeGB)
	return args.Error(0)
}

func (m *MockVolumeDriver) Attach(ctx context.Context, serverID, volumeID, device string) error {
	args := m.Called(ctx, serverID, volumeID, device)
	return args.Error(0)
}

func (m *MockVolumeDriver) Detach(ctx context.Context, serverID, volumeID string) error {
	args := m.Called(ctx, serverID, volumeID)
	return args.Error(0)
}

var _ VolumeDriver = (*MockVolumeDriver)(nil)

// MockObjectStoreDriver 是 ObjectStoreDriver 的 mock 实现
type MockObjectStoreDriver struct {
	mock.Mock
}

// NewMockObjectStoreDriver 创建 mock 对象存储驱动
func NewMockObjectStoreDriver() *MockObjectStoreDriver {
	return &MockObjectStoreDriver{}
}

func (m *MockObjectStoreDriver) HeadObject(ctx context.Context, container, key string) (*ObjectInfo, error) {
	args := m.Called(ctx, container, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ObjectInfo), args.Error(1)
}

func (m *MockObjectStoreDriver) GetContainer(ctx context.Context, container, prefix string) ([]ObjectInfo, error) {
	args := m.Called(ctx, container, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ObjectInfo), args.Error(1)
}

func (m *MockObjectStoreDriver) DeleteObject(ctx context.Context, container, key string) error {
	args := m.Called(ctx, container, key)
	return args.Error(0)
}

var _ ObjectStoreDriver = (*MockObjectStoreDriver)(nil)

// MockDNSDriver 是 DNSDriver 的 mock 实现
type MockDNSDriver struct {
	mock.Mock
}

// NewMockDNSDriver 创建 mock DNS 驱动
func NewMockDNSDriver() *MockDNSDriver {
	return &MockDNSDriver{}
}

func (m *MockDNSDriver) CreateInstanceEntry(ctx context.Context, instanceID, address string) error {
	args := m.Called(ctx, instanceID, address)
	return args.Error(0)
}

func (m *MockDNSDriver) DeleteInstanceEntry(ctx context.Context, instanceID string) error {
	args := m.Called(ctx, instanceID)
	return args.Error(0)
}

func (m *MockDNSDriver) DetermineHostname(instanceID string) string {
	args := m.Called(instanceID)
	return args.String(0)
}

var _ DNSDriver = (*MockDNSDriver)(nil)

// MockStackDriver 是 StackDriver 的 mock 实现
type MockStackDriver struct {
	mock.Mock
}

// NewMockStackDriver 创建 mock 模板编排驱动
func NewMockStackDriver() *MockStackDriver {
	return &MockStackDriver{}
}

func (m *MockStackDriver) CreateStack(ctx context.Context, name, template string, parameters map[string]string) (*Stack, error) {
	args := m.Called(ctx, name, template, parameters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stack), args.Error(1)
}

func (m *MockStackDriver) GetStack(ctx context.Context, id string) (*Stack, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stack), args.Error(1)
}

func (m *MockStackDriver) DeleteStack(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ StackDriver = (*MockStackDriver)(nil)
