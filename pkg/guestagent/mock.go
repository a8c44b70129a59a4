package guestagent

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient Client 的 testify mock 实现
type MockClient struct {
	mock.Mock
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) Prepare(ctx context.Context, req *PrepareRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockClient) StopDB(ctx context.Context, doNotStartOnReboot bool) error {
	args := m.Called(ctx, doNotStartOnReboot)
	return args.Error(0)
}

func (m *MockClient) Restart(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) StartWithConfig(ctx context.Context, configContents string) error {
	args := m.Called(ctx, configContents)
	return args.Error(0)
}

func (m *MockClient) ResetConfiguration(ctx context.Context, configContents string) error {
	args := m.Called(ctx, configContents)
	return args.Error(0)
}

func (m *MockClient) CreateBackup(ctx context.Context, backupID string) error {
	args := m.Called(ctx, backupID)
	return args.Error(0)
}

func (m *MockClient) UpdateGuest(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) GetVolumeInfo(ctx context.Context) (*VolumeInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VolumeInfo), args.Error(1)
}

func (m *MockClient) ResizeFS(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) IsReadOnly(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockClient) GetReplicationSnapshot(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockClient) ClusterMeet(ctx context.Context, ip string, port int) error {
	args := m.Called(ctx, ip, port)
	return args.Error(0)
}

func (m *MockClient) ClusterAddSlots(ctx context.Context, first, last int) error {
	args := m.Called(ctx, first, last)
	return args.Error(0)
}

func (m *MockClient) PrepPrimary(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) AddMembers(ctx context.Context, ips []string) error {
	args := m.Called(ctx, ips)
	return args.Error(0)
}

func (m *MockClient) AddShard(ctx context.Context, replicaSetName, primaryIP string) error {
	args := m.Called(ctx, replicaSetName, primaryIP)
	return args.Error(0)
}

func (m *MockClient) AddConfigServers(ctx context.Context, ips []string) error {
	args := m.Called(ctx, ips)
	return args.Error(0)
}

func (m *MockClient) CreateAdminUser(ctx context.Context, password string) error {
	args := m.Called(ctx, password)
	return args.Error(0)
}

func (m *MockClient) StoreAdminPassword(ctx context.Context, password string) error {
	args := m.Called(ctx, password)
	return args.Error(0)
}

func (m *MockClient) GetAdminPassword(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockClient) GetPublicKeys(ctx context.Context, user string) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockClient) AuthorizePublicKeys(ctx context.Context, user string, keys []string) error {
	args := m.Called(ctx, user, keys)
	return args.Error(0)
}

func (m *MockClient) InstallCluster(ctx context.Context, memberIPs []string) error {
	args := m.Called(ctx, memberIPs)
	return args.Error(0)
}

func (m *MockClient) ClusterComplete(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockDialer Dialer 的 mock 实现，按地址返回预置的 Client
type MockDialer struct {
	mock.Mock
}

var _ Dialer = (*MockDialer)(nil)

func (m *MockDialer) Dial(address string) Client {
	args := m.Called(address)
	return args.Get(0).(Client)
}
