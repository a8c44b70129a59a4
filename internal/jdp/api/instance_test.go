package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/pkg/apierror"
)

// MockInstanceService 是 InstanceServiceInterface 的 mock 实现
type MockInstanceService struct {
	mock.Mock
}

func (m *MockInstanceService) Get(ctx context.Context, id string) (*entity.InstanceView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.InstanceView), args.Error(1)
}

func (m *MockInstanceService) List(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.InstanceView, string, error) {
	args := m.Called(ctx, tenantID, opts)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]*entity.InstanceView), args.String(1), args.Error(2)
}

func (m *MockInstanceService) Create(ctx context.Context, req *entity.CreateInstanceRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) Delete(ctx context.Context, req *entity.InstanceActionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) Reboot(ctx context.Context, req *entity.InstanceActionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) Restart(ctx context.Context, req *entity.InstanceActionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) ResizeFlavor(ctx context.Context, req *entity.ResizeFlavorRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) ResizeVolume(ctx context.Context, req *entity.ResizeVolumeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) Migrate(ctx context.Context, req *entity.MigrateRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) Upgrade(ctx context.Context, req *entity.UpgradeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) Promote(ctx context.Context, req *entity.PromoteRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) Eject(ctx context.Context, req *entity.EjectRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockInstanceService) Detach(ctx context.Context, req *entity.DetachReplicaRequest) error {
	return m.Called(ctx, req).Error(0)
}

// newInstanceRouter 挂好实例路由的测试 router
func newInstanceRouter(mockService *MockInstanceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	instanceAPI := &Instance{
		instanceService: mockService,
	}
	router := gin.Default()
	apiGroup := router.Group("/api")
	instanceAPI.RegisterRoutes(apiGroup)
	return router
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	reqBody, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestInstance_CreateInstance(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name         string
		req          *entity.CreateInstanceRequest
		mockSetup    func(*MockInstanceService)
		expectStatus int
	}{
		{
			name: "准入通过返回 202",
			req: &entity.CreateInstanceRequest{
				TenantID:           "tenant-1",
				Name:               "prod-db",
				FlavorID:           "2",
				DatastoreVersionID: "dsv-mysql57",
				VolumeSize:         10,
			},
			mockSetup: func(m *MockInstanceService) {
				m.On("Create", mock.Anything, mock.AnythingOfType("*entity.CreateInstanceRequest")).
					Return(nil)
			},
			expectStatus: http.StatusAccepted,
		},
		{
			name: "配额不足返回 413",
			req: &entity.CreateInstanceRequest{
				TenantID:           "tenant-1",
				Name:               "prod-db",
				FlavorID:           "2",
				DatastoreVersionID: "dsv-mysql57",
			},
			mockSetup: func(m *MockInstanceService) {
				m.On("Create", mock.Anything, mock.AnythingOfType("*entity.CreateInstanceRequest")).
					Return(apierror.Wrapf(apierror.ErrQuotaExceeded, nil, "quota exceeded for instances"))
			},
			expectStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:         "缺少必填字段返回 400",
			req:          &entity.CreateInstanceRequest{Name: "no-tenant"},
			expectStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mockService := new(MockInstanceService)
			if tc.mockSetup != nil {
				tc.mockSetup(mockService)
			}
			router := newInstanceRouter(mockService)

			w := postJSON(router, "/api/instances/create", tc.req)

			assert.Equal(t, tc.expectStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestInstance_TaskDirectives(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name         string
		path         string
		method       string
		req          any
		expectStatus int
	}{
		{
			name:   "删除实例",
			path:   "/api/instances/delete",
			method: "Delete",
			req:    &entity.InstanceActionRequest{InstanceID: "dbi-1"},
		},
		{
			name:   "重启引擎",
			path:   "/api/instances/restart",
			method: "Restart",
			req:    &entity.InstanceActionRequest{InstanceID: "dbi-1"},
		},
		{
			name:   "规格变更",
			path:   "/api/instances/resize-flavor",
			method: "ResizeFlavor",
			req:    &entity.ResizeFlavorRequest{InstanceID: "dbi-1", OldFlavorID: "2", NewFlavorID: "4"},
		},
		{
			name:   "副本提升",
			path:   "/api/instances/promote",
			method: "Promote",
			req:    &entity.PromoteRequest{InstanceID: "dbi-1"},
		},
		{
			name:   "副本脱离",
			path:   "/api/instances/detach",
			method: "Detach",
			req:    &entity.DetachReplicaRequest{InstanceID: "dbi-1"},
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mockService := new(MockInstanceService)
			mockService.On(tc.method, mock.Anything, mock.Anything).Return(nil)
			router := newInstanceRouter(mockService)

			w := postJSON(router, tc.path, tc.req)

			assert.Equal(t, http.StatusAccepted, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestInstance_TaskInFlight(t *testing.T) {
	t.Parallel()

	mockService := new(MockInstanceService)
	mockService.On("Reboot", mock.Anything, mock.Anything).
		Return(apierror.Wrapf(apierror.ErrUnprocessable, nil, "instance dbi-1 has another task in flight"))
	router := newInstanceRouter(mockService)

	w := postJSON(router, "/api/instances/reboot", &entity.InstanceActionRequest{InstanceID: "dbi-1"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertExpectations(t)
}

func TestInstance_ShowInstance(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name         string
		req          *entity.DescribeInstanceRequest
		mockSetup    func(*MockInstanceService)
		expectStatus int
	}{
		{
			name: "返回实例和投影状态",
			req:  &entity.DescribeInstanceRequest{InstanceID: "dbi-1"},
			mockSetup: func(m *MockInstanceService) {
				m.On("Get", mock.Anything, "dbi-1").
					Return(&entity.InstanceView{
						Instance: entity.Instance{ID: "dbi-1", Name: "prod-db"},
						Status:   "ACTIVE",
					}, nil)
			},
			expectStatus: http.StatusOK,
		},
		{
			name: "实例不存在返回 404",
			req:  &entity.DescribeInstanceRequest{InstanceID: "dbi-nope"},
			mockSetup: func(m *MockInstanceService) {
				m.On("Get", mock.Anything, "dbi-nope").
					Return(nil, apierror.Wrapf(apierror.ErrNotFound, nil, "instance dbi-nope not found"))
			},
			expectStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mockService := new(MockInstanceService)
			if tc.mockSetup != nil {
				tc.mockSetup(mockService)
			}
			router := newInstanceRouter(mockService)

			w := postJSON(router, "/api/instances/show", tc.req)

			assert.Equal(t, tc.expectStatus, w.Code)
			if tc.expectStatus == http.StatusOK {
				var view entity.InstanceView
				assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
				assert.Equal(t, "ACTIVE", view.Status)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestInstance_DescribeInstances(t *testing.T) {
	t.Parallel()

	mockService := new(MockInstanceService)
	mockService.On("List", mock.Anything, "tenant-1", repository.ListOptions{Limit: 2}).
		Return([]*entity.InstanceView{
			{Instance: entity.Instance{ID: "dbi-1"}, Status: "ACTIVE"},
			{Instance: entity.Instance{ID: "dbi-2"}, Status: "BUILD"},
		}, "2", nil)
	router := newInstanceRouter(mockService)

	w := postJSON(router, "/api/instances/describe", &entity.ListInstancesRequest{TenantID: "tenant-1", Limit: 2})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp entity.ListInstancesResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Instances, 2)
	assert.Equal(t, "2", resp.NextMarker)
	mockService.AssertExpectations(t)
}
