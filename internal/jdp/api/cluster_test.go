package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/pkg/apierror"
)

// MockClusterService 是 ClusterServiceInterface 的 mock 实现
type MockClusterService struct {
	mock.Mock
}

func (m *MockClusterService) Get(ctx context.Context, id string) (*entity.ClusterView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ClusterView), args.Error(1)
}

func (m *MockClusterService) List(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.Cluster, string, error) {
	args := m.Called(ctx, tenantID, opts)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]*entity.Cluster), args.String(1), args.Error(2)
}

func (m *MockClusterService) Register(ctx context.Context, req *entity.CreateClusterRequest) (*entity.Cluster, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Cluster), args.Error(1)
}

func (m *MockClusterService) CreateCluster(ctx context.Context, req *entity.ClusterActionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockClusterService) GrowCluster(ctx context.Context, req *entity.GrowClusterRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockClusterService) ShrinkCluster(ctx context.Context, req *entity.ShrinkClusterRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockClusterService) DeleteCluster(ctx context.Context, req *entity.ClusterActionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockClusterService) AddShard(ctx context.Context, req *entity.AddShardRequest) error {
	return m.Called(ctx, req).Error(0)
}

func newClusterRouter(mockService *MockClusterService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	clusterAPI := &Cluster{
		clusterService: mockService,
	}
	router := gin.Default()
	apiGroup := router.Group("/api")
	clusterAPI.RegisterRoutes(apiGroup)
	return router
}

func TestCluster_CreateCluster(t *testing.T) {
	t.Parallel()

	createReq := &entity.CreateClusterRequest{
		TenantID:           "tenant-1",
		Name:               "redis-ring",
		DatastoreVersionID: "dsv-redis70",
		Instances: []entity.CreateInstanceRequest{
			{TenantID: "tenant-1", Name: "m1", FlavorID: "2", DatastoreVersionID: "dsv-redis70"},
		},
	}

	testcases := []struct {
		name         string
		mockSetup    func(*MockClusterService)
		expectStatus int
	}{
		{
			name: "落行并投递建群指令",
			mockSetup: func(m *MockClusterService) {
				m.On("Register", mock.Anything, mock.AnythingOfType("*entity.CreateClusterRequest")).
					Return(&entity.Cluster{ID: "cls-1", Name: "redis-ring", Task: entity.TaskBuilding}, nil)
				m.On("CreateCluster", mock.Anything, &entity.ClusterActionRequest{ClusterID: "cls-1"}).
					Return(nil)
			},
			expectStatus: http.StatusOK,
		},
		{
			name: "未知 manager 返回 400",
			mockSetup: func(m *MockClusterService) {
				m.On("Register", mock.Anything, mock.AnythingOfType("*entity.CreateClusterRequest")).
					Return(nil, apierror.Wrapf(apierror.ErrBadRequest, nil, "no cluster strategy for manager postgresql"))
			},
			expectStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mockService := new(MockClusterService)
			tc.mockSetup(mockService)
			router := newClusterRouter(mockService)

			w := postJSON(router, "/api/clusters/create", createReq)

			assert.Equal(t, tc.expectStatus, w.Code)
			if tc.expectStatus == http.StatusOK {
				var cluster entity.Cluster
				assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &cluster))
				assert.Equal(t, "cls-1", cluster.ID)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestCluster_GrowCluster(t *testing.T) {
	t.Parallel()

	mockService := new(MockClusterService)
	mockService.On("GrowCluster", mock.Anything, mock.AnythingOfType("*entity.GrowClusterRequest")).
		Return(nil)
	router := newClusterRouter(mockService)

	w := postJSON(router, "/api/clusters/grow", &entity.GrowClusterRequest{
		ClusterID: "cls-1",
		NewIDs:    []string{"dbi-4", "dbi-5"},
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockService.AssertExpectations(t)
}

func TestCluster_SecondDirectiveRejected(t *testing.T) {
	t.Parallel()

	mockService := new(MockClusterService)
	mockService.On("ShrinkCluster", mock.Anything, mock.Anything).
		Return(apierror.Wrapf(apierror.ErrUnprocessable, nil, "cluster cls-1 has another task in flight"))
	router := newClusterRouter(mockService)

	w := postJSON(router, "/api/clusters/shrink", &entity.ShrinkClusterRequest{
		ClusterID: "cls-1",
		IDs:       []string{"dbi-3"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertExpectations(t)
}

func TestCluster_ShowCluster(t *testing.T) {
	t.Parallel()

	mockService := new(MockClusterService)
	mockService.On("Get", mock.Anything, "cls-1").
		Return(&entity.ClusterView{
			Cluster: entity.Cluster{ID: "cls-1", Name: "redis-ring"},
			Instances: []entity.InstanceView{
				{Instance: entity.Instance{ID: "dbi-1"}, Status: "ACTIVE"},
			},
		}, nil)
	router := newClusterRouter(mockService)

	w := postJSON(router, "/api/clusters/show", &entity.DescribeClusterRequest{ClusterID: "cls-1"})

	assert.Equal(t, http.StatusOK, w.Code)
	var view entity.ClusterView
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Len(t, view.Instances, 1)
	mockService.AssertExpectations(t)
}
