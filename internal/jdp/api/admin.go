package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/internal/jdp/service"
	"github.com/jimyag/jdp/pkg/ginx"
)

// AdminServiceInterface 定义管理面操作的接口
type AdminServiceInterface interface {
	CreateDatastore(ctx context.Context, req *entity.CreateDatastoreRequest) (*entity.Datastore, error)
	ListDatastores(ctx context.Context) ([]*entity.Datastore, error)
	CreateDatastoreVersion(ctx context.Context, req *entity.CreateDatastoreVersionRequest) (*entity.DatastoreVersion, error)
	ListDatastoreVersions(ctx context.Context, req *entity.ListDatastoreVersionsRequest) ([]*entity.DatastoreVersion, error)
	CreateConfiguration(ctx context.Context, req *entity.CreateConfigurationRequest) (*entity.ConfigurationGroup, error)
	GetConfiguration(ctx context.Context, id string) (*entity.ConfigurationGroup, error)
	ListConfigurations(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.ConfigurationGroup, string, error)
	UpdateConfiguration(ctx context.Context, req *entity.UpdateConfigurationRequest) (*entity.ConfigurationGroup, error)
	DeleteConfiguration(ctx context.Context, id string) error
	SaveParameter(ctx context.Context, req *entity.SaveParameterRequest) error
	ListParameters(ctx context.Context, req *entity.ListParametersRequest) ([]*entity.ConfigurationParameter, error)
	ShowQuotas(ctx context.Context, tenantID string) ([]*entity.Quota, error)
	SetQuota(ctx context.Context, req *entity.SetQuotaRequest) (*entity.Quota, error)
}

type Admin struct {
	adminService AdminServiceInterface
}

func NewAdmin(adminService *service.AdminService) *Admin {
	return &Admin{
		adminService: adminService,
	}
}

func (a *Admin) RegisterRoutes(router *gin.RouterGroup) {
	datastoreRouter := router.Group("/datastores")
	datastoreRouter.POST("/create", ginx.Adapt(a.CreateDatastore))
	datastoreRouter.POST("/describe", ginx.AdaptGet(a.DescribeDatastores))
	datastoreRouter.POST("/create-version", ginx.Adapt(a.CreateDatastoreVersion))
	datastoreRouter.POST("/describe-versions", ginx.Adapt(a.DescribeDatastoreVersions))

	configRouter := router.Group("/configurations")
	configRouter.POST("/create", ginx.Adapt(a.CreateConfiguration))
	configRouter.POST("/show", ginx.Adapt(a.ShowConfiguration))
	configRouter.POST("/describe", ginx.Adapt(a.DescribeConfigurations))
	configRouter.POST("/update", ginx.Adapt(a.UpdateConfiguration))
	configRouter.POST("/delete", ginx.AdaptErr(a.DeleteConfiguration))
	configRouter.POST("/save-parameter", ginx.AdaptErr(a.SaveParameter))
	configRouter.POST("/describe-parameters", ginx.Adapt(a.DescribeParameters))

	quotaRouter := router.Group("/quotas")
	quotaRouter.POST("/show", ginx.Adapt(a.ShowQuotas))
	quotaRouter.POST("/set", ginx.Adapt(a.SetQuota))
}

func (a *Admin) CreateDatastore(ctx *gin.Context, req *entity.CreateDatastoreRequest) (*entity.Datastore, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("id", req.ID).
		Str("name", req.Name).
		Msg("CreateDatastore called")

	ds, err := a.adminService.CreateDatastore(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to create datastore")
		return nil, err
	}
	return ds, nil
}

func (a *Admin) DescribeDatastores(ctx *gin.Context) (*entity.ListDatastoresResponse, error) {
	logger := zerolog.Ctx(ctx)

	stores, err := a.adminService.ListDatastores(ctx)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to describe datastores")
		return nil, err
	}
	return &entity.ListDatastoresResponse{Datastores: stores}, nil
}

func (a *Admin) CreateDatastoreVersion(ctx *gin.Context, req *entity.CreateDatastoreVersionRequest) (*entity.DatastoreVersion, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("id", req.ID).
		Str("datastore_id", req.DatastoreID).
		Str("manager", req.Manager).
		Msg("CreateDatastoreVersion called")

	version, err := a.adminService.CreateDatastoreVersion(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to create datastore version")
		return nil, err
	}
	return version, nil
}

func (a *Admin) DescribeDatastoreVersions(ctx *gin.Context, req *entity.ListDatastoreVersionsRequest) (*entity.ListDatastoreVersionsResponse, error) {
	logger := zerolog.Ctx(ctx)

	versions, err := a.adminService.ListDatastoreVersions(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Str("datastore_id", req.DatastoreID).
			Msg("Failed to describe datastore versions")
		return nil, err
	}
	return &entity.ListDatastoreVersionsResponse{Versions: versions}, nil
}

func (a *Admin) CreateConfiguration(ctx *gin.Context, req *entity.CreateConfigurationRequest) (*entity.ConfigurationGroup, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("tenant_id", req.TenantID).
		Str("name", req.Name).
		Str("datastore_version_id", req.DatastoreVersionID).
		Msg("CreateConfiguration called")

	group, err := a.adminService.CreateConfiguration(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to create configuration group")
		return nil, err
	}
	return group, nil
}

func (a *Admin) ShowConfiguration(ctx *gin.Context, req *entity.ConfigurationActionRequest) (*entity.ConfigurationGroup, error) {
	logger := zerolog.Ctx(ctx)

	group, err := a.adminService.GetConfiguration(ctx, req.ConfigurationID)
	if err != nil {
		logger.Error().
			Err(err).
			Str("configuration_id", req.ConfigurationID).
			Msg("Failed to show configuration group")
		return nil, err
	}
	return group, nil
}

func (a *Admin) DescribeConfigurations(ctx *gin.Context, req *entity.ListConfigurationsRequest) (*entity.ListConfigurationsResponse, error) {
	logger := zerolog.Ctx(ctx)

	groups, marker, err := a.adminService.ListConfigurations(ctx, req.TenantID, repository.ListOptions{
		Limit:  req.Limit,
		Marker: req.Marker,
	})
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to describe configuration groups")
		return nil, err
	}
	return &entity.ListConfigurationsResponse{
		Configurations: groups,
		NextMarker:     marker,
	}, nil
}

func (a *Admin) UpdateConfiguration(ctx *gin.Context, req *entity.UpdateConfigurationRequest) (*entity.ConfigurationGroup, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("configuration_id", req.ConfigurationID).
		Msg("UpdateConfiguration called")

	group, err := a.adminService.UpdateConfiguration(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to update configuration group")
		return nil, err
	}
	return group, nil
}

func (a *Admin) DeleteConfiguration(ctx *gin.Context, req *entity.ConfigurationActionRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("configuration_id", req.ConfigurationID).
		Msg("DeleteConfiguration called")

	if err := a.adminService.DeleteConfiguration(ctx, req.ConfigurationID); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to delete configuration group")
		return err
	}
	return nil
}

func (a *Admin) SaveParameter(ctx *gin.Context, req *entity.SaveParameterRequest) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("datastore_version_id", req.DatastoreVersionID).
		Str("name", req.Name).
		Msg("SaveParameter called")

	if err := a.adminService.SaveParameter(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to save parameter")
		return err
	}
	return nil
}

func (a *Admin) DescribeParameters(ctx *gin.Context, req *entity.ListParametersRequest) (*entity.ListParametersResponse, error) {
	logger := zerolog.Ctx(ctx)

	params, err := a.adminService.ListParameters(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Str("datastore_version_id", req.DatastoreVersionID).
			Msg("Failed to describe parameters")
		return nil, err
	}
	return &entity.ListParametersResponse{Parameters: params}, nil
}

func (a *Admin) ShowQuotas(ctx *gin.Context, req *entity.ShowQuotaRequest) (*entity.ShowQuotasResponse, error) {
	logger := zerolog.Ctx(ctx)

	quotas, err := a.adminService.ShowQuotas(ctx, req.TenantID)
	if err != nil {
		logger.Error().
			Err(err).
			Str("tenant_id", req.TenantID).
			Msg("Failed to show quotas")
		return nil, err
	}
	return &entity.ShowQuotasResponse{Quotas: quotas}, nil
}

func (a *Admin) SetQuota(ctx *gin.Context, req *entity.SetQuotaRequest) (*entity.Quota, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("tenant_id", req.TenantID).
		Str("resource", req.Resource).
		Int("hard_limit", req.HardLimit).
		Msg("SetQuota called")

	quota, err := a.adminService.SetQuota(ctx, req)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to set quota")
		return nil, err
	}
	return quota, nil
}
