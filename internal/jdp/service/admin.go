package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/idgen"
)

// AdminService 管理面操作：数据库种类与版本登记、参数组、配额
type AdminService struct {
	*Deps
}

// NewAdminService 创建管理面服务
func NewAdminService(deps *Deps) *AdminService {
	return &AdminService{Deps: deps}
}

// CreateDatastore 登记一种数据库
func (s *AdminService) CreateDatastore(ctx context.Context, req *entity.CreateDatastoreRequest) (*entity.Datastore, error) {
	ds := &model.Datastore{
		ID:               req.ID,
		Name:             req.Name,
		DefaultVersionID: req.DefaultVersionID,
	}
	if err := s.Datastores.CreateDatastore(ctx, ds); err != nil {
		return nil, err
	}
	return datastoreModelToEntity(ds)
}

// ListDatastores 列出全部数据库种类
func (s *AdminService) ListDatastores(ctx context.Context) ([]*entity.Datastore, error) {
	rows, err := s.Datastores.ListDatastores(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Datastore, 0, len(rows))
	for _, row := range rows {
		e, err := datastoreModelToEntity(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// CreateDatastoreVersion 登记某种数据库的一个版本
// manager 名字必须对应已注册的集群策略或实例引擎
func (s *AdminService) CreateDatastoreVersion(ctx context.Context, req *entity.CreateDatastoreVersionRequest) (*entity.DatastoreVersion, error) {
	if _, err := s.Datastores.GetDatastore(ctx, req.DatastoreID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.Wrapf(apierror.ErrNotFound, err, "datastore %s not found", req.DatastoreID)
		}
		return nil, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	version := &model.DatastoreVersion{
		ID:          req.ID,
		DatastoreID: req.DatastoreID,
		Name:        req.Name,
		Manager:     req.Manager,
		ImageID:     req.ImageID,
		Packages:    req.Packages,
		Active:      active,
	}
	if err := s.Datastores.CreateVersion(ctx, version); err != nil {
		return nil, err
	}
	return versionModelToEntity(version)
}

// ListDatastoreVersions 列出某种数据库的全部版本
func (s *AdminService) ListDatastoreVersions(ctx context.Context, req *entity.ListDatastoreVersionsRequest) ([]*entity.DatastoreVersion, error) {
	rows, err := s.Datastores.ListVersions(ctx, req.DatastoreID)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.DatastoreVersion, 0, len(rows))
	for _, row := range rows {
		e, err := versionModelToEntity(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// CreateConfiguration 建参数覆盖组
// 所有值先按版本的参数元数据校验，未登记的参数直接拒绝
func (s *AdminService) CreateConfiguration(ctx context.Context, req *entity.CreateConfigurationRequest) (*entity.ConfigurationGroup, error) {
	if _, err := s.Datastores.GetVersion(ctx, req.DatastoreVersionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.Wrapf(apierror.ErrNotFound, err, "datastore version %s not found", req.DatastoreVersionID)
		}
		return nil, err
	}
	if err := s.validateValues(ctx, req.DatastoreVersionID, req.Values); err != nil {
		return nil, err
	}
	id, err := idgen.GenerateConfigGroupID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	group := &model.ConfigurationGroup{
		ID:                 id,
		TenantID:           req.TenantID,
		Name:               req.Name,
		Description:        req.Description,
		DatastoreVersionID: req.DatastoreVersionID,
		Values:             req.Values,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Configs.Create(ctx, group); err != nil {
		return nil, err
	}
	return configGroupModelToEntity(group)
}

// GetConfiguration 查询参数组
func (s *AdminService) GetConfiguration(ctx context.Context, id string) (*entity.ConfigurationGroup, error) {
	group, err := s.loadConfiguration(ctx, id)
	if err != nil {
		return nil, err
	}
	return configGroupModelToEntity(group)
}

// ListConfigurations 分页列出租户参数组
func (s *AdminService) ListConfigurations(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.ConfigurationGroup, string, error) {
	rows, marker, err := s.Configs.List(ctx, tenantID, opts)
	if err != nil {
		return nil, "", err
	}
	out := make([]*entity.ConfigurationGroup, 0, len(rows))
	for _, row := range rows {
		e, err := configGroupModelToEntity(row)
		if err != nil {
			return nil, "", err
		}
		out = append(out, e)
	}
	return out, marker, nil
}

// UpdateConfiguration 整体替换参数组的值，同样走元数据校验
func (s *AdminService) UpdateConfiguration(ctx context.Context, req *entity.UpdateConfigurationRequest) (*entity.ConfigurationGroup, error) {
	group, err := s.loadConfiguration(ctx, req.ConfigurationID)
	if err != nil {
		return nil, err
	}
	if err := s.validateValues(ctx, group.DatastoreVersionID, req.Values); err != nil {
		return nil, err
	}
	group.Values = req.Values
	group.UpdatedAt = time.Now().UTC()
	if err := s.Configs.Update(ctx, group); err != nil {
		return nil, err
	}
	return configGroupModelToEntity(group)
}

// DeleteConfiguration 软删参数组，已挂在实例上的引用继续按旧渲染结果生效
func (s *AdminService) DeleteConfiguration(ctx context.Context, id string) error {
	if _, err := s.loadConfiguration(ctx, id); err != nil {
		return err
	}
	return s.Configs.Delete(ctx, id)
}

// SaveParameter 登记或更新某版本的参数元数据
func (s *AdminService) SaveParameter(ctx context.Context, req *entity.SaveParameterRequest) error {
	switch req.Type {
	case entity.ParameterTypeInteger, entity.ParameterTypeString, entity.ParameterTypeBoolean:
	default:
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "unknown parameter type %q", req.Type)
	}
	return s.Configs.SaveParameter(ctx, &model.ConfigurationParameter{
		Name:               req.Name,
		DatastoreVersionID: req.DatastoreVersionID,
		Type:               req.Type,
		MinValue:           req.MinValue,
		MaxValue:           req.MaxValue,
		RestartRequired:    req.RestartRequired,
	})
}

// ListParameters 列出某版本可覆盖的参数元数据
func (s *AdminService) ListParameters(ctx context.Context, req *entity.ListParametersRequest) ([]*entity.ConfigurationParameter, error) {
	rows, err := s.Configs.ListParameters(ctx, req.DatastoreVersionID)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.ConfigurationParameter, 0, len(rows))
	for _, row := range rows {
		e, err := parameterModelToEntity(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ShowQuotas 返回租户在全部资源上的配额
func (s *AdminService) ShowQuotas(ctx context.Context, tenantID string) ([]*entity.Quota, error) {
	resources := []string{entity.ResourceInstances, entity.ResourceVolumes, entity.ResourceBackups}
	out := make([]*entity.Quota, 0, len(resources))
	for _, resource := range resources {
		quota, err := s.Quotas.GetQuota(ctx, tenantID, resource)
		if err != nil {
			return nil, err
		}
		e, err := quotaModelToEntity(quota)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// SetQuota 调整租户某资源的配额上限
func (s *AdminService) SetQuota(ctx context.Context, req *entity.SetQuotaRequest) (*entity.Quota, error) {
	switch req.Resource {
	case entity.ResourceInstances, entity.ResourceVolumes, entity.ResourceBackups:
	default:
		return nil, apierror.Wrapf(apierror.ErrBadRequest, nil, "unknown quota resource %q", req.Resource)
	}
	if req.HardLimit < 0 {
		return nil, apierror.Wrapf(apierror.ErrBadRequest, nil, "hard limit must not be negative")
	}
	if err := s.Quotas.SetLimit(ctx, req.TenantID, req.Resource, req.HardLimit); err != nil {
		return nil, err
	}
	quota, err := s.Quotas.GetQuota(ctx, req.TenantID, req.Resource)
	if err != nil {
		return nil, err
	}
	return quotaModelToEntity(quota)
}

func (s *AdminService) loadConfiguration(ctx context.Context, id string) (*model.ConfigurationGroup, error) {
	group, err := s.Configs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.Wrapf(apierror.ErrNotFound, err, "configuration group %s not found", id)
		}
		return nil, err
	}
	return group, nil
}

// validateValues 按参数元数据逐个校验覆盖值
func (s *AdminService) validateValues(ctx context.Context, datastoreVersionID string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	params, err := s.Configs.ListParameters(ctx, datastoreVersionID)
	if err != nil {
		return err
	}
	byName := make(map[string]*model.ConfigurationParameter, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	for name, value := range values {
		meta, ok := byName[name]
		if !ok {
			return apierror.Wrapf(apierror.ErrBadRequest, nil,
				"parameter %s is not supported by datastore version %s", name, datastoreVersionID)
		}
		switch meta.Type {
		case entity.ParameterTypeInteger:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return apierror.Wrapf(apierror.ErrBadRequest, err, "parameter %s expects an integer", name)
			}
			if meta.MinValue != nil && n < *meta.MinValue {
				return apierror.Wrapf(apierror.ErrBadRequest, nil,
					"parameter %s value %d is below the minimum %d", name, n, *meta.MinValue)
			}
			if meta.MaxValue != nil && n > *meta.MaxValue {
				return apierror.Wrapf(apierror.ErrBadRequest, nil,
					"parameter %s value %d is above the maximum %d", name, n, *meta.MaxValue)
			}
		case entity.ParameterTypeBoolean:
			if _, err := strconv.ParseBool(value); err != nil {
				return apierror.Wrapf(apierror.ErrBadRequest, err, "parameter %s expects a boolean", name)
			}
		}
	}
	return nil
}
