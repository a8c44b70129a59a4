package entity

// DescribeInstanceRequest 查询单个实例
type DescribeInstanceRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
}

// ListInstancesRequest 分页列出租户实例
type ListInstancesRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	Limit    int    `json:"limit,omitempty"`
	Marker   string `json:"marker,omitempty"`
	// IncludeDeleted 管理端可以带上已删除行
	IncludeDeleted bool `json:"include_deleted,omitempty"`
}

// DescribeClusterRequest 查询单个集群
type DescribeClusterRequest struct {
	ClusterID string `json:"cluster_id" binding:"required"`
}

// ListClustersRequest 分页列出租户集群
type ListClustersRequest struct {
	TenantID       string `json:"tenant_id" binding:"required"`
	Limit          int    `json:"limit,omitempty"`
	Marker         string `json:"marker,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// CreateBackupRequest 建备份请求
type CreateBackupRequest struct {
	InstanceID  string `json:"instance_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
	// BackupID 为空时由编排器生成
	BackupID string `json:"backup_id,omitempty"`
	// ParentID 非空时产出增量备份
	ParentID string `json:"parent_id,omitempty"`
}

// DescribeBackupRequest 查询单个备份
type DescribeBackupRequest struct {
	BackupID string `json:"backup_id" binding:"required"`
}

// ListBackupsRequest 分页列出租户备份
type ListBackupsRequest struct {
	TenantID       string `json:"tenant_id" binding:"required"`
	Limit          int    `json:"limit,omitempty"`
	Marker         string `json:"marker,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// ListInstanceBackupsRequest 列出单实例的全部备份
type ListInstanceBackupsRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
}

// CreateDatastoreRequest 注册数据库种类
type CreateDatastoreRequest struct {
	ID               string `json:"id" binding:"required"`
	Name             string `json:"name" binding:"required"`
	DefaultVersionID string `json:"default_version_id,omitempty"`
}

// CreateDatastoreVersionRequest 注册数据库版本
type CreateDatastoreVersionRequest struct {
	ID          string `json:"id" binding:"required"`
	DatastoreID string `json:"datastore_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Manager     string `json:"manager" binding:"required"`
	ImageID     string `json:"image_id" binding:"required"`
	Packages    string `json:"packages,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

// ListDatastoreVersionsRequest 列出某种类下的版本
type ListDatastoreVersionsRequest struct {
	DatastoreID string `json:"datastore_id" binding:"required"`
}

// CreateConfigurationRequest 建参数覆盖组，值会按参数元数据校验
type CreateConfigurationRequest struct {
	TenantID           string            `json:"tenant_id" binding:"required"`
	Name               string            `json:"name" binding:"required"`
	Description        string            `json:"description,omitempty"`
	DatastoreVersionID string            `json:"datastore_version_id" binding:"required"`
	Values             map[string]string `json:"values"`
}

// UpdateConfigurationRequest 整体替换参数覆盖组的值
type UpdateConfigurationRequest struct {
	ConfigurationID string            `json:"configuration_id" binding:"required"`
	Values          map[string]string `json:"values" binding:"required"`
}

// ConfigurationActionRequest 只带参数组 id 的请求（describe、delete）
type ConfigurationActionRequest struct {
	ConfigurationID string `json:"configuration_id" binding:"required"`
}

// ListConfigurationsRequest 分页列出租户参数组
type ListConfigurationsRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	Limit    int    `json:"limit,omitempty"`
	Marker   string `json:"marker,omitempty"`
}

// SaveParameterRequest 登记某版本的参数元数据
type SaveParameterRequest struct {
	DatastoreVersionID string `json:"datastore_version_id" binding:"required"`
	Name               string `json:"name" binding:"required"`
	Type               string `json:"type" binding:"required"`
	MinValue           *int64 `json:"min,omitempty"`
	MaxValue           *int64 `json:"max,omitempty"`
	RestartRequired    bool   `json:"restart_required,omitempty"`
}

// ListParametersRequest 列出某版本的参数元数据
type ListParametersRequest struct {
	DatastoreVersionID string `json:"datastore_version_id" binding:"required"`
}

// ShowQuotaRequest 查询租户在各资源上的配额
type ShowQuotaRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
}

// SetQuotaRequest 管理端调整租户配额上限
type SetQuotaRequest struct {
	TenantID  string `json:"tenant_id" binding:"required"`
	Resource  string `json:"resource" binding:"required"`
	HardLimit int    `json:"hard_limit" binding:"required"`
}
