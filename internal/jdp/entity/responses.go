package entity

// ListInstancesResponse 实例列表响应
type ListInstancesResponse struct {
	Instances []*InstanceView `json:"instances"`
	// NextMarker 非空表示还有下一页
	NextMarker string `json:"next_marker,omitempty"`
}

// ListClustersResponse 集群列表响应
type ListClustersResponse struct {
	Clusters   []*Cluster `json:"clusters"`
	NextMarker string     `json:"next_marker,omitempty"`
}

// ListBackupsResponse 备份列表响应
type ListBackupsResponse struct {
	Backups    []*Backup `json:"backups"`
	NextMarker string    `json:"next_marker,omitempty"`
}

// ListConfigurationsResponse 参数组列表响应
type ListConfigurationsResponse struct {
	Configurations []*ConfigurationGroup `json:"configurations"`
	NextMarker     string                `json:"next_marker,omitempty"`
}

// ListDatastoresResponse 数据库种类列表响应
type ListDatastoresResponse struct {
	Datastores []*Datastore `json:"datastores"`
}

// ListDatastoreVersionsResponse 数据库版本列表响应
type ListDatastoreVersionsResponse struct {
	Versions []*DatastoreVersion `json:"versions"`
}

// ListParametersResponse 参数元数据列表响应
type ListParametersResponse struct {
	Parameters []*ConfigurationParameter `json:"parameters"`
}

// ShowQuotasResponse 租户配额响应
type ShowQuotasResponse struct {
	Quotas []*Quota `json:"quotas"`
}
