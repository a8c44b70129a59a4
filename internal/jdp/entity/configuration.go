package entity

import "time"

// ConfigurationGroup 一组可挂到实例上的参数覆盖
type ConfigurationGroup struct {
	ID                 string     `json:"id"` // cfg-{id}
	TenantID           string     `json:"tenant_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	DatastoreVersionID string     `json:"datastore_version_id"`
	Values             map[string]string `json:"values"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Deleted            bool       `json:"deleted,omitempty"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

// 参数类型
const (
	ParameterTypeInteger = "integer"
	ParameterTypeString  = "string"
	ParameterTypeBoolean = "boolean"
)

// ConfigurationParameter 单个参数的元数据
type ConfigurationParameter struct {
	Name               string `json:"name"`
	DatastoreVersionID string `json:"datastore_version_id"`
	Type               string `json:"type"` // integer, string, boolean
	MinValue           *int64 `json:"min,omitempty"`
	MaxValue           *int64 `json:"max,omitempty"`
	// RestartRequired 应用该参数需要重启引擎
	RestartRequired bool `json:"restart_required"`
}
