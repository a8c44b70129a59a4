package model

// Datastore 数据库种类表
type Datastore struct {
	ID               string `gorm:"primaryKey;type:text;column:id" json:"id"`
	Name             string `gorm:"type:text;not null;uniqueIndex:idx_datastores_name;column:name" json:"name"`
	DefaultVersionID string `gorm:"type:text;column:default_version_id" json:"default_version_id"`
}

// TableName 指定表名
func (Datastore) TableName() string {
	return "datastores"
}

// DatastoreVersion 数据库版本表
type DatastoreVersion struct {
	ID          string `gorm:"primaryKey;type:text;column:id" json:"id"`
	DatastoreID string `gorm:"type:text;not null;index:idx_dsv_datastore_id;column:datastore_id" json:"datastore_id"`
	Name        string `gorm:"type:text;not null;column:name" json:"name"`
	Manager     string `gorm:"type:text;not null;column:manager" json:"manager"`
	ImageID     string `gorm:"type:text;not null;column:image_id" json:"image_id"`
	Packages    string `gorm:"type:text;column:packages" json:"packages"`
	Active      bool   `gorm:"type:boolean;not null;default:true;column:active" json:"active"`
}

// TableName 指定表名
func (DatastoreVersion) TableName() string {
	return "datastore_versions"
}
