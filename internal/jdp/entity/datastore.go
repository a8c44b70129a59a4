package entity

import "time"

// Datastore 数据库种类（mysql、mongodb、redis、vertica…）
type Datastore struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// DefaultVersionID 创建实例不指定版本时使用
	DefaultVersionID string `json:"default_version_id,omitempty"`
}

// DatastoreVersion 某个数据库种类的具体版本
type DatastoreVersion struct {
	ID          string `json:"id"`
	DatastoreID string `json:"datastore_id"`
	Name        string `json:"name"` // 如 5.7、7.0
	// Manager 对应的策略和 guest manager 名字
	Manager string `json:"manager"`
	ImageID string `json:"image_id"`
	// Packages 引导时安装的软件包
	Packages string `json:"packages,omitempty"`
	Active   bool   `json:"active"`
}

// Fault 任务失败后挂在实例上的故障记录
type Fault struct {
	InstanceID string `json:"instance_id"`
	Message    string `json:"message"`
	// Details 失败时的调用栈或底层错误
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
