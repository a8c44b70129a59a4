// Package entity 定义业务实体
package entity

import "strings"

// Task 实例或集群上的任务指令
// 任一时刻每行最多一个任务在途，NONE 是唯一可接受新指令的状态
type Task string

// 实例任务指令
const (
	TaskNone           Task = "NONE"
	TaskBuilding       Task = "BUILDING"
	TaskRebooting      Task = "REBOOTING"
	TaskResizing       Task = "RESIZING"
	TaskResizingVolume Task = "RESIZING_VOLUME"
	TaskMigrating      Task = "MIGRATING"
	TaskDeleting       Task = "DELETING"
	TaskPromoting      Task = "PROMOTING"
	TaskEjecting       Task = "EJECTING"
	TaskUpgrading      Task = "UPGRADING"
	TaskBackingUp      Task = "BACKING_UP"

	// 错误哨兵：任务失败后停在对应的 *_ERROR 上等待人工处理
	TaskBuildingErrorVolume Task = "BUILDING_ERROR_VOLUME"
	TaskBuildingErrorServer Task = "BUILDING_ERROR_SERVER"
	TaskBuildingErrorDNS    Task = "BUILDING_ERROR_DNS"
	TaskBuildingErrorGuest  Task = "BUILDING_ERROR_GUEST"
	TaskRebootingError      Task = "REBOOTING_ERROR"
	TaskResizingError       Task = "RESIZING_ERROR"
	TaskResizingVolumeError Task = "RESIZING_VOLUME_ERROR"
	TaskMigratingError      Task = "MIGRATING_ERROR"
	TaskDeletingError       Task = "DELETING_ERROR"
	TaskPromotingError      Task = "PROMOTING_ERROR"
	TaskEjectingError       Task = "EJECTING_ERROR"
	TaskUpgradingError      Task = "UPGRADING_ERROR"
	TaskBackingUpError      Task = "BACKING_UP_ERROR"
)

// 集群任务指令
const (
	ClusterTaskNone          Task = "NONE"
	ClusterTaskBuilding      Task = "BUILDING"
	ClusterTaskGrowing       Task = "GROWING"
	ClusterTaskShrinking     Task = "SHRINKING"
	ClusterTaskDeleting      Task = "DELETING"
	ClusterTaskBuildingError Task = "BUILDING_ERROR"
	ClusterTaskGrowingError  Task = "GROWING_ERROR"
	ClusterTaskShrinkError   Task = "SHRINKING_ERROR"
	ClusterTaskDeletingError Task = "DELETING_ERROR"
)

// IsError 是否为错误哨兵
func (t Task) IsError() bool {
	return strings.Contains(string(t), "ERROR")
}

// IsNone 任务槽是否空闲
func (t Task) IsNone() bool {
	return t == TaskNone
}

// ServiceStatus guest agent 上报的引擎状态
type ServiceStatus string

const (
	ServiceStatusNew          ServiceStatus = "NEW"
	ServiceStatusBuilding     ServiceStatus = "BUILDING"
	ServiceStatusBuildPending ServiceStatus = "BUILD_PENDING"
	ServiceStatusRunning      ServiceStatus = "RUNNING"
	ServiceStatusHealthy      ServiceStatus = "HEALTHY"
	ServiceStatusPaused       ServiceStatus = "PAUSED"
	ServiceStatusShutdown     ServiceStatus = "SHUTDOWN"
	ServiceStatusCrashed      ServiceStatus = "CRASHED"
	ServiceStatusFailed       ServiceStatus = "FAILED"
	ServiceStatusDeleted      ServiceStatus = "DELETED"
	// ServiceStatusFailedTimeoutGA agent 在期限内没有报活
	ServiceStatusFailedTimeoutGA ServiceStatus = "FAILED_TIMEOUT_GUESTAGENT"
)

// Ready 引擎是否可对外服务
func (s ServiceStatus) Ready() bool {
	return s == ServiceStatusRunning || s == ServiceStatusHealthy
}

// APIStatus 对外投影后的可见状态，见状态追踪器的投影表
func (s ServiceStatus) APIStatus() string {
	switch s {
	case ServiceStatusNew, ServiceStatusBuilding, ServiceStatusBuildPending:
		return "BUILD"
	case ServiceStatusRunning:
		return "ACTIVE"
	case ServiceStatusHealthy:
		return "HEALTHY"
	case ServiceStatusPaused:
		return "REBOOT"
	case ServiceStatusShutdown:
		return "SHUTDOWN"
	case ServiceStatusCrashed, ServiceStatusFailed, ServiceStatusFailedTimeoutGA:
		return "ERROR"
	case ServiceStatusDeleted:
		return "DELETED"
	default:
		return "ERROR"
	}
}
