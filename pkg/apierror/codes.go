package apierror

import "net/http"

// 控制面错误码
// 任务引擎用这些错误区分失败类别，API 层用 HTTPStatus 渲染响应
var (
	// ErrNotFound 资源不存在
	ErrNotFound = &Error{
		Code:       "NotFound",
		Message:    "The requested resource does not exist.",
		HTTPStatus: http.StatusNotFound,
	}

	// ErrBadRequest 请求参数无效
	ErrBadRequest = &Error{
		Code:       "BadRequest",
		Message:    "The request is malformed or contains invalid parameters.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrForbidden 当前租户无权执行该操作
	ErrForbidden = &Error{
		Code:       "Forbidden",
		Message:    "You are not authorized to perform this action.",
		HTTPStatus: http.StatusForbidden,
	}

	// ErrUnprocessable 前置条件不满足（例如实例上已有任务在执行）
	// 调用方收到该错误后可以稍后重试
	ErrUnprocessable = &Error{
		Code:       "Unprocessable",
		Message:    "The instance is not ready for this action right now. Retry later.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	// ErrQuotaExceeded 租户配额不足
	ErrQuotaExceeded = &Error{
		Code:       "QuotaExceeded",
		Message:    "Quota exceeded for the requested resources.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}

	// ErrVolumeCreationFailure 块存储卷创建失败
	ErrVolumeCreationFailure = &Error{
		Code:       "VolumeCreationFailure",
		Message:    "Failed to create a volume on the block storage fabric.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrGuestError guest agent RPC 调用失败
	ErrGuestError = &Error{
		Code:       "GuestError",
		Message:    "The guest agent returned an error.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrGuestTimeout guest agent 未在时限内响应
	ErrGuestTimeout = &Error{
		Code:       "GuestTimeout",
		Message:    "The guest agent did not respond within the deadline.",
		HTTPStatus: http.StatusGatewayTimeout,
	}

	// ErrPollTimeout 轮询等待基础设施收敛超时
	ErrPollTimeout = &Error{
		Code:       "PollTimeout",
		Message:    "Timed out waiting for the infrastructure to converge.",
		HTTPStatus: http.StatusGatewayTimeout,
	}

	// ErrBackupCreationError 备份创建失败
	ErrBackupCreationError = &Error{
		Code:       "BackupCreationError",
		Message:    "Failed to create the backup.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrBackupTooLarge 备份比目标卷还大，无法恢复
	ErrBackupTooLarge = &Error{
		Code:       "BackupTooLarge",
		Message:    "The backup is too large for the target volume.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrRestoreIntegrityError 恢复数据校验失败
	ErrRestoreIntegrityError = &Error{
		Code:       "RestoreIntegrityError",
		Message:    "The backup data failed integrity verification during restore.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrObjectStoreAuth 对象存储认证失败
	ErrObjectStoreAuth = &Error{
		Code:       "ObjectStoreAuthError",
		Message:    "Authentication against the object store failed.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrDevicePathInvalid 卷设备路径无效
	ErrDevicePathInvalid = &Error{
		Code:       "DevicePathInvalid",
		Message:    "The configured volume device path is invalid.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrFlavorNotFound 规格不存在
	ErrFlavorNotFound = &Error{
		Code:       "FlavorNotFound",
		Message:    "The requested flavor does not exist.",
		HTTPStatus: http.StatusNotFound,
	}

	// ErrLocalStorageNotSpecified 数据存储不支持卷且未配置本地存储
	ErrLocalStorageNotSpecified = &Error{
		Code:       "LocalStorageNotSpecified",
		Message:    "Local storage is not configured for a volume-less datastore.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrInternalError 内部错误
	ErrInternalError = &Error{
		Code:       "InternalError",
		Message:    "An internal error has occurred.",
		HTTPStatus: http.StatusInternalServerError,
	}
)
