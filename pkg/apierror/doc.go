// Package apierror 提供控制面统一的错误类型
//
// 错误响应格式为 JSON：
//
//	{
//	    "errors": [
//	        {
//	            "code": "NotFound",
//	            "message": "The instance ID 'dbi-1a2b3c4d' does not exist"
//	        }
//	    ],
//	    "requestID": "ea966190-f9aa-478e-9ede-example"
//	}
//
// 使用示例：
//
//	// 包装预定义的错误，保留 Code 和 HTTPStatus
//	return apierror.WrapError(apierror.ErrNotFound, "instance not found", err)
//
//	// 判断错误类别
//	if errors.Is(err, apierror.ErrQuotaExceeded) { ... }
//
// 预定义的错误码覆盖编排器的全部失败类别：NotFound、BadRequest、Forbidden、
// Unprocessable、QuotaExceeded、VolumeCreationFailure、GuestError、GuestTimeout、
// PollTimeout、BackupCreationError、BackupTooLarge、RestoreIntegrityError、
// ObjectStoreAuthError、DevicePathInvalid、FlavorNotFound、
// LocalStorageNotSpecified、InternalError
package apierror
