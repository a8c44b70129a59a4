package ginx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/jdp/pkg/apierror"
)

// renderResponse 渲染 JSON 响应
func renderResponse(ctx *gin.Context, response any) {
	if response == nil {
		ctx.Status(http.StatusNoContent)
		return
	}

	switch v := response.(type) {
	case string:
		ctx.String(http.StatusOK, v)
		return
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, bool:
		ctx.JSON(http.StatusOK, gin.H{"value": v})
		return
	}

	ctx.JSON(http.StatusOK, response)
}

// renderError 渲染错误响应
// 如果 err 是 *apierror.Error 或 *apierror.ErrorResponse，直接序列化错误对象
// 否则使用默认的错误格式
func renderError(ctx *gin.Context, statusCode int, err error) {
	// 检查是否是 apierror.Error
	if apiErr, ok := err.(*apierror.Error); ok {
		if apiErr.HTTPStatus > 0 {
			statusCode = apiErr.HTTPStatus
		}
		ctx.JSON(statusCode, apierror.NewErrorResponse(requestID(ctx), apiErr))
		return
	}

	// 检查是否是 apierror.ErrorResponse
	if errorResp, ok := err.(*apierror.ErrorResponse); ok {
		if len(errorResp.Errors) > 0 && errorResp.Errors[0].HTTPStatus > 0 {
			statusCode = errorResp.Errors[0].HTTPStatus
		}
		ctx.JSON(statusCode, errorResp)
		return
	}

	ctx.JSON(statusCode, gin.H{"error": err.Error()})
}

// requestID 从请求头取请求 ID（如果有）
func requestID(ctx *gin.Context) string {
	return ctx.GetHeader("X-Request-Id")
}
