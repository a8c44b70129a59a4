package ginx

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// bind 绑定并验证请求参数
func bind[T any](ctx *gin.Context) (*T, bool) {
	var argsType T
	argsValue := reflect.New(reflect.TypeOf(argsType))
	args := argsValue.Interface()

	if err := bindArgs(ctx, args); err != nil {
		renderError(ctx, http.StatusBadRequest, err)
		return nil, false
	}

	// 验证参数（如果实现了 IsValid 方法）
	if validator, ok := args.(interface{ IsValid() error }); ok {
		if err := validator.IsValid(); err != nil {
			renderError(ctx, http.StatusBadRequest, err)
			return nil, false
		}
	}

	return args.(*T), true
}

// Adapt 适配有参数、有返回值和 error 的 handler
func Adapt[TArgs any, TResp any](fn func(*gin.Context, *TArgs) (TResp, error)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		args, ok := bind[TArgs](ctx)
		if !ok {
			return
		}

		result, err := fn(ctx, args)
		if err != nil {
			renderError(ctx, http.StatusInternalServerError, err)
			return
		}
		renderResponse(ctx, result)
	}
}

// AdaptErr 适配有参数、只返回 error 的 handler
// 成功返回 204 No Content
func AdaptErr[TArgs any](fn func(*gin.Context, *TArgs) error) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		args, ok := bind[TArgs](ctx)
		if !ok {
			return
		}

		if err := fn(ctx, args); err != nil {
			renderError(ctx, http.StatusInternalServerError, err)
			return
		}
		ctx.Status(http.StatusNoContent)
	}
}

// AdaptCast 适配 cast 式（不等待结果）的任务 handler
// handler 只做校验和任务准入；通过后工作流在后台执行，立即返回 202 Accepted
func AdaptCast[TArgs any](fn func(*gin.Context, *TArgs) error) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		args, ok := bind[TArgs](ctx)
		if !ok {
			return
		}

		if err := fn(ctx, args); err != nil {
			renderError(ctx, http.StatusInternalServerError, err)
			return
		}
		ctx.Status(http.StatusAccepted)
	}
}

// AdaptGet 适配无请求体、有返回值和 error 的 handler
func AdaptGet[TResp any](fn func(*gin.Context) (TResp, error)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, err := fn(ctx)
		if err != nil {
			renderError(ctx, http.StatusInternalServerError, err)
			return
		}
		renderResponse(ctx, result)
	}
}
