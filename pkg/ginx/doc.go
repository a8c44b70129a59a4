// Package ginx 提供类型安全的 gin handler 适配器
//
// handler 以具体的请求/响应结构体为签名，ginx 负责参数绑定、
// IsValid 校验、错误渲染和响应序列化：
//
//	type RebootRequest struct {
//	    InstanceID string `uri:"id" binding:"required"`
//	}
//
//	group.POST("/instances/:id/reboot", ginx.AdaptCast(h.Reboot))
//
// 适配器族：
//
//   - Adapt:     func(ctx, *TArgs) (TResp, error)  → 200 + JSON
//   - AdaptErr:  func(ctx, *TArgs) error           → 204
//   - AdaptCast: func(ctx, *TArgs) error           → 202（任务已受理，后台执行）
//   - AdaptGet:  func(ctx) (TResp, error)          → 200 + JSON
//
// 错误渲染识别 *apierror.Error，使用其中的 HTTP 状态码
package ginx
