package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/service"
	"github.com/jimyag/jdp/pkg/ginx"
)

// StatusServiceInterface 定义 guest 上行通道的接口
type StatusServiceInterface interface {
	Heartbeat(ctx context.Context, payload *entity.HeartbeatPayload) error
	UpdateBackup(ctx context.Context, payload *entity.BackupUpdatePayload) error
}

// Guest 是 guest agent 的上行通道
// 乱序到达的旧报文会被静默丢弃，guest 不需要重试
type Guest struct {
	statusService StatusServiceInterface
}

func NewGuest(statusService *service.StatusService) *Guest {
	return &Guest{
		statusService: statusService,
	}
}

func (g *Guest) RegisterRoutes(router *gin.RouterGroup) {
	guestRouter := router.Group("/guest")
	guestRouter.POST("/heartbeat", ginx.AdaptErr(g.Heartbeat))
	guestRouter.POST("/update-backup", ginx.AdaptErr(g.UpdateBackup))
}

func (g *Guest) Heartbeat(ctx *gin.Context, payload *entity.HeartbeatPayload) error {
	if err := g.statusService.Heartbeat(ctx, payload); err != nil {
		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("instance_id", payload.InstanceID).
			Msg("Failed to apply heartbeat")
		return err
	}
	return nil
}

func (g *Guest) UpdateBackup(ctx *gin.Context, payload *entity.BackupUpdatePayload) error {
	if err := g.statusService.UpdateBackup(ctx, payload); err != nil {
		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("instance_id", payload.InstanceID).
			Str("backup_id", payload.BackupID).
			Msg("Failed to apply backup update")
		return err
	}
	return nil
}
