package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
)

// auditPageSize 每轮扫描的分页大小
const auditPageSize = 200

// UsageAuditor 周期性为存量实例补报 exists 事件
// 计费侧靠它对账，丢一轮不致命，下一轮会再报
type UsageAuditor struct {
	*Deps
}

// NewUsageAuditor 创建用量对账器
func NewUsageAuditor(deps *Deps) *UsageAuditor {
	return &UsageAuditor{Deps: deps}
}

// Run 按配置的间隔循环上报，间隔为 0 时直接关闭
func (a *UsageAuditor) Run(ctx context.Context) {
	log := zerolog.Ctx(ctx)
	if a.Cfg.UsageAuditInterval <= 0 {
		log.Info().Msg("usage audit disabled")
		return
	}
	ticker := time.NewTicker(a.Cfg.UsageAuditInterval)
	defer ticker.Stop()
	log.Info().Dur("interval", a.Cfg.UsageAuditInterval).Msg("usage audit started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("usage audit stopped")
			return
		case <-ticker.C:
			a.audit(ctx)
		}
	}
}

// audit 扫一遍空闲实例并逐个上报 exists
// 有任务在身的实例跳过，等它回到 NONE 再补
func (a *UsageAuditor) audit(ctx context.Context) {
	log := zerolog.Ctx(ctx)
	now := time.Now().UTC()
	marker := ""
	count := 0
	for {
		instances, next, err := a.Instances.List(ctx,
			map[string]any{"task": string(entity.TaskNone)},
			repository.ListOptions{Limit: auditPageSize, Marker: marker})
		if err != nil {
			log.Warn().Err(err).Msg("usage audit list instances failed")
			return
		}
		for _, inst := range instances {
			event := &entity.UsageEvent{
				EventType:        entity.EventInstanceExists,
				InstanceID:       inst.ID,
				TenantID:         inst.TenantID,
				InstanceName:     inst.Name,
				LaunchedAt:       inst.CreatedAt,
				CreatedAt:        inst.CreatedAt,
				ModifyAt:         &now,
				AvailabilityZone: inst.AvailabilityZone,
				Region:           inst.RegionName,
				VolumeSize:       inst.VolumeSize,
			}
			if flavor, err := a.Compute.GetFlavor(ctx, inst.FlavorID); err == nil {
				event.InstanceSize = flavor.RAMMB
			}
			a.Notifier.Usage(ctx, event)
			count++
		}
		if next == "" {
			break
		}
		marker = next
	}
	log.Debug().Int("instances", count).Msg("usage audit round done")
}
