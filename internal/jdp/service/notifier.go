package service

import (
	"context"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/internal/jdp/entity"
)

// Notifier 事件通知器
// 用量事件供计费侧消费，错误事件仅作通报
type Notifier interface {
	Usage(ctx context.Context, event *entity.UsageEvent)
	Error(ctx context.Context, event *entity.ErrorEvent)
}

// tokenPattern 匹配日志里可能混进来的认证凭据
var tokenPattern = regexp.MustCompile(`(?i)(token|password|secret)(["']?\s*[:=]\s*["']?)\S+`)

// scrubSecrets 发出前抹掉凭据
func scrubSecrets(s string) string {
	return tokenPattern.ReplaceAllString(s, "$1$2***")
}

type metricsNotifier struct {
	region    string
	serviceID string

	usageEvents *prometheus.CounterVec
	errorEvents *prometheus.CounterVec
}

// NewNotifier 创建通知器并注册事件计数指标
func NewNotifier(reg prometheus.Registerer, region, serviceID string) Notifier {
	n := &metricsNotifier{
		region:    region,
		serviceID: serviceID,
		usageEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jdp",
			Subsystem: "notifier",
			Name:      "usage_events_total",
			Help:      "Number of lifecycle/usage events emitted",
		}, []string{"event_type"}),
		errorEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jdp",
			Subsystem: "notifier",
			Name:      "error_events_total",
			Help:      "Number of error/state events emitted",
		}, []string{"event_type"}),
	}
	reg.MustRegister(n.usageEvents, n.errorEvents)
	return n
}

// Usage 发出生命周期/用量事件
func (n *metricsNotifier) Usage(ctx context.Context, event *entity.UsageEvent) {
	if event.Region == "" {
		event.Region = n.region
	}
	if event.ServiceID == "" {
		event.ServiceID = n.serviceID
	}
	n.usageEvents.WithLabelValues(event.EventType).Inc()
	zerolog.Ctx(ctx).Info().
		Str("event_type", event.EventType).
		Str("instance_id", event.InstanceID).
		Str("tenant_id", event.TenantID).
		Int("instance_size", event.InstanceSize).
		Int("volume_size", event.VolumeSize).
		Str("region", event.Region).
		Str("service_id", event.ServiceID).
		Msg("usage event")
}

// Error 发出错误/状态事件
func (n *metricsNotifier) Error(ctx context.Context, event *entity.ErrorEvent) {
	n.errorEvents.WithLabelValues(event.EventType).Inc()
	zerolog.Ctx(ctx).Warn().
		Str("event_type", event.EventType).
		Str("instance_id", event.InstanceID).
		Str("cluster_id", event.ClusterID).
		Str("tenant_id", event.TenantID).
		Msg(scrubSecrets(event.Message))
}
