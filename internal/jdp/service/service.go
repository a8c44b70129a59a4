// Package service 提供业务逻辑层的服务实现
// 包括实例任务引擎、集群任务引擎、备份、状态追踪和通知
package service

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/internal/jdp/config"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/fabric"
	"github.com/jimyag/jdp/pkg/guestagent"
)

// Deps 各服务共享的外部依赖
// 任务流只通过这里访问仓库、fabric 驱动和 guest agent
type Deps struct {
	Instances  repository.InstanceRepository
	Clusters   repository.ClusterRepository
	Backups    repository.BackupRepository
	Statuses   repository.StatusRepository
	Quotas     repository.QuotaRepository
	Datastores repository.DatastoreRepository
	Configs    repository.ConfigurationRepository
	Faults     repository.FaultRepository

	Compute fabric.ComputeDriver
	Volumes fabric.VolumeDriver
	Objects fabric.ObjectStoreDriver
	DNS     fabric.DNSDriver
	// Stacks 配置了编排模板时供给走模板栈，否则为 nil
	Stacks fabric.StackDriver

	Guests guestagent.Dialer

	Notifier Notifier
	Cfg      *config.Config

	// Async 后台任务的执行方式，测试里换成同步执行
	Async func(fn func())
}

// spawn 在后台执行任务流
// 任务流带独立的生命周期，只从调用方继承日志字段
func (d *Deps) spawn(ctx context.Context, fn func(ctx context.Context)) {
	logger := zerolog.Ctx(ctx).With().Logger()
	run := func() {
		fn(logger.WithContext(context.Background()))
	}
	if d.Async != nil {
		d.Async(run)
		return
	}
	go run()
}

// guest 取实例的 guest agent 客户端
func (d *Deps) guest(inst *model.Instance) (guestagent.Client, error) {
	if len(inst.Addresses) == 0 {
		return nil, apierror.Wrapf(apierror.ErrGuestError, nil, "instance %s has no address", inst.ID)
	}
	return d.Guests.Dial(inst.Addresses[0]), nil
}

// recordFault 记下实例最后一次任务失败，每实例至多一条
func (d *Deps) recordFault(ctx context.Context, instanceID, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	if ferr := d.Faults.Record(ctx, instanceID, message, details); ferr != nil {
		zerolog.Ctx(ctx).Warn().Err(ferr).Str("instance_id", instanceID).Msg("failed to record fault")
	}
}

// renderConfig 把参数组渲染成引擎配置文本
// 键排序保证渲染结果稳定
func renderConfig(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(" = ")
		b.WriteString(values[k])
		b.WriteString("\n")
	}
	return b.String()
}

// configContents 取实例关联参数组的渲染结果，没有参数组时为空串
func (d *Deps) configContents(ctx context.Context, configurationID string) (string, error) {
	if configurationID == "" {
		return "", nil
	}
	group, err := d.Configs.GetByID(ctx, configurationID)
	if err != nil {
		return "", err
	}
	return renderConfig(group.Values), nil
}
