package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
	"github.com/jimyag/jdp/pkg/apierror"
	"github.com/jimyag/jdp/pkg/cloudinit"
	"github.com/jimyag/jdp/pkg/fabric"
	"github.com/jimyag/jdp/pkg/guestagent"
	"github.com/jimyag/jdp/pkg/idgen"
	"github.com/jimyag/jdp/pkg/poller"
)

// 数据卷在实例内的默认位置
const (
	defaultDevicePath = "/dev/vdb"
	defaultMountPoint = "/var/lib/data"
)

// InstanceService 实例任务引擎
// 每个操作先同步做校验和任务准入，长流程转入后台执行
type InstanceService struct {
	*Deps
	status *StatusService
}

// NewInstanceService 创建实例任务引擎
func NewInstanceService(deps *Deps, status *StatusService) *InstanceService {
	return &InstanceService{Deps: deps, status: status}
}

// loadInstance 加载实例行，不存在时返回 NotFound
func (s *InstanceService) loadInstance(ctx context.Context, id string) (*model.Instance, error) {
	inst, err := s.Instances.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.Wrapf(apierror.ErrNotFound, err, "instance %s not found", id)
		}
		return nil, err
	}
	return inst, nil
}

// admitTask 任务准入：只有 task=NONE 的实例才接受新指令
func (s *InstanceService) admitTask(ctx context.Context, instanceID string, next entity.Task) error {
	ok, err := s.Instances.CompareAndSetTask(ctx, instanceID, string(entity.TaskNone), string(next))
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Wrapf(apierror.ErrUnprocessable, nil, "instance %s has another task in flight", instanceID)
	}
	return nil
}

// failTask 任务失败收口：落错误哨兵、记 fault、发错误事件
func (s *InstanceService) failTask(ctx context.Context, inst *model.Instance, sentinel entity.Task, step string, err error) {
	zerolog.Ctx(ctx).Error().Err(err).
		Str("instance_id", inst.ID).
		Str("step", step).
		Str("sentinel", string(sentinel)).
		Msg("instance task failed")
	if terr := s.Instances.SetTask(ctx, inst.ID, string(sentinel)); terr != nil {
		zerolog.Ctx(ctx).Error().Err(terr).Str("instance_id", inst.ID).Msg("failed to stamp error sentinel")
	}
	s.recordFault(ctx, inst.ID, step, err)
	s.Notifier.Error(ctx, &entity.ErrorEvent{
		EventType:  entity.EventInstanceError,
		InstanceID: inst.ID,
		TenantID:   inst.TenantID,
		Message:    step + ": " + err.Error(),
		OccurredAt: time.Now(),
	})
}

// Get 返回实例及投影后的对外状态
func (s *InstanceService) Get(ctx context.Context, id string) (*entity.InstanceView, error) {
	inst, err := s.loadInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, inst)
}

func (s *InstanceService) view(ctx context.Context, inst *model.Instance) (*entity.InstanceView, error) {
	e, err := instanceModelToEntity(inst)
	if err != nil {
		return nil, err
	}
	status, err := s.status.Resolve(ctx, inst.ID, entity.Task(inst.Task), inst.ServerStatus)
	if err != nil {
		return nil, err
	}
	view := &entity.InstanceView{Instance: *e, Status: status}
	if fault, err := s.Faults.GetByInstanceID(ctx, inst.ID); err == nil {
		view.Fault = &entity.Fault{
			InstanceID: fault.InstanceID,
			Message:    fault.Message,
			Details:    fault.Details,
			CreatedAt:  fault.CreatedAt,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return view, nil
}

// List 分页列出租户实例
func (s *InstanceService) List(ctx context.Context, tenantID string, opts repository.ListOptions) ([]*entity.InstanceView, string, error) {
	filters := map[string]any{}
	if tenantID != "" {
		filters["tenant_id"] = tenantID
	}
	rows, marker, err := s.Instances.List(ctx, filters, opts)
	if err != nil {
		return nil, "", err
	}
	views := make([]*entity.InstanceView, 0, len(rows))
	for _, row := range rows {
		v, err := s.view(ctx, row)
		if err != nil {
			return nil, "", err
		}
		views = append(views, v)
	}
	return views, marker, nil
}

// Create 校验输入、预留配额、落 BUILDING 行，然后后台执行供给流程
func (s *InstanceService) Create(ctx context.Context, req *entity.CreateInstanceRequest) error {
	if req.VolumeSize > s.Cfg.MaxAcceptedVolumeSize {
		return apierror.Wrapf(apierror.ErrQuotaExceeded, nil,
			"volume size %d exceeds the accepted maximum %d", req.VolumeSize, s.Cfg.MaxAcceptedVolumeSize)
	}

	version, err := s.Datastores.GetVersion(ctx, req.DatastoreVersionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.Wrapf(apierror.ErrNotFound, err, "datastore version %s not found", req.DatastoreVersionID)
		}
		return err
	}
	if !version.Active {
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "datastore version %s is not active", version.ID)
	}

	flavor, err := s.Compute.GetFlavor(ctx, req.FlavorID)
	if err != nil {
		return apierror.Wrapf(apierror.ErrFlavorNotFound, err, "flavor %s", req.FlavorID)
	}

	if req.BackupID != "" {
		if err := s.validateRestore(ctx, req.BackupID, req.VolumeSize); err != nil {
			return err
		}
	}

	var master *model.Instance
	if req.ReplicaOf != "" {
		master, err = s.loadInstance(ctx, req.ReplicaOf)
		if err != nil {
			return err
		}
		// 不支持链式副本：主库自己不能是副本
		if master.SlaveOfID != "" {
			return apierror.Wrapf(apierror.ErrUnprocessable, nil,
				"instance %s is itself a replica and cannot be a replication source", master.ID)
		}
	}

	instanceID := req.InstanceID
	if instanceID == "" {
		instanceID, err = idgen.GenerateInstanceID()
		if err != nil {
			return apierror.Wrapf(apierror.ErrInternalError, err, "generate instance id")
		}
	}
	if req.RootEnabled && req.RootPassword == "" {
		req.RootPassword = uuid.NewString()
	}

	deltas := map[string]int{entity.ResourceInstances: 1}
	if req.VolumeSize > 0 {
		deltas[entity.ResourceVolumes] = req.VolumeSize
	}
	err = RunWithQuotas(ctx, s.Quotas, req.TenantID, deltas, func() error {
		now := time.Now()
		inst := &model.Instance{
			ID:                 instanceID,
			TenantID:           req.TenantID,
			Name:               req.Name,
			FlavorID:           req.FlavorID,
			VolumeSize:         req.VolumeSize,
			DatastoreVersionID: req.DatastoreVersionID,
			Task:               string(entity.TaskBuilding),
			ClusterID:          req.ClusterID,
			ShardID:            req.ShardID,
			Type:               req.Type,
			SlaveOfID:          req.ReplicaOf,
			ConfigurationID:    req.ConfigurationID,
			AvailabilityZone:   req.AvailabilityZone,
			RegionName:         s.Cfg.Region,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.Instances.Create(ctx, inst); err != nil {
			return err
		}
		return s.Statuses.SetServiceStatus(ctx, instanceID, string(entity.ServiceStatusNew), now)
	})
	if err != nil {
		return err
	}

	s.spawn(ctx, func(ctx context.Context) {
		s.provision(ctx, instanceID, req, version, flavor, master)
	})
	return nil
}

// validateRestore 校验恢复来源备份可用
func (s *InstanceService) validateRestore(ctx context.Context, backupID string, volumeSize int) error {
	backup, err := s.Backups.GetByID(ctx, backupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.Wrapf(apierror.ErrNotFound, err, "backup %s not found", backupID)
		}
		return err
	}
	if entity.BackupState(backup.State) != entity.BackupStateCompleted {
		return apierror.Wrapf(apierror.ErrUnprocessable, nil, "backup %s is not completed", backupID)
	}
	// 1 GiB 的容差：备份落盘后解压可能略大于报告值
	if volumeSize > 0 && backup.SizeGB > float64(volumeSize)+1 {
		return apierror.Wrapf(apierror.ErrBackupTooLarge, nil,
			"backup %s (%.1f GB) does not fit volume of %d GB", backupID, backup.SizeGB, volumeSize)
	}
	be, err := backupModelToEntity(backup)
	if err != nil {
		return err
	}
	if _, err := s.Objects.HeadObject(ctx, s.Cfg.BackupContainer, be.Filename()); err != nil {
		return apierror.Wrapf(apierror.ErrRestoreIntegrityError, err,
			"backup object for %s is missing from the object store", backupID)
	}
	return nil
}

// provision 供给流程：卷 → 计算实例 → DNS → guest prepare → 等就绪
func (s *InstanceService) provision(ctx context.Context, instanceID string, req *entity.CreateInstanceRequest,
	version *model.DatastoreVersion, flavor *fabric.Flavor, master *model.Instance) {
	logger := zerolog.Ctx(ctx)
	inst, err := s.Instances.GetByID(ctx, instanceID)
	if err != nil {
		logger.Error().Err(err).Str("instance_id", instanceID).Msg("instance row vanished before provisioning")
		return
	}

	devicePath := ""
	if inst.VolumeSize > 0 {
		if err := s.provisionVolume(ctx, inst); err != nil {
			s.failTask(ctx, inst, entity.TaskBuildingErrorVolume, "provision volume", err)
			return
		}
		devicePath = defaultDevicePath
	}

	server, err := s.provisionServer(ctx, inst, req, version)
	if err != nil {
		s.failTask(ctx, inst, entity.TaskBuildingErrorServer, "provision server", err)
		return
	}

	if inst.VolumeID != "" {
		if err := s.Volumes.Attach(ctx, server.ID, inst.VolumeID, devicePath); err != nil {
			s.failTask(ctx, inst, entity.TaskBuildingErrorVolume, "attach volume", err)
			return
		}
	}

	if s.Cfg.DNSEnabled {
		if err := s.DNS.CreateInstanceEntry(ctx, inst.ID, server.Addresses[0]); err != nil {
			s.failTask(ctx, inst, entity.TaskBuildingErrorDNS, "register dns entry", err)
			return
		}
		inst.Hostname = s.DNS.DetermineHostname(inst.ID)
		inst.UpdatedAt = time.Now()
		if err := s.Instances.Update(ctx, inst); err != nil {
			logger.Warn().Err(err).Str("instance_id", inst.ID).Msg("failed to persist hostname")
		}
	}

	if err := s.prepareGuest(ctx, inst, req, flavor, master, devicePath); err != nil {
		s.failTask(ctx, inst, entity.TaskBuildingErrorGuest, "guest prepare", err)
		return
	}
	if req.RootEnabled {
		if err := s.Instances.RecordRootEnabled(ctx, inst.ID, "root"); err != nil {
			logger.Warn().Err(err).Str("instance_id", inst.ID).Msg("failed to record root enablement")
		}
	}

	if err := s.waitServiceReady(ctx, inst.ID, s.Cfg.UsageTimeout); err != nil {
		s.failTask(ctx, inst, entity.TaskBuildingErrorGuest, "wait for guest readiness", err)
		return
	}

	if err := s.Instances.SetTask(ctx, inst.ID, string(entity.TaskNone)); err != nil {
		logger.Error().Err(err).Str("instance_id", inst.ID).Msg("failed to clear task")
		return
	}
	s.Notifier.Usage(ctx, &entity.UsageEvent{
		EventType:        entity.EventInstanceCreate,
		InstanceID:       inst.ID,
		TenantID:         inst.TenantID,
		InstanceName:     inst.Name,
		InstanceSize:     flavor.RAMMB,
		VolumeSize:       inst.VolumeSize,
		LaunchedAt:       time.Now(),
		CreatedAt:        inst.CreatedAt,
		AvailabilityZone: inst.AvailabilityZone,
	})
	logger.Info().Str("instance_id", inst.ID).Msg("instance provisioned")
}

// provisionVolume 创建数据卷并等它可用
// 卷句柄在轮询前就落库，崩溃后仍可回收
func (s *InstanceService) provisionVolume(ctx context.Context, inst *model.Instance) error {
	vol, err := s.Volumes.Create(ctx, inst.VolumeSize, inst.Name, "data volume for "+inst.ID, "")
	if err != nil {
		return apierror.Wrapf(apierror.ErrVolumeCreationFailure, err, "create volume for %s", inst.ID)
	}
	inst.VolumeID = vol.ID
	inst.UpdatedAt = time.Now()
	if err := s.Instances.Update(ctx, inst); err != nil {
		return err
	}

	_, err = poller.Poll(ctx, "volume available",
		func(ctx context.Context) (*fabric.Volume, error) {
			return s.Volumes.Get(ctx, vol.ID)
		},
		func(v *fabric.Volume) bool {
			return v.Status == fabric.VolumeStatusAvailable
		},
		s.Cfg.PollInterval, s.Cfg.VolumeTimeout)
	if err != nil {
		return apierror.Wrapf(apierror.ErrVolumeCreationFailure, err, "volume %s did not become available", vol.ID)
	}
	return nil
}

// provisionServer 创建计算实例并等到 ACTIVE 且拿到地址
func (s *InstanceService) provisionServer(ctx context.Context, inst *model.Instance,
	req *entity.CreateInstanceRequest, version *model.DatastoreVersion) (*fabric.Server, error) {
	userData, err := s.buildGuestPayload(ctx, inst, version)
	if err != nil {
		return nil, err
	}

	imageID := req.ImageID
	if imageID == "" {
		imageID = version.ImageID
	}
	if s.Stacks != nil && s.Cfg.StackTemplate != "" {
		return s.provisionServerFromStack(ctx, inst, imageID, userData)
	}
	server, err := s.Compute.Create(ctx, &fabric.CreateServerRequest{
		Name:             inst.ID,
		ImageID:          imageID,
		FlavorID:         inst.FlavorID,
		UserData:         []byte(userData),
		AvailabilityZone: inst.AvailabilityZone,
		NICs:             req.NICs,
	})
	if err != nil {
		return nil, err
	}

	inst.ComputeID = server.ID
	inst.ServerStatus = server.Status
	inst.UpdatedAt = time.Now()
	if err := s.Instances.Update(ctx, inst); err != nil {
		return nil, err
	}

	server, err = poller.Poll(ctx, "server active",
		func(ctx context.Context) (*fabric.Server, error) {
			return s.Compute.Get(ctx, server.ID)
		},
		func(srv *fabric.Server) bool {
			if srv.Status == fabric.ServerStatusError {
				return true
			}
			return srv.Status == fabric.ServerStatusActive && len(srv.Addresses) > 0
		},
		s.Cfg.PollInterval, s.Cfg.UsageTimeout)
	if err != nil {
		return nil, err
	}
	if server.Status == fabric.ServerStatusError {
		return nil, apierror.Wrapf(apierror.ErrInternalError, nil, "server %s entered ERROR during build", server.ID)
	}

	inst.ServerStatus = server.Status
	inst.Addresses = server.Addresses
	inst.UpdatedAt = time.Now()
	if err := s.Instances.Update(ctx, inst); err != nil {
		return nil, err
	}
	return server, nil
}

// provisionServerFromStack 按编排模板栈供给计算实例
// 栈句柄先落库，server_id 和 address 从栈输出里取
func (s *InstanceService) provisionServerFromStack(ctx context.Context, inst *model.Instance,
	imageID, userData string) (*fabric.Server, error) {
	template, err := os.ReadFile(s.Cfg.StackTemplate)
	if err != nil {
		return nil, apierror.Wrapf(apierror.ErrInternalError, err, "read stack template %s", s.Cfg.StackTemplate)
	}

	stack, err := s.Stacks.CreateStack(ctx, inst.ID, string(template), map[string]string{
		"name":              inst.ID,
		"image_id":          imageID,
		"flavor_id":         inst.FlavorID,
		"availability_zone": inst.AvailabilityZone,
		"user_data":         userData,
	})
	if err != nil {
		return nil, err
	}

	inst.StackID = stack.ID
	inst.UpdatedAt = time.Now()
	if err := s.Instances.Update(ctx, inst); err != nil {
		return nil, err
	}

	stack, err = poller.Poll(ctx, "stack create complete",
		func(ctx context.Context) (*fabric.Stack, error) {
			return s.Stacks.GetStack(ctx, stack.ID)
		},
		func(st *fabric.Stack) bool {
			return st.Status != fabric.StackStatusCreateInProgress
		},
		s.Cfg.PollInterval, s.Cfg.UsageTimeout)
	if err != nil {
		return nil, err
	}
	if stack.Status != fabric.StackStatusCreateComplete {
		return nil, apierror.Wrapf(apierror.ErrInternalError, nil, "stack %s ended in %s", stack.ID, stack.Status)
	}

	serverID := stack.Outputs["server_id"]
	address := stack.Outputs["address"]
	if serverID == "" || address == "" {
		return nil, apierror.Wrapf(apierror.ErrInternalError, nil, "stack %s is missing server_id/address outputs", stack.ID)
	}
	server := &fabric.Server{
		ID:        serverID,
		Name:      inst.ID,
		Status:    fabric.ServerStatusActive,
		Addresses: []string{address},
		FlavorID:  inst.FlavorID,
	}

	inst.ComputeID = server.ID
	inst.ServerStatus = server.Status
	inst.Addresses = server.Addresses
	inst.UpdatedAt = time.Now()
	if err := s.Instances.Update(ctx, inst); err != nil {
		return nil, err
	}
	return server, nil
}

// buildGuestPayload 生成 cloud-init 引导负载
// guest agent 靠注入的 guest_info 知道自己的身份和该拉起的引擎
func (s *InstanceService) buildGuestPayload(ctx context.Context, inst *model.Instance, version *model.DatastoreVersion) (string, error) {
	configContents, err := s.configContents(ctx, inst.ConfigurationID)
	if err != nil {
		return "", err
	}
	gen := cloudinit.NewGenerator()
	cfg := &cloudinit.GuestConfig{
		Info: cloudinit.GuestInfo{
			InstanceID:       inst.ID,
			ClusterID:        inst.ClusterID,
			TenantID:         inst.TenantID,
			DatastoreManager: version.Manager,
		},
	}
	if configContents != "" {
		cfg.InjectedFiles = map[string]string{
			defaultMountPoint + "/overrides.cnf": configContents,
		}
	}
	return gen.GenerateGuestUserData(cfg)
}

// prepareGuest 调 guest prepare 初始化数据面
func (s *InstanceService) prepareGuest(ctx context.Context, inst *model.Instance, req *entity.CreateInstanceRequest,
	flavor *fabric.Flavor, master *model.Instance, devicePath string) error {
	client, err := s.guest(inst)
	if err != nil {
		return err
	}
	configContents, err := s.configContents(ctx, inst.ConfigurationID)
	if err != nil {
		return err
	}

	users := parseUsers(req.Users)
	for i := range users {
		// 请求级用户默认拿到全部请求级数据库的权限
		users[i].Databases = req.Databases
	}
	if req.RootEnabled {
		users = append(users, guestagent.User{Name: "root", Host: "%", Password: req.RootPassword})
	}
	prepReq := &guestagent.PrepareRequest{
		FlavorRAMMB:    flavor.RAMMB,
		Databases:      parseDatabases(req.Databases),
		Users:          users,
		DevicePath:     devicePath,
		BackupID:       req.BackupID,
		ConfigContents: configContents,
	}
	if devicePath != "" {
		prepReq.MountPoint = defaultMountPoint
	}
	if master != nil {
		snapshot, err := s.replicationSnapshot(ctx, master)
		if err != nil {
			return err
		}
		prepReq.ReplicaSource = &guestagent.ReplicaSource{
			MasterHost: firstAddress(master),
			MasterPort: s.Cfg.GuestPort,
			Snapshot:   snapshot,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	defer cancel()
	return client.Prepare(callCtx, prepReq)
}

// replicationSnapshot 去主库拿复制位点，prepare 时一并下发
func (s *InstanceService) replicationSnapshot(ctx context.Context, master *model.Instance) (map[string]string, error) {
	client, err := s.guest(master)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	defer cancel()
	return client.GetReplicationSnapshot(callCtx)
}

// waitServiceReady 轮询引擎心跳直到 RUNNING/HEALTHY
// 心跳进入终态（CRASHED/FAILED）立即失败，不再等满超时
func (s *InstanceService) waitServiceReady(ctx context.Context, instanceID string, timeout time.Duration) error {
	status, err := poller.Poll(ctx, "guest service ready",
		func(ctx context.Context) (entity.ServiceStatus, error) {
			row, err := s.Statuses.GetServiceStatus(ctx, instanceID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return entity.ServiceStatusNew, nil
				}
				return "", err
			}
			return entity.ServiceStatus(row.Status), nil
		},
		func(status entity.ServiceStatus) bool {
			switch status {
			case entity.ServiceStatusCrashed, entity.ServiceStatusFailed:
				return true
			}
			return status.Ready()
		},
		s.Cfg.PollInterval, timeout)
	if err != nil {
		return err
	}
	if !status.Ready() {
		return apierror.Wrapf(apierror.ErrGuestError, nil, "guest reported terminal status %s", status)
	}
	return nil
}

// Delete 下线实例
// BUILDING 中的实例拒绝删除，错误哨兵上的实例允许
func (s *InstanceService) Delete(ctx context.Context, req *entity.InstanceActionRequest) error {
	inst, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	if entity.Task(inst.Task) == entity.TaskBuilding {
		return apierror.Wrapf(apierror.ErrUnprocessable, nil, "instance %s is still building", inst.ID)
	}
	if err := s.Instances.SetTask(ctx, inst.ID, string(entity.TaskDeleting)); err != nil {
		return err
	}

	deltas := map[string]int{entity.ResourceInstances: -1}
	if inst.VolumeSize > 0 {
		deltas[entity.ResourceVolumes] = -inst.VolumeSize
	}
	reservationIDs, err := s.Quotas.Reserve(ctx, inst.TenantID, deltas)
	if err != nil {
		return err
	}

	s.spawn(ctx, func(ctx context.Context) {
		s.deprovision(ctx, inst, reservationIDs)
	})
	return nil
}

// deprovision 删除流程：停库 → 删计算实例 → 等消失 → 删卷和 DNS → 逻辑删行
func (s *InstanceService) deprovision(ctx context.Context, inst *model.Instance, reservationIDs []string) {
	logger := zerolog.Ctx(ctx)

	// 尽力让 guest 排干队列，失联的 guest 不阻塞删除
	if client, err := s.guest(inst); err == nil {
		callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
		if err := client.StopDB(callCtx, true); err != nil {
			logger.Warn().Err(err).Str("instance_id", inst.ID).Msg("guest stop_db failed during delete")
		}
		cancel()
	}

	switch {
	case inst.StackID != "":
		// 模板栈供给的实例整栈回收
		if err := s.Stacks.DeleteStack(ctx, inst.StackID); err != nil && !fabric.IsNotFound(err) {
			s.failTask(ctx, inst, entity.TaskDeletingError, "delete stack", err)
			s.rollbackQuota(ctx, inst.TenantID, reservationIDs)
			return
		}
		if err := s.waitStackGone(ctx, inst.StackID); err != nil {
			s.failTask(ctx, inst, entity.TaskDeletingError, "wait for stack teardown", err)
			s.rollbackQuota(ctx, inst.TenantID, reservationIDs)
			return
		}
	case inst.ComputeID != "":
		if err := s.Compute.Delete(ctx, inst.ComputeID); err != nil && !fabric.IsNotFound(err) {
			s.failTask(ctx, inst, entity.TaskDeletingError, "delete server", err)
			s.rollbackQuota(ctx, inst.TenantID, reservationIDs)
			return
		}
		if err := s.waitServerGone(ctx, inst.ComputeID); err != nil {
			s.failTask(ctx, inst, entity.TaskDeletingError, "wait for server teardown", err)
			s.rollbackQuota(ctx, inst.TenantID, reservationIDs)
			return
		}
	}

	if inst.VolumeID != "" {
		if err := s.Volumes.Delete(ctx, inst.VolumeID); err != nil && !fabric.IsNotFound(err) {
			logger.Warn().Err(err).Str("volume_id", inst.VolumeID).Msg("failed to delete volume, leaving for reconciliation")
		}
	}
	if s.Cfg.DNSEnabled {
		if err := s.DNS.DeleteInstanceEntry(ctx, inst.ID); err != nil {
			logger.Warn().Err(err).Str("instance_id", inst.ID).Msg("failed to delete dns entry")
		}
	}

	now := time.Now()
	if err := s.Statuses.SetServiceStatus(ctx, inst.ID, string(entity.ServiceStatusDeleted), now); err != nil {
		logger.Warn().Err(err).Str("instance_id", inst.ID).Msg("failed to mark service status deleted")
	}
	if err := s.Instances.Delete(ctx, inst.ID); err != nil {
		s.failTask(ctx, inst, entity.TaskDeletingError, "mark instance deleted", err)
		s.rollbackQuota(ctx, inst.TenantID, reservationIDs)
		return
	}
	if err := s.Quotas.Commit(ctx, reservationIDs); err != nil {
		logger.Error().Err(err).Str("instance_id", inst.ID).Msg("failed to commit quota release")
	}
	s.Notifier.Usage(ctx, &entity.UsageEvent{
		EventType:    entity.EventInstanceDelete,
		InstanceID:   inst.ID,
		TenantID:     inst.TenantID,
		InstanceName: inst.Name,
		CreatedAt:    inst.CreatedAt,
		DeletedAt:    &now,
	})
	logger.Info().Str("instance_id", inst.ID).Msg("instance deleted")
}

func (s *InstanceService) rollbackQuota(ctx context.Context, tenantID string, reservationIDs []string) {
	if err := s.Quotas.Rollback(ctx, reservationIDs); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("tenant_id", tenantID).Msg("failed to rollback quota reservations")
	}
}

// waitServerGone 轮询直到 fabric 报 NotFound 或 SHUTDOWN
func (s *InstanceService) waitServerGone(ctx context.Context, computeID string) error {
	_, err := poller.Poll(ctx, "server teardown",
		func(ctx context.Context) (string, error) {
			srv, err := s.Compute.Get(ctx, computeID)
			if err != nil {
				if fabric.IsNotFound(err) {
					return fabric.ServerStatusDeleted, nil
				}
				return "", err
			}
			return srv.Status, nil
		},
		func(status string) bool {
			return status == fabric.ServerStatusDeleted || status == fabric.ServerStatusShutdown
		},
		s.Cfg.PollInterval, s.Cfg.ServerDeleteTimeout)
	return err
}

// waitStackGone 轮询直到模板栈报 NotFound 或 DELETE_COMPLETE
func (s *InstanceService) waitStackGone(ctx context.Context, stackID string) error {
	_, err := poller.Poll(ctx, "stack teardown",
		func(ctx context.Context) (string, error) {
			stack, err := s.Stacks.GetStack(ctx, stackID)
			if err != nil {
				if fabric.IsNotFound(err) {
					return fabric.StackStatusDeleteComplete, nil
				}
				return "", err
			}
			return stack.Status, nil
		},
		func(status string) bool {
			return status == fabric.StackStatusDeleteComplete
		},
		s.Cfg.PollInterval, s.Cfg.ServerDeleteTimeout)
	return err
}

// Reboot 重启整台实例：停库 → fabric 重启 → 等 ACTIVE
// 心跳在重启期间置 PAUSED，对外投影为 REBOOT 直到 guest 重新报活
func (s *InstanceService) Reboot(ctx context.Context, req *entity.InstanceActionRequest) error {
	inst, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	if err := s.admitTask(ctx, inst.ID, entity.TaskRebooting); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		s.rebootFlow(ctx, inst)
	})
	return nil
}

func (s *InstanceService) rebootFlow(ctx context.Context, inst *model.Instance) {
	client, err := s.guest(inst)
	if err != nil {
		s.failTask(ctx, inst, entity.TaskRebootingError, "dial guest", err)
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	err = client.StopDB(callCtx, false)
	cancel()
	if err != nil {
		s.failTask(ctx, inst, entity.TaskRebootingError, "guest stop_db", err)
		return
	}

	if err := s.Statuses.SetServiceStatus(ctx, inst.ID, string(entity.ServiceStatusPaused), time.Now()); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("instance_id", inst.ID).Msg("failed to pause service status")
	}
	if err := s.Compute.Reboot(ctx, inst.ComputeID); err != nil {
		s.failTask(ctx, inst, entity.TaskRebootingError, "fabric reboot", err)
		return
	}
	_, err = poller.Poll(ctx, "server active after reboot",
		func(ctx context.Context) (*fabric.Server, error) {
			return s.Compute.Get(ctx, inst.ComputeID)
		},
		func(srv *fabric.Server) bool {
			return srv.Status == fabric.ServerStatusActive
		},
		s.Cfg.PollInterval, s.Cfg.RebootFabricTimeout)
	if err != nil {
		s.failTask(ctx, inst, entity.TaskRebootingError, "wait for server active", err)
		return
	}
	if err := s.Instances.SetTask(ctx, inst.ID, string(entity.TaskNone)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("instance_id", inst.ID).Msg("failed to clear task")
	}
}

// Restart 只重启引擎，不动底层虚机
// 无论成败任务槽都回 NONE
func (s *InstanceService) Restart(ctx context.Context, req *entity.InstanceActionRequest) error {
	inst, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	if err := s.admitTask(ctx, inst.ID, entity.TaskRebooting); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		defer func() {
			if err := s.Instances.SetTask(ctx, inst.ID, string(entity.TaskNone)); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("instance_id", inst.ID).Msg("failed to clear task")
			}
		}()
		client, err := s.guest(inst)
		if err != nil {
			s.recordFault(ctx, inst.ID, "dial guest", err)
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
		defer cancel()
		if err := client.Restart(callCtx); err != nil {
			s.recordFault(ctx, inst.ID, "guest restart", err)
		}
	})
	return nil
}

// ResizeVolume 扩容数据卷
func (s *InstanceService) ResizeVolume(ctx context.Context, req *entity.ResizeVolumeRequest) error {
	inst, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	if inst.VolumeID == "" {
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "instance %s has no volume", inst.ID)
	}
	if req.NewSize <= inst.VolumeSize {
		return apierror.Wrapf(apierror.ErrBadRequest, nil,
			"new size %d must be larger than current %d", req.NewSize, inst.VolumeSize)
	}
	if req.NewSize > s.Cfg.MaxAcceptedVolumeSize {
		return apierror.Wrapf(apierror.ErrQuotaExceeded, nil,
			"volume size %d exceeds the accepted maximum %d", req.NewSize, s.Cfg.MaxAcceptedVolumeSize)
	}
	if err := s.admitTask(ctx, inst.ID, entity.TaskResizingVolume); err != nil {
		return err
	}
	reservationIDs, err := s.Quotas.Reserve(ctx, inst.TenantID,
		map[string]int{entity.ResourceVolumes: req.NewSize - inst.VolumeSize})
	if err != nil {
		if terr := s.Instances.SetTask(ctx, inst.ID, string(entity.TaskNone)); terr != nil {
			zerolog.Ctx(ctx).Error().Err(terr).Str("instance_id", inst.ID).Msg("failed to clear task")
		}
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		s.resizeVolumeFlow(ctx, inst, req.NewSize, reservationIDs)
	})
	return nil
}

func (s *InstanceService) resizeVolumeFlow(ctx context.Context, inst *model.Instance, newSize int, reservationIDs []string) {
	logger := zerolog.Ctx(ctx)
	oldSize := inst.VolumeSize

	fail := func(step string, err error) {
		s.failTask(ctx, inst, entity.TaskResizingVolumeError, step, err)
		s.rollbackQuota(ctx, inst.TenantID, reservationIDs)
	}

	srv, err := s.Compute.Get(ctx, inst.ComputeID)
	if err != nil {
		fail("get server", err)
		return
	}

	client, err := s.guest(inst)
	if err != nil {
		fail("dial guest", err)
		return
	}

	if srv.Status == fabric.ServerStatusActive {
		// 在线路径：停库、摘卷、扩容、回挂、拉起
		callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
		err = client.StopDB(callCtx, false)
		cancel()
		if err != nil {
			fail("guest stop_db", err)
			return
		}
		if err := s.Volumes.Detach(ctx, inst.ComputeID, inst.VolumeID); err != nil {
			fail("detach volume", err)
			return
		}
		if err := s.extendAndWait(ctx, inst.VolumeID, newSize); err != nil {
			fail("extend volume", err)
			return
		}
		if err := s.Volumes.Attach(ctx, inst.ComputeID, inst.VolumeID, defaultDevicePath); err != nil {
			fail("reattach volume", err)
			return
		}
		callCtx, cancel = context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
		err = client.Restart(callCtx)
		cancel()
		if err != nil {
			fail("guest restart", err)
			return
		}
	} else {
		if err := s.extendAndWait(ctx, inst.VolumeID, newSize); err != nil {
			fail("extend volume", err)
			return
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	err = client.ResizeFS(callCtx)
	cancel()
	if err != nil {
		fail("guest resize_fs", err)
		return
	}

	// 回读文件系统容量确认真的长上去了，没长就不落库
	callCtx, cancel = context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	info, err := client.GetVolumeInfo(callCtx)
	cancel()
	if err != nil {
		fail("guest get_volume_info", err)
		return
	}
	if info.TotalGB <= float64(oldSize) {
		fail("verify filesystem size", fmt.Errorf("filesystem still %.1fGB after resize to %dGB", info.TotalGB, newSize))
		return
	}

	inst.VolumeSize = newSize
	inst.UpdatedAt = time.Now()
	if err := s.Instances.Update(ctx, inst); err != nil {
		fail("persist volume size", err)
		return
	}
	if err := s.Quotas.Commit(ctx, reservationIDs); err != nil {
		logger.Error().Err(err).Str("instance_id", inst.ID).Msg("failed to commit quota delta")
	}
	if err := s.Instances.SetTask(ctx, inst.ID, string(entity.TaskNone)); err != nil {
		logger.Error().Err(err).Str("instance_id", inst.ID).Msg("failed to clear task")
	}
	now := time.Now()
	s.Notifier.Usage(ctx, &entity.UsageEvent{
		EventType:     entity.EventInstanceModifyVolume,
		InstanceID:    inst.ID,
		TenantID:      inst.TenantID,
		InstanceName:  inst.Name,
		CreatedAt:     inst.CreatedAt,
		ModifyAt:      &now,
		VolumeSize:    newSize,
		OldVolumeSize: oldSize,
	})
}

// extendAndWait 扩卷并轮询容量收敛
func (s *InstanceService) extendAndWait(ctx context.Context, volumeID string, newSize int) error {
	if err := s.Volumes.Extend(ctx, volumeID, newSize); err != nil {
		return err
	}
	_, err := poller.Poll(ctx, "volume size converged",
		func(ctx context.Context) (*fabric.Volume, error) {
			return s.Volumes.Get(ctx, volumeID)
		},
		func(v *fabric.Volume) bool {
			return v.SizeGB >= newSize
		},
		s.Cfg.PollInterval, s.Cfg.VolumeTimeout)
	return err
}

// Upgrade 升级数据存储版本：guest 自升级后等引擎回到就绪
func (s *InstanceService) Upgrade(ctx context.Context, req *entity.UpgradeRequest) error {
	inst, err := s.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	version, err := s.Datastores.GetVersion(ctx, req.DatastoreVersionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.Wrapf(apierror.ErrNotFound, err, "datastore version %s not found", req.DatastoreVersionID)
		}
		return err
	}
	if !version.Active {
		return apierror.Wrapf(apierror.ErrBadRequest, nil, "datastore version %s is not active", version.ID)
	}
	if err := s.admitTask(ctx, inst.ID, entity.TaskUpgrading); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) {
		s.upgradeFlow(ctx, inst, version)
	})
	return nil
}

func (s *InstanceService) upgradeFlow(ctx context.Context, inst *model.Instance, version *model.DatastoreVersion) {
	client, err := s.guest(inst)
	if err != nil {
		s.failTask(ctx, inst, entity.TaskUpgradingError, "dial guest", err)
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.AgentCallTimeout)
	err = client.UpdateGuest(callCtx)
	cancel()
	if err != nil {
		s.failTask(ctx, inst, entity.TaskUpgradingError, "guest upgrade", err)
		return
	}
	if err := s.waitServiceReady(ctx, inst.ID, s.Cfg.RestartTimeout); err != nil {
		s.failTask(ctx, inst, entity.TaskUpgradingError, "wait for guest readiness", err)
		return
	}
	inst.DatastoreVersionID = version.ID
	inst.UpdatedAt = time.Now()
	if err := s.Instances.Update(ctx, inst); err != nil {
		s.failTask(ctx, inst, entity.TaskUpgradingError, "persist datastore version", err)
		return
	}
	if err := s.Instances.SetTask(ctx, inst.ID, string(entity.TaskNone)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("instance_id", inst.ID).Msg("failed to clear task")
	}
}

// parseDatabases 解析请求里的数据库名
func parseDatabases(names []string) []guestagent.Database {
	dbs := make([]guestagent.Database, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		dbs = append(dbs, guestagent.Database{Name: name})
	}
	return dbs
}

// parseUsers 解析 name:password 形式的用户声明
// 用户默认获得请求里所有数据库的权限
func parseUsers(specs []string) []guestagent.User {
	users := make([]guestagent.User, 0, len(specs))
	for _, spec := range specs {
		name, password, _ := strings.Cut(spec, ":")
		if name == "" {
			continue
		}
		users = append(users, guestagent.User{Name: name, Password: password})
	}
	return users
}

func firstAddress(inst *model.Instance) string {
	if len(inst.Addresses) == 0 {
		return ""
	}
	return inst.Addresses[0]
}
