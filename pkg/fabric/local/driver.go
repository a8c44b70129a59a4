package local

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/pkg/cloudinit"
	"github.com/jimyag/jdp/pkg/fabric"
	"github.com/jimyag/jdp/pkg/qemuimg"
)

// Options 本地驱动配置
type Options struct {
	// URI libvirt 连接 URI（默认 qemu:///system）
	URI string
	// PoolName 实例磁盘所在的存储池（默认 jdp）
	PoolName string
	// PoolPath 存储池路径（cloud-init ISO 也放在这里）
	PoolPath string
	// Bridge 网桥名称（默认 br0）
	Bridge string
	// Flavors 规格表，为空时使用内置规格
	Flavors []fabric.Flavor
}

// 内置开发规格
var defaultFlavors = []fabric.Flavor{
	{ID: "1", Name: "local.tiny", RAMMB: 512, VCPUs: 1, DiskGB: 2},
	{ID: "2", Name: "local.small", RAMMB: 1024, VCPUs: 1, DiskGB: 10},
	{ID: "3", Name: "local.medium", RAMMB: 2048, VCPUs: 2, DiskGB: 20},
	{ID: "4", Name: "local.large", RAMMB: 4096, VCPUs: 4, DiskGB: 40},
}

// pendingResize 记录一次等待 confirm/revert 的规格变更
type pendingResize struct {
	prevFlavorID string
	newFlavorID  string
}

// core 计算和块存储驱动共享的连接与状态
type core struct {
	conn    *libvirt.Libvirt
	qemuImg *qemuimg.Client
	opts    Options

	mu sync.Mutex
	// 等待 confirm/revert 的 resize，按 server id 记录
	resizes map[string]pendingResize
	// volume id -> 已附加的 server id
	attachments map[string]string

	flavors map[string]fabric.Flavor
}

// Driver 基于本机 libvirt 的计算 fabric 驱动
type Driver struct {
	*core
}

// Volumes 基于本机 libvirt 存储池的块存储 fabric 驱动
// 与 Driver 共享同一条 libvirt 连接
type Volumes struct {
	*core
}

// New 连接本机 hypervisor 并创建计算与块存储驱动
func New(opts Options) (*Driver, *Volumes, error) {
	if opts.URI == "" {
		opts.URI = string(libvirt.QEMUSystem)
	}
	if opts.PoolName == "" {
		opts.PoolName = "jdp"
	}
	if opts.Bridge == "" {
		opts.Bridge = "br0"
	}

	uri, err := url.Parse(opts.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("parse libvirt URI: %w", err)
	}
	conn, err := libvirt.ConnectToURI(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to libvirt: %w", err)
	}

	flavors := opts.Flavors
	if len(flavors) == 0 {
		flavors = defaultFlavors
	}
	flavorMap := make(map[string]fabric.Flavor, len(flavors))
	for _, f := range flavors {
		flavorMap[f.ID] = f
	}

	c := &core{
		conn:        conn,
		qemuImg:     qemuimg.New(""),
		opts:        opts,
		resizes:     make(map[string]pendingResize),
		attachments: make(map[string]string),
		flavors:     flavorMap,
	}
	return &Driver{core: c}, &Volumes{core: c}, nil
}

var (
	_ fabric.ComputeDriver = (*Driver)(nil)
	_ fabric.VolumeDriver  = (*Volumes)(nil)
)

// ---------------------------------------------------------------------------
// ComputeDriver
// ---------------------------------------------------------------------------

// Create 创建并启动实例
// 磁盘从镜像卷做增量，引导负载写进 cloud-init ISO
func (d *Driver) Create(ctx context.Context, req *fabric.CreateServerRequest) (*fabric.Server, error) {
	logger := zerolog.Ctx(ctx)

	flavor, ok := d.flavors[req.FlavorID]
	if !ok {
		return nil, fmt.Errorf("unknown flavor %q", req.FlavorID)
	}

	// 1. 创建增量磁盘
	diskName := req.Name + ".qcow2"
	diskPath, err := d.createVolumeFromImage(diskName, uint64(flavor.DiskGB), req.ImageID)
	if err != nil {
		return nil, fmt.Errorf("create root disk: %w", err)
	}

	// 2. 生成 cloud-init ISO（引导负载）
	var isoPath string
	if len(req.UserData) > 0 {
		builder := cloudinit.NewISOBuilder()
		isoPath, err = builder.BuildISOFromRaw(&cloudinit.RawBuildOptions{
			Name:      req.Name,
			OutputDir: d.opts.PoolPath,
			UserData:  string(req.UserData),
		})
		if err != nil {
			return nil, fmt.Errorf("build cloud-init ISO: %w", err)
		}
	}

	// 3. 定义并启动 domain
	domXML := d.buildDomainXML(req.Name, req.FlavorID, flavor, diskPath, isoPath)
	xmlBytes, err := xml.MarshalIndent(domXML, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal domain XML: %w", err)
	}
	dom, err := d.conn.DomainDefineXML(string(xmlBytes))
	if err != nil {
		return nil, fmt.Errorf("define domain: %w", err)
	}
	if err := d.conn.DomainCreate(dom); err != nil {
		_ = d.conn.DomainUndefine(dom)
		return nil, fmt.Errorf("start domain: %w", err)
	}

	serverID := uuid.UUID(dom.UUID).String()
	logger.Info().
		Str("server_id", serverID).
		Str("name", req.Name).
		Str("flavor_id", req.FlavorID).
		Msg("Local server created")

	return &fabric.Server{
		ID:       serverID,
		Name:     req.Name,
		Status:   fabric.ServerStatusBuild,
		FlavorID: req.FlavorID,
		Host:     "localhost",
	}, nil
}

// Get 查询实例状态
func (d *Driver) Get(ctx context.Context, id string) (*fabric.Server, error) {
	dom, err := d.lookup(id)
	if err != nil {
		return nil, err
	}

	state, _, err := d.conn.DomainGetState(dom, 0)
	if err != nil {
		return nil, fmt.Errorf("get domain state: %w", err)
	}

	flavorID, _ := d.domainFlavorID(dom)
	status := d.projectStatus(id, int32(state))

	server := &fabric.Server{
		ID:       id,
		Name:     dom.Name,
		Status:   status,
		FlavorID: flavorID,
		Host:     "localhost",
	}

	if status == fabric.ServerStatusActive {
		server.Addresses = d.lookupAddresses(dom)
	}
	return server, nil
}

// Delete 删除实例（连同磁盘定义）
func (d *Driver) Delete(ctx context.Context, id string) error {
	dom, err := d.lookup(id)
	if err != nil {
		if fabric.IsNotFound(err) {
			return nil
		}
		return err
	}

	state, _, err := d.conn.DomainGetState(dom, 0)
	if err == nil && libvirt.DomainState(state) == libvirt.DomainRunning {
		if err := d.conn.DomainDestroy(dom); err != nil {
			return fmt.Errorf("destroy domain: %w", err)
		}
	}
	if err := d.conn.DomainUndefineFlags(dom, libvirt.DomainUndefineManagedSave|libvirt.DomainUndefineSnapshotsMetadata); err != nil {
		return fmt.Errorf("undefine domain: %w", err)
	}

	d.mu.Lock()
	delete(d.resizes, id)
	d.mu.Unlock()
	return nil
}

// Reboot 硬重启实例（断电再启动）
func (d *Driver) Reboot(ctx context.Context, id string) error {
	dom, err := d.lookup(id)
	if err != nil {
		return err
	}
	state, _, err := d.conn.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("get domain state: %w", err)
	}
	if libvirt.DomainState(state) == libvirt.DomainRunning {
		if err := d.conn.DomainDestroy(dom); err != nil {
			return fmt.Errorf("stop domain: %w", err)
		}
	}
	if err := d.conn.DomainCreate(dom); err != nil {
		return fmt.Errorf("start domain: %w", err)
	}
	return nil
}

// Resize 发起规格变更
// 本地没有迁移目标，驱动停机并进入 VERIFY_RESIZE，等 confirm/revert
func (d *Driver) Resize(ctx context.Context, id, newFlavorID string) error {
	if _, ok := d.flavors[newFlavorID]; !ok {
		return fmt.Errorf("unknown flavor %q", newFlavorID)
	}

	dom, err := d.lookup(id)
	if err != nil {
		return err
	}
	prevFlavorID, err := d.domainFlavorID(dom)
	if err != nil {
		return err
	}

	state, _, err := d.conn.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("get domain state: %w", err)
	}
	if libvirt.DomainState(state) == libvirt.DomainRunning {
		if err := d.conn.DomainDestroy(dom); err != nil {
			return fmt.Errorf("stop domain for resize: %w", err)
		}
	}

	d.mu.Lock()
	d.resizes[id] = pendingResize{prevFlavorID: prevFlavorID, newFlavorID: newFlavorID}
	d.mu.Unlock()
	return nil
}

// ConfirmResize 以新规格重定义并重启 domain
func (d *Driver) ConfirmResize(ctx context.Context, id string) error {
	d.mu.Lock()
	pending, ok := d.resizes[id]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("no resize pending for server %s", id)
	}

	if err := d.redefineWithFlavor(id, pending.newFlavorID); err != nil {
		return err
	}

	d.mu.Lock()
	delete(d.resizes, id)
	d.mu.Unlock()
	return nil
}

// RevertResize 放弃变更，按原规格重启
func (d *Driver) RevertResize(ctx context.Context, id string) error {
	d.mu.Lock()
	pending, ok := d.resizes[id]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("no resize pending for server %s", id)
	}

	if err := d.redefineWithFlavor(id, pending.prevFlavorID); err != nil {
		return err
	}

	d.mu.Lock()
	delete(d.resizes, id)
	d.mu.Unlock()
	return nil
}

// Migrate 单机上没有可迁移的目标宿主
// 走与 resize 相同的 verify 协议，规格不变
func (d *Driver) Migrate(ctx context.Context, id, forceHost string) error {
	dom, err := d.lookup(id)
	if err != nil {
		return err
	}
	flavorID, err := d.domainFlavorID(dom)
	if err != nil {
		return err
	}

	state, _, err := d.conn.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("get domain state: %w", err)
	}
	if libvirt.DomainState(state) == libvirt.DomainRunning {
		if err := d.conn.DomainDestroy(dom); err != nil {
			return fmt.Errorf("stop domain for migrate: %w", err)
		}
	}

	d.mu.Lock()
	d.resizes[id] = pendingResize{prevFlavorID: flavorID, newFlavorID: flavorID}
	d.mu.Unlock()
	return nil
}

// GetFlavor 查询规格
func (d *Driver) GetFlavor(ctx context.Context, id string) (*fabric.Flavor, error) {
	flavor, ok := d.flavors[id]
	if !ok {
		return nil, &fabric.NotFoundError{Resource: "flavor", ID: id}
	}
	return &flavor, nil
}

// ---------------------------------------------------------------------------
// VolumeDriver
// ---------------------------------------------------------------------------

// Create 创建空白数据卷
func (d *Volumes) Create(ctx context.Context, sizeGB int, name, description, volumeType string) (*fabric.Volume, error) {
	pool, err := d.conn.StoragePoolLookupByName(d.opts.PoolName)
	if err != nil {
		return nil, fmt.Errorf("lookup storage pool %s: %w", d.opts.PoolName, err)
	}

	volXML := &volumeXML{
		Type:       "file",
		Name:       name + ".qcow2",
		Capacity:   volumeSize{Unit: "G", Value: uint64(sizeGB)},
		Allocation: volumeSize{Unit: "G", Value: 0},
		Target:     volumeTarget{Format: volumeFormat{Type: "qcow2"}},
	}
	xmlBytes, err := xml.MarshalIndent(volXML, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal volume XML: %w", err)
	}
	if _, err := d.conn.StorageVolCreateXML(pool, string(xmlBytes), 0); err != nil {
		return nil, fmt.Errorf("create volume: %w", err)
	}

	return &fabric.Volume{
		ID:     name,
		Name:   name,
		Status: fabric.VolumeStatusAvailable,
		SizeGB: sizeGB,
	}, nil
}

// Get 查询数据卷
func (d *Volumes) Get(ctx context.Context, id string) (*fabric.Volume, error) {
	_, size, err := d.volumePathAndSize(ctx, id)
	if err != nil {
		return nil, err
	}

	vol := &fabric.Volume{
		ID:     id,
		Name:   id,
		Status: fabric.VolumeStatusAvailable,
		SizeGB: size,
	}
	d.mu.Lock()
	if serverID, ok := d.attachments[id]; ok {
		vol.Status = fabric.VolumeStatusInUse
		vol.ServerID = serverID
	}
	d.mu.Unlock()
	return vol, nil
}

// Delete 删除数据卷
func (d *Volumes) Delete(ctx context.Context, id string) error {
	pool, err := d.conn.StoragePoolLookupByName(d.opts.PoolName)
	if err != nil {
		return fmt.Errorf("lookup storage pool: %w", err)
	}
	vol, err := d.conn.StorageVolLookupByName(pool, id+".qcow2")
	if err != nil {
		return &fabric.NotFoundError{Resource: "volume", ID: id}
	}
	if err := d.conn.StorageVolDelete(vol, libvirt.StorageVolDeleteNormal); err != nil {
		return fmt.Errorf("delete volume: %w", err)
	}
	d.mu.Lock()
	delete(d.attachments, id)
	d.mu.Unlock()
	return nil
}

// Extend 扩容数据卷（qemu-img resize，只允许扩大）
func (d *Volumes) Extend(ctx context.Context, id string, newSizeGB int) error {
	path, size, err := d.volumePathAndSize(ctx, id)
	if err != nil {
		return err
	}
	if newSizeGB <= size {
		return fmt.Errorf("new size %dGB must exceed current %dGB", newSizeGB, size)
	}
	if err := d.qemuImg.Resize(ctx, path, uint64(newSizeGB)); err != nil {
		return fmt.Errorf("qemu-img resize: %w", err)
	}
	return nil
}

// Attach 附加卷到实例
func (d *Volumes) Attach(ctx context.Context, serverID, volumeID, device string) error {
	dom, err := d.lookup(serverID)
	if err != nil {
		return err
	}
	path, _, err := d.volumePathAndSize(ctx, volumeID)
	if err != nil {
		return err
	}

	diskXML := fmt.Sprintf(`<disk type="file" device="disk">
  <driver name="qemu" type="qcow2"/>
  <source file="%s"/>
  <target dev="%s" bus="virtio"/>
</disk>`, path, filepath.Base(device))

	if err := d.conn.DomainAttachDeviceFlags(dom, diskXML, uint32(libvirt.DomainDeviceModifyLive|libvirt.DomainDeviceModifyConfig)); err != nil {
		return fmt.Errorf("attach device: %w", err)
	}

	d.mu.Lock()
	d.attachments[volumeID] = serverID
	d.mu.Unlock()
	return nil
}

// Detach 从实例分离卷
func (d *Volumes) Detach(ctx context.Context, serverID, volumeID string) error {
	dom, err := d.lookup(serverID)
	if err != nil {
		return err
	}
	path, _, err := d.volumePathAndSize(ctx, volumeID)
	if err != nil {
		return err
	}

	diskXML := fmt.Sprintf(`<disk type="file" device="disk">
  <driver name="qemu" type="qcow2"/>
  <source file="%s"/>
</disk>`, path)

	if err := d.conn.DomainDetachDeviceFlags(dom, diskXML, uint32(libvirt.DomainDeviceModifyLive|libvirt.DomainDeviceModifyConfig)); err != nil {
		return fmt.Errorf("detach device: %w", err)
	}

	d.mu.Lock()
	delete(d.attachments, volumeID)
	d.mu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// 内部辅助
// ---------------------------------------------------------------------------

func (d *core) lookup(id string) (libvirt.Domain, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return libvirt.Domain{}, fmt.Errorf("invalid server id %q: %w", id, err)
	}
	dom, err := d.conn.DomainLookupByUUID(libvirt.UUID(u))
	if err != nil {
		return libvirt.Domain{}, &fabric.NotFoundError{Resource: "server", ID: id}
	}
	return dom, nil
}

// domainFlavorID 从 domain 的 title 还原 flavor id
func (d *core) domainFlavorID(dom libvirt.Domain) (string, error) {
	xmlDesc, err := d.conn.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return "", fmt.Errorf("get domain XML: %w", err)
	}
	var parsed domainXML
	if err := xml.Unmarshal([]byte(xmlDesc), &parsed); err != nil {
		return "", fmt.Errorf("unmarshal domain XML: %w", err)
	}
	return parsed.Title, nil
}

// projectStatus 把 libvirt 状态映射为计算 fabric 状态
func (d *core) projectStatus(id string, state int32) string {
	d.mu.Lock()
	_, resizing := d.resizes[id]
	d.mu.Unlock()
	if resizing {
		return fabric.ServerStatusVerifyResize
	}
	return mapDomainState(state)
}

func mapDomainState(state int32) string {
	switch libvirt.DomainState(state) {
	case libvirt.DomainRunning, libvirt.DomainBlocked:
		return fabric.ServerStatusActive
	case libvirt.DomainPaused, libvirt.DomainPmsuspended:
		return fabric.ServerStatusReboot
	case libvirt.DomainShutdown:
		return fabric.ServerStatusReboot
	case libvirt.DomainShutoff:
		return fabric.ServerStatusShutdown
	case libvirt.DomainCrashed:
		return fabric.ServerStatusError
	default:
		return fabric.ServerStatusBuild
	}
}

// redefineWithFlavor 以给定规格重定义并启动 domain
func (d *core) redefineWithFlavor(id, flavorID string) error {
	flavor, ok := d.flavors[flavorID]
	if !ok {
		return fmt.Errorf("unknown flavor %q", flavorID)
	}
	dom, err := d.lookup(id)
	if err != nil {
		return err
	}
	xmlDesc, err := d.conn.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return fmt.Errorf("get domain XML: %w", err)
	}
	var parsed domainXML
	if err := xml.Unmarshal([]byte(xmlDesc), &parsed); err != nil {
		return fmt.Errorf("unmarshal domain XML: %w", err)
	}

	parsed.Title = flavorID
	parsed.Memory = domainMemory{Unit: "KiB", Value: uint64(flavor.RAMMB) * 1024}
	parsed.CurrentMemory = parsed.Memory
	parsed.VCPU = domainVCPU{Placement: "static", Value: flavor.VCPUs}

	xmlBytes, err := xml.MarshalIndent(&parsed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal domain XML: %w", err)
	}
	newDom, err := d.conn.DomainDefineXML(string(xmlBytes))
	if err != nil {
		return fmt.Errorf("redefine domain: %w", err)
	}
	if err := d.conn.DomainCreate(newDom); err != nil {
		return fmt.Errorf("start domain: %w", err)
	}
	return nil
}

// createVolumeFromImage 基于镜像卷创建增量磁盘，返回磁盘路径
func (d *core) createVolumeFromImage(name string, sizeGB uint64, imagePath string) (string, error) {
	pool, err := d.conn.StoragePoolLookupByName(d.opts.PoolName)
	if err != nil {
		return "", fmt.Errorf("lookup storage pool %s: %w", d.opts.PoolName, err)
	}

	volXML := &volumeXML{
		Type:       "file",
		Name:       name,
		Capacity:   volumeSize{Unit: "G", Value: sizeGB},
		Allocation: volumeSize{Unit: "G", Value: 0},
		Target:     volumeTarget{Format: volumeFormat{Type: "qcow2"}},
	}
	if imagePath != "" {
		volXML.Backing = &volumeBackingEl{
			Path:   imagePath,
			Format: volumeFormat{Type: "qcow2"},
		}
	}

	xmlBytes, err := xml.MarshalIndent(volXML, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal volume XML: %w", err)
	}
	vol, err := d.conn.StorageVolCreateXML(pool, string(xmlBytes), 0)
	if err != nil {
		return "", fmt.Errorf("create volume: %w", err)
	}
	path, err := d.conn.StorageVolGetPath(vol)
	if err != nil {
		return "", fmt.Errorf("get volume path: %w", err)
	}
	return path, nil
}

func (d *core) volumePathAndSize(ctx context.Context, id string) (string, int, error) {
	pool, err := d.conn.StoragePoolLookupByName(d.opts.PoolName)
	if err != nil {
		return "", 0, fmt.Errorf("lookup storage pool: %w", err)
	}
	vol, err := d.conn.StorageVolLookupByName(pool, id+".qcow2")
	if err != nil {
		return "", 0, &fabric.NotFoundError{Resource: "volume", ID: id}
	}
	path, err := d.conn.StorageVolGetPath(vol)
	if err != nil {
		return "", 0, fmt.Errorf("get volume path: %w", err)
	}
	_, capacity, _, err := d.conn.StorageVolGetInfo(vol)
	if err != nil {
		return "", 0, fmt.Errorf("get volume info: %w", err)
	}
	return path, int(capacity / (1 << 30)), nil
}

func (d *core) buildDomainXML(name, flavorID string, flavor fabric.Flavor, diskPath, isoPath string) *domainXML {
	dom := &domainXML{
		Type:          "kvm",
		Name:          name,
		Title:         flavorID,
		Memory:        domainMemory{Unit: "KiB", Value: uint64(flavor.RAMMB) * 1024},
		CurrentMemory: domainMemory{Unit: "KiB", Value: uint64(flavor.RAMMB) * 1024},
		VCPU:          domainVCPU{Placement: "static", Value: flavor.VCPUs},
		OS: domainOS{
			Type: domainOSType{Arch: "x86_64", Value: "hvm"},
			Boot: domainBoot{Dev: "hd"},
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "destroy",
	}

	dom.Devices.Disks = append(dom.Devices.Disks, domainDisk{
		Type:   "file",
		Device: "disk",
		Driver: domainDiskDriver{Name: "qemu", Type: "qcow2"},
		Source: domainDiskSource{File: diskPath},
		Target: domainDiskTarget{Dev: "vda", Bus: "virtio"},
	})
	if isoPath != "" {
		dom.Devices.Disks = append(dom.Devices.Disks, domainDisk{
			Type:     "file",
			Device:   "cdrom",
			Driver:   domainDiskDriver{Name: "qemu", Type: "raw"},
			Source:   domainDiskSource{File: isoPath},
			Target:   domainDiskTarget{Dev: "sda", Bus: "sata"},
			ReadOnly: &struct{}{},
		})
	}
	dom.Devices.Interfaces = append(dom.Devices.Interfaces, domainIface{
		Type:   "bridge",
		Source: domainIfaceSource{Bridge: d.opts.Bridge},
		Model:  domainIfaceModel{Type: "virtio"},
	})
	dom.Devices.Serials = append(dom.Devices.Serials, domainSerial{Type: "pty"})
	dom.Devices.Consoles = append(dom.Devices.Consoles, domainConsole{Type: "pty"})
	return dom
}

// lookupAddresses 通过 MAC 在 ARP/neigh 表里找实例地址
func (d *core) lookupAddresses(dom libvirt.Domain) []string {
	xmlDesc, err := d.conn.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return nil
	}
	var parsed domainXML
	if err := xml.Unmarshal([]byte(xmlDesc), &parsed); err != nil {
		return nil
	}
	var mac string
	for _, iface := range parsed.Devices.Interfaces {
		if iface.MAC != nil && iface.MAC.Address != "" {
			mac = strings.ToLower(iface.MAC.Address)
			break
		}
	}
	if mac == "" {
		return nil
	}

	out, err := exec.Command("ip", "neigh").Output()
	if err != nil {
		return nil
	}
	return parseIPNeigh(out, mac)
}

func parseIPNeigh(out []byte, mac string) []string {
	lines := bytes.Split(out, []byte("\n"))
	var ips []string
	for _, line := range lines {
		fields := strings.Fields(string(line))
		if len(fields) >= 5 && strings.ToLower(fields[4]) == mac {
			ips = append(ips, fields[0])
		}
	}
	return ips
}
