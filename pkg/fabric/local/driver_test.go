package local

import (
	"encoding/xml"
	"testing"

	"github.com/digitalocean/go-libvirt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/jdp/pkg/fabric"
)

func TestMapDomainState(t *testing.T) {
	tests := []struct {
		name  string
		state libvirt.DomainState
		want  string
	}{
		{"running", libvirt.DomainRunning, fabric.ServerStatusActive},
		{"blocked", libvirt.DomainBlocked, fabric.ServerStatusActive},
		{"paused", libvirt.DomainPaused, fabric.ServerStatusReboot},
		{"shutdown", libvirt.DomainShutdown, fabric.ServerStatusReboot},
		{"shutoff", libvirt.DomainShutoff, fabric.ServerStatusShutdown},
		{"crashed", libvirt.DomainCrashed, fabric.ServerStatusError},
		{"nostate", libvirt.DomainNostate, fabric.ServerStatusBuild},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapDomainState(int32(tt.state)))
		})
	}
}

func TestProjectStatusPendingResize(t *testing.T) {
	c := &core{resizes: map[string]pendingResize{
		"srv-1": {prevFlavorID: "1", newFlavorID: "2"},
	}}

	// 有挂起的 resize 时状态固定为 VERIFY_RESIZE
	assert.Equal(t, fabric.ServerStatusVerifyResize, c.projectStatus("srv-1", int32(libvirt.DomainShutoff)))
	// 没有挂起的实例按 domain 状态映射
	assert.Equal(t, fabric.ServerStatusShutdown, c.projectStatus("srv-2", int32(libvirt.DomainShutoff)))
}

func TestBuildDomainXML(t *testing.T) {
	c := &core{opts: Options{Bridge: "br0"}}
	flavor := fabric.Flavor{ID: "2", Name: "local.small", RAMMB: 1024, VCPUs: 2, DiskGB: 10}

	dom := c.buildDomainXML("dbi-test", "2", flavor, "/var/lib/jdp/dbi-test.qcow2", "/var/lib/jdp/dbi-test-cloudinit.iso")

	require.Len(t, dom.Devices.Disks, 2)
	assert.Equal(t, "disk", dom.Devices.Disks[0].Device)
	assert.Equal(t, "vda", dom.Devices.Disks[0].Target.Dev)
	assert.Equal(t, "cdrom", dom.Devices.Disks[1].Device)
	assert.NotNil(t, dom.Devices.Disks[1].ReadOnly)

	// flavor id 放在 title 里，便于重建时还原
	assert.Equal(t, "2", dom.Title)
	assert.Equal(t, uint64(1024*1024), dom.Memory.Value)
	assert.Equal(t, 2, dom.VCPU.Value)

	require.Len(t, dom.Devices.Interfaces, 1)
	assert.Equal(t, "br0", dom.Devices.Interfaces[0].Source.Bridge)

	// 序列化再解析应当无损还原规格信息
	raw, err := xml.MarshalIndent(dom, "", "  ")
	require.NoError(t, err)
	var parsed domainXML
	require.NoError(t, xml.Unmarshal(raw, &parsed))
	assert.Equal(t, "2", parsed.Title)
	assert.Equal(t, uint64(1024*1024), parsed.Memory.Value)
	assert.Equal(t, 2, parsed.VCPU.Value)
}

func TestBuildDomainXMLNoISO(t *testing.T) {
	c := &core{opts: Options{Bridge: "virbr0"}}
	flavor := fabric.Flavor{ID: "1", RAMMB: 512, VCPUs: 1, DiskGB: 2}

	dom := c.buildDomainXML("dbi-bare", "1", flavor, "/tmp/d.qcow2", "")
	require.Len(t, dom.Devices.Disks, 1)
	assert.Equal(t, "disk", dom.Devices.Disks[0].Device)
}

func TestParseIPNeigh(t *testing.T) {
	out := []byte(`192.168.122.10 dev virbr0 lladdr 52:54:00:aa:bb:cc STALE
192.168.122.11 dev virbr0 lladdr 52:54:00:11:22:33 REACHABLE
fe80::5054:ff:feaa:bbcc dev virbr0 lladdr 52:54:00:aa:bb:cc router STALE
`)

	t.Run("match", func(t *testing.T) {
		ips := parseIPNeigh(out, "52:54:00:aa:bb:cc")
		assert.Equal(t, []string{"192.168.122.10", "fe80::5054:ff:feaa:bbcc"}, ips)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, parseIPNeigh(out, "52:54:00:ff:ff:ff"))
	})

	t.Run("empty output", func(t *testing.T) {
		assert.Empty(t, parseIPNeigh(nil, "52:54:00:aa:bb:cc"))
	})
}
