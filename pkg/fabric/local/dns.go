package local

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/jimyag/jdp/pkg/fabric"
)

// DNS 把实例记录维护在一个 hosts 风格的文件里
// 开发环境用 dnsmasq 的 addn-hosts 指到这个文件即可解析
type DNS struct {
	path   string
	domain string

	mu sync.Mutex
	// instance id -> address
	entries map[string]string
}

// NewDNS 创建本地 DNS 驱动，已有记录会被加载
func NewDNS(path, domain string) (*DNS, error) {
	d := &DNS{
		path:    path,
		domain:  strings.TrimSuffix(domain, "."),
		entries: map[string]string{},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read dns entries: %w", err)
		}
		return d, nil
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		hostname := fields[1]
		instanceID := strings.TrimSuffix(hostname, "."+d.domain)
		d.entries[instanceID] = fields[0]
	}
	return d, nil
}

var _ fabric.DNSDriver = (*DNS)(nil)

// DetermineHostname 实例在域下的主机名
func (d *DNS) DetermineHostname(instanceID string) string {
	return instanceID + "." + d.domain
}

// CreateInstanceEntry 登记实例记录，重复登记覆盖旧地址
func (d *DNS) CreateInstanceEntry(_ context.Context, instanceID, address string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[instanceID] = address
	return d.flush()
}

// DeleteInstanceEntry 摘除实例记录，不存在视为已摘除
func (d *DNS) DeleteInstanceEntry(_ context.Context, instanceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[instanceID]; !ok {
		return nil
	}
	delete(d.entries, instanceID)
	return d.flush()
}

// flush 整体重写记录文件，调用方持锁
func (d *DNS) flush() error {
	ids := make([]string, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(d.entries[id])
		b.WriteString(" ")
		b.WriteString(d.DetermineHostname(id))
		b.WriteString("\n")
	}
	if err := os.WriteFile(d.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write dns entries: %w", err)
	}
	return nil
}
