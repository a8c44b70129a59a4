package guestagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jimyag/jdp/pkg/apierror"
)

// HTTPClient 通过 HTTP JSON 调用 guest agent 的默认实现
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient 创建客户端，baseURL 形如 http://10.0.0.5:8778
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// call 发起一次 RPC，result 为 nil 时丢弃响应体
func (c *HTTPClient) call(ctx context.Context, method string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", method, err)
		}
		body = bytes.NewReader(raw)
	}

	url := c.baseURL + "/v1/guest/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apierror.Wrapf(apierror.ErrGuestError, err, "guest call %s failed", method)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp apierror.ErrorResponse
		if jsonErr := json.Unmarshal(raw, &errResp); jsonErr == nil && len(errResp.Errors) > 0 {
			return &errResp.Errors[0]
		}
		return apierror.Wrapf(apierror.ErrGuestError, nil,
			"guest call %s returned %d: %s", method, resp.StatusCode, string(raw))
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("decode %s response: %w", method, err)
		}
	}
	return nil
}

func (c *HTTPClient) Prepare(ctx context.Context, req *PrepareRequest) error {
	return c.call(ctx, "prepare", req, nil)
}

func (c *HTTPClient) StopDB(ctx context.Context, doNotStartOnReboot bool) error {
	return c.call(ctx, "stop_db", map[string]bool{"do_not_start_on_reboot": doNotStartOnReboot}, nil)
}

func (c *HTTPClient) Restart(ctx context.Context) error {
	return c.call(ctx, "restart", nil, nil)
}

func (c *HTTPClient) StartWithConfig(ctx context.Context, configContents string) error {
	return c.call(ctx, "start_db_with_conf_changes", map[string]string{"config_contents": configContents}, nil)
}

func (c *HTTPClient) ResetConfiguration(ctx context.Context, configContents string) error {
	return c.call(ctx, "reset_configuration", map[string]string{"config_contents": configContents}, nil)
}

func (c *HTTPClient) CreateBackup(ctx context.Context, backupID string) error {
	return c.call(ctx, "create_backup", map[string]string{"backup_id": backupID}, nil)
}

func (c *HTTPClient) UpdateGuest(ctx context.Context) error {
	return c.call(ctx, "update_guest", nil, nil)
}

func (c *HTTPClient) GetVolumeInfo(ctx context.Context) (*VolumeInfo, error) {
	var info VolumeInfo
	if err := c.call(ctx, "get_volume_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) ResizeFS(ctx context.Context) error {
	return c.call(ctx, "resize_fs", nil, nil)
}

func (c *HTTPClient) IsReadOnly(ctx context.Context) (bool, error) {
	var result struct {
		ReadOnly bool `json:"read_only"`
	}
	if err := c.call(ctx, "get_replica_state", nil, &result); err != nil {
		return false, err
	}
	return result.ReadOnly, nil
}

func (c *HTTPClient) GetReplicationSnapshot(ctx context.Context) (map[string]string, error) {
	var result struct {
		Snapshot map[string]string `json:"snapshot"`
	}
	if err := c.call(ctx, "get_replication_snapshot", nil, &result); err != nil {
		return nil, err
	}
	return result.Snapshot, nil
}

func (c *HTTPClient) ClusterMeet(ctx context.Context, ip string, port int) error {
	return c.call(ctx, "cluster_meet", map[string]any{"ip": ip, "port": port}, nil)
}

func (c *HTTPClient) ClusterAddSlots(ctx context.Context, first, last int) error {
	return c.call(ctx, "cluster_addslots", map[string]int{"first_slot": first, "last_slot": last}, nil)
}

func (c *HTTPClient) PrepPrimary(ctx context.Context) error {
	return c.call(ctx, "prep_primary", nil, nil)
}

func (c *HTTPClient) AddMembers(ctx context.Context, ips []string) error {
	return c.call(ctx, "add_members", map[string][]string{"members": ips}, nil)
}

func (c *HTTPClient) AddShard(ctx context.Context, replicaSetName, primaryIP string) error {
	return c.call(ctx, "add_shard", map[string]string{
		"replica_set_name": replicaSetName,
		"primary_ip":       primaryIP,
	}, nil)
}

func (c *HTTPClient) AddConfigServers(ctx context.Context, ips []string) error {
	return c.call(ctx, "add_config_servers", map[string][]string{"config_servers": ips}, nil)
}

func (c *HTTPClient) CreateAdminUser(ctx context.Context, password string) error {
	return c.call(ctx, "create_admin_user", map[string]string{"password": password}, nil)
}

func (c *HTTPClient) StoreAdminPassword(ctx context.Context, password string) error {
	return c.call(ctx, "store_admin_password", map[string]string{"password": password}, nil)
}

func (c *HTTPClient) GetAdminPassword(ctx context.Context) (string, error) {
	var result struct {
		Password string `json:"password"`
	}
	if err := c.call(ctx, "get_admin_password", nil, &result); err != nil {
		return "", err
	}
	return result.Password, nil
}

func (c *HTTPClient) GetPublicKeys(ctx context.Context, user string) (string, error) {
	var result struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.call(ctx, "get_public_keys", map[string]string{"user": user}, &result); err != nil {
		return "", err
	}
	return result.PublicKey, nil
}

func (c *HTTPClient) AuthorizePublicKeys(ctx context.Context, user string, keys []string) error {
	return c.call(ctx, "authorize_public_keys", map[string]any{"user": user, "public_keys": keys}, nil)
}

func (c *HTTPClient) InstallCluster(ctx context.Context, memberIPs []string) error {
	return c.call(ctx, "install_cluster", map[string][]string{"members": memberIPs}, nil)
}

func (c *HTTPClient) ClusterComplete(ctx context.Context) error {
	return c.call(ctx, "cluster_complete", nil, nil)
}

// HTTPDialer 按实例地址创建 HTTPClient
type HTTPDialer struct {
	// Port agent 监听端口
	Port int
	// Timeout 单次调用超时
	Timeout time.Duration
}

var _ Dialer = (*HTTPDialer)(nil)

// Dial 为给定实例地址创建客户端
func (d *HTTPDialer) Dial(address string) Client {
	port := d.Port
	if port == 0 {
		port = 8778
	}
	return NewHTTPClient(fmt.Sprintf("http://%s:%d", address, port), d.Timeout)
}
