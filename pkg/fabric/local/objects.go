package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jimyag/jdp/pkg/fabric"
)

// metaSuffix 对象自定义头的 sidecar 文件后缀
const metaSuffix = ".meta"

// ObjectStore 基于本地目录的对象存储驱动
// 对象放在 root/<container>/<key>，自定义头放在同名 sidecar 里
// 开发环境下 guest 的备份数据直接落在这里
type ObjectStore struct {
	root string
}

// NewObjectStore 创建本地对象存储
func NewObjectStore(root string) (*ObjectStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create object store root: %w", err)
	}
	return &ObjectStore{root: root}, nil
}

var _ fabric.ObjectStoreDriver = (*ObjectStore)(nil)

func (s *ObjectStore) objectPath(container, key string) string {
	return filepath.Join(s.root, container, filepath.FromSlash(key))
}

// PutObject 写入对象和自定义头
func (s *ObjectStore) PutObject(_ context.Context, container, key string, data []byte, headers map[string]string) error {
	path := s.objectPath(container, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create container dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if len(headers) == 0 {
		return nil
	}
	meta, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("marshal object headers: %w", err)
	}
	if err := os.WriteFile(path+metaSuffix, meta, 0o644); err != nil {
		return fmt.Errorf("write object headers: %w", err)
	}
	return nil
}

// HeadObject 返回对象元信息，自定义头从 sidecar 读出
func (s *ObjectStore) HeadObject(_ context.Context, container, key string) (*fabric.ObjectInfo, error) {
	path := s.objectPath(container, key)
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &fabric.NotFoundError{Resource: "object", ID: container + "/" + key}
		}
		return nil, err
	}
	info := &fabric.ObjectInfo{
		Key:          key,
		SizeBytes:    stat.Size(),
		LastModified: stat.ModTime().UTC().Format(time.RFC3339),
	}
	if meta, err := os.ReadFile(path + metaSuffix); err == nil {
		headers := map[string]string{}
		if err := json.Unmarshal(meta, &headers); err != nil {
			return nil, fmt.Errorf("parse object headers: %w", err)
		}
		info.Headers = headers
	}
	return info, nil
}

// GetContainer 按前缀列出容器里的对象
func (s *ObjectStore) GetContainer(_ context.Context, container, prefix string) ([]fabric.ObjectInfo, error) {
	containerDir := filepath.Join(s.root, container)
	if _, err := os.Stat(containerDir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var objects []fabric.ObjectInfo
	err := filepath.Walk(containerDir, func(path string, stat os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if stat.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(containerDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		objects = append(objects, fabric.ObjectInfo{
			Key:          key,
			SizeBytes:    stat.Size(),
			LastModified: stat.ModTime().UTC().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// DeleteObject 删除对象及其 sidecar
func (s *ObjectStore) DeleteObject(_ context.Context, container, key string) error {
	path := s.objectPath(container, key)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return &fabric.NotFoundError{Resource: "object", ID: container + "/" + key}
		}
		return err
	}
	// sidecar 不一定存在
	_ = os.Remove(path + metaSuffix)
	return nil
}
