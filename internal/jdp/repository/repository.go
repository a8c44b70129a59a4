// Package repository 提供数据持久化层实现
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // 纯 Go SQLite 驱动，不需要 CGO

	"github.com/jimyag/jdp/internal/jdp/repository/model"
)

// Repository 数据库仓库
type Repository struct {
	db *gorm.DB
}

// New 创建新的 Repository 实例
func New(dbPath string) (*Repository, error) {
	// 确保数据库目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// 使用纯 Go SQLite 驱动，不需要 CGO
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dbPath,
		Conn:       sqlDB,
	}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Instance{},
		&model.Cluster{},
		&model.Backup{},
		&model.ServiceStatus{},
		&model.AgentHeartbeat{},
		&model.Fault{},
		&model.Quota{},
		&model.Reservation{},
		&model.Datastore{},
		&model.DatastoreVersion{},
		&model.ConfigurationGroup{},
		&model.ConfigurationParameter{},
		&model.RootHistory{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Repository{db: db}, nil
}

// DB 返回 GORM 数据库实例
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithContext 返回带上下文的数据库实例
func (r *Repository) WithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// Close 关闭数据库连接
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListOptions 分页列表选项
// 结果按 updated_at 倒序，marker 是上一页返回的偏移量
type ListOptions struct {
	Limit  int
	Marker string
	// IncludeDeleted 管理端列表可以带上已删除行
	IncludeDeleted bool
}

const defaultPageLimit = 20

// applyPage 把分页选项套到查询上，返回实际 limit 和偏移
func applyPage(query *gorm.DB, opts ListOptions) (*gorm.DB, int, int) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	offset := 0
	if opts.Marker != "" {
		if n, err := strconv.Atoi(opts.Marker); err == nil && n > 0 {
			offset = n
		}
	}
	return query.Order("updated_at desc").Offset(offset).Limit(limit), limit, offset
}

// nextMarker 只有整页满了才给下一页标记
func nextMarker(count, limit, offset int) string {
	if count < limit {
		return ""
	}
	return strconv.Itoa(offset + limit)
}
