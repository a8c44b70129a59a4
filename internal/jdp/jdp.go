// Package jdp 提供控制面服务器的主入口和初始化逻辑
package jdp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jimmicro/grace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jimyag/jdp/internal/jdp/api"
	"github.com/jimyag/jdp/internal/jdp/config"
	"github.com/jimyag/jdp/internal/jdp/repository"
	"github.com/jimyag/jdp/internal/jdp/service"
	"github.com/jimyag/jdp/pkg/fabric/local"
	"github.com/jimyag/jdp/pkg/guestagent"
)

type Server struct {
	cfg  *config.Config
	repo *repository.Repository
	api  *api.API

	auditor     *service.UsageAuditor
	auditorStop context.CancelFunc
	auditorDone chan struct{}
}

func New(cfg *config.Config) (*Server, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger

	// 1. 打开 sqlite 仓库，自动迁移表结构
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	// 2. 连接本机 libvirt，得到计算和块存储驱动
	compute, volumes, err := local.New(local.Options{
		URI:      cfg.LibvirtURI,
		PoolName: cfg.PoolName,
		PoolPath: filepath.Join(cfg.DataDir, "pool"),
		Bridge:   cfg.Bridge,
	})
	if err != nil {
		return nil, fmt.Errorf("connect fabric: %w", err)
	}

	// 3. 本地对象存储和 DNS
	objects, err := local.NewObjectStore(filepath.Join(cfg.DataDir, "objects"))
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	dns, err := local.NewDNS(filepath.Join(cfg.DataDir, "dns_entries"), cfg.DNSDomain)
	if err != nil {
		return nil, fmt.Errorf("open dns entries: %w", err)
	}

	// 4. 共享依赖
	deps := &service.Deps{
		Instances:  repository.NewInstanceRepository(repo.DB()),
		Clusters:   repository.NewClusterRepository(repo.DB()),
		Backups:    repository.NewBackupRepository(repo.DB()),
		Statuses:   repository.NewStatusRepository(repo.DB()),
		Quotas:     repository.NewQuotaRepository(repo.DB(), cfg.QuotaDefaults),
		Datastores: repository.NewDatastoreRepository(repo.DB()),
		Configs:    repository.NewConfigurationRepository(repo.DB()),
		Faults:     repository.NewFaultRepository(repo.DB()),
		Compute:    compute,
		Volumes:    volumes,
		Objects:    objects,
		DNS:        dns,
		Guests:     &guestagent.HTTPDialer{Port: cfg.GuestPort, Timeout: cfg.AgentCallTimeout},
		Notifier:   service.NewNotifier(prometheus.DefaultRegisterer, cfg.Region, cfg.ServiceID),
		Cfg:        cfg,
	}

	// 5. 各服务
	statusService := service.NewStatusService(deps)
	instanceService := service.NewInstanceService(deps, statusService)
	clusterService := service.NewClusterService(deps, instanceService)
	backupService := service.NewBackupService(deps)
	adminService := service.NewAdminService(deps)
	auditor := service.NewUsageAuditor(deps)

	// 6. HTTP API
	apiInstance, err := api.New(cfg.Address,
		instanceService, clusterService, backupService, statusService, adminService)
	if err != nil {
		return nil, err
	}

	server := &Server{
		cfg:     cfg,
		repo:    repo,
		api:     apiInstance,
		auditor: auditor,
	}
	return server, nil
}

func (s *Server) Run(ctx context.Context) error {
	// 用量对账器跟随服务生命周期
	auditorCtx, cancel := context.WithCancel(zerolog.DefaultContextLogger.WithContext(context.Background()))
	s.auditorStop = cancel
	s.auditorDone = make(chan struct{})
	go func() {
		defer close(s.auditorDone)
		s.auditor.Run(auditorCtx)
	}()

	// 使用 grace.Shepherd 管理服务生命周期
	services := []grace.Grace{
		s.api,
	}

	shepherd := grace.NewShepherd(
		services,
		grace.WithTimeout(30*time.Second),
		grace.WithLogger(&zerologLogger{}),
	)

	shepherd.Start(ctx)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.auditorStop != nil {
		s.auditorStop()
		<-s.auditorDone
	}
	if err := s.api.Shutdown(ctx); err != nil {
		return err
	}
	return s.repo.Close()
}

// Name 实现 grace.Grace 接口
func (s *Server) Name() string {
	return "JDP Server"
}

// zerologLogger 实现 grace.Logger 接口
type zerologLogger struct{}

func (l *zerologLogger) Info(msg string, args ...interface{}) {
	logger := zerolog.DefaultContextLogger.Info()
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}

func (l *zerologLogger) Error(msg string, args ...interface{}) {
	logger := zerolog.DefaultContextLogger.Error()
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}
