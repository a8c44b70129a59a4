// Package api 提供控制面的 HTTP 接口
// 任务指令是 cast 式的：准入通过即返回 202，流程在后台推进
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jimyag/jdp/internal/jdp/service"
)

type API struct {
	engine *gin.Engine
	server *http.Server

	instance *Instance
	cluster  *Cluster
	backup   *Backup
	guest    *Guest
	admin    *Admin
}

func New(
	addr string,
	instanceService *service.InstanceService,
	clusterService *service.ClusterService,
	backupService *service.BackupService,
	statusService *service.StatusService,
	adminService *service.AdminService,
) (*API, error) {
	engine := gin.Default()
	api := &API{
		engine:   engine,
		instance: NewInstance(instanceService),
		cluster:  NewCluster(clusterService),
		backup:   NewBackup(backupService, instanceService),
		guest:    NewGuest(statusService),
		admin:    NewAdmin(adminService),
	}
	group := engine.Group("/api")
	api.instance.RegisterRoutes(group)
	api.cluster.RegisterRoutes(group)
	api.backup.RegisterRoutes(group)
	api.guest.RegisterRoutes(group)
	api.admin.RegisterRoutes(group)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api.server = &http.Server{
		Addr:    addr,
		Handler: engine,
	}
	return api, nil
}

func (a *API) Name() string {
	return "api"
}

func (a *API) Run(ctx context.Context) error {
	return a.server.ListenAndServe()
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
