package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"livesync/internal/config"
	"livesync/internal/jobs"
	"livesync/internal/logging"
	"livesync/internal/mapping"
	"livesync/internal/service"
	"livesync/internal/store"
)

var (
	configPath string

	cfg *config.Config
	log *logrus.Logger

	rootCmd = &cobra.Command{
		Use:   "livesync",
		Short: "Keep records of two record types in sync",
		Long:  `livesync maps records of one record type onto another according to stored Live Sync configurations.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				logrus.Fatalf("加载配置失败: %v", err)
			}
			log = logging.New(cfg.Log)
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (留空则只使用默认值和环境变量)")

	rootCmd.AddCommand(serveCmd, checkCmd, validateCmd, testCmd, runCmd, bulkCmd, metaCmd)
}

// app 命令共用的组件
type app struct {
	store   store.Store
	runner  *jobs.Runner
	hub     *jobs.Hub
	service *service.SyncService
}

// newApp 打开存储并组装同步服务，调用方负责 close
func newApp() *app {
	level := logger.Warn
	if cfg.Database.Debug {
		level = logger.Info
	}
	st, err := store.Open(store.Options{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.GetDSN(),
		LogLevel: level,
	})
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}

	hub := jobs.NewHub()
	runner := jobs.NewRunner(st, cfg.Sync.JobWorkers, cfg.Sync.JobQueueSize)
	runner.RegisterObserver(&jobs.LogObserver{Logger: log})
	runner.RegisterObserver(hub)

	svc := service.NewSyncService(st, mapping.NewRegistry(), runner, service.OptionsFromConfig(cfg.Sync), log)
	svc.RegisterObserver(&service.LogObserver{Logger: log})

	return &app{store: st, runner: runner, hub: hub, service: svc}
}

func (a *app) start(ctx context.Context) {
	a.runner.Start(ctx)
}

func (a *app) close() {
	a.runner.Stop()
	a.hub.Close()
	if err := a.store.Close(); err != nil {
		log.Warnf("关闭数据库失败: %v", err)
	}
}
