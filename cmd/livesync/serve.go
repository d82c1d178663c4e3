package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"livesync/internal/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway and the background job runner",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := newApp()
		a.start(ctx)

		server := gateway.New(gateway.NewHandler(a.service, a.store, a.hub, log))

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Listen(cfg.Server.Addr())
		}()
		log.Infof("livesync 启动成功，监听 %s 🚗🚀", cfg.Server.Addr())

		select {
		case err := <-errCh:
			a.close()
			log.Fatalf("服务启动失败: %v", err)
		case <-ctx.Done():
		}

		log.Info("正在关闭服务")
		// 先关闭事件流，否则长连接会拖住关闭
		a.hub.Close()
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Warnf("关闭 HTTP 服务失败: %v", err)
		}
		a.close()
		log.Info("服务已关闭")
	},
}
