package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pdf-translator/config"
	"pdf-translator/extract"
	"pdf-translator/handlers"
	"pdf-translator/logging"
	"pdf-translator/middleware"
)

const (
	sessionCleanupInterval = time.Hour
	shutdownTimeout        = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 Web 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "监听地址（覆盖配置）")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := gin.Default()
	r.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

	// 会话隔离：每个用户的任务和文件完全独立
	sessions := middleware.NewSessionManager(cfg.Server.SessionTimeout)
	r.Use(sessions.Middleware())

	h := handlers.NewHandler(ctx, cfg, log, extract.New(extract.Options{}, log), nil)
	h.Register(r.Group("/api"))
	go sessions.RunCleanup(ctx, sessionCleanupInterval, h.RemoveSession)

	if err := mountFrontend(r, cfg, log); err != nil {
		return err
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.Info("服务器启动", map[string]interface{}{
			"addr":      cfg.Server.Addr,
			"provider":  string(cfg.Provider.Type),
			"workers":   cfg.Pipeline.Workers,
			"max_chars": cfg.Pipeline.MaxChars,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("正在关闭服务器")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("关闭服务器失败", err)
	}
	h.Wait()
	return nil
}

// mountFrontend 开发模式代理到前端开发服务器，否则提供静态文件
func mountFrontend(r *gin.Engine, cfg *config.Config, log *logging.Logger) error {
	if cfg.Server.DevMode {
		target, err := url.Parse(cfg.Server.FrontendURL)
		if err != nil {
			return err
		}
		log.Info("开发模式：代理前端请求", map[string]interface{}{"target": target.String()})
		proxy := httputil.NewSingleHostReverseProxy(target)
		r.NoRoute(func(c *gin.Context) {
			proxy.ServeHTTP(c.Writer, c.Request)
		})
		return nil
	}

	if info, err := os.Stat(cfg.Server.StaticDir); err != nil || !info.IsDir() {
		log.Warn("前端文件未找到", map[string]interface{}{"dir": cfg.Server.StaticDir})
		r.NoRoute(func(c *gin.Context) {
			c.String(http.StatusNotFound, "Frontend not built. Set static_dir or DEV_MODE=true")
		})
		return nil
	}

	log.Info("生产模式：使用前端静态文件", map[string]interface{}{"dir": cfg.Server.StaticDir})
	r.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.Server.StaticDir))))
	return nil
}
