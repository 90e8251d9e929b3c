// 程序入口：读取配置、初始化依赖并启动中继服务；路由注册在 internal/api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"survey-map/internal/api"
	"survey-map/internal/cache"
	"survey-map/internal/central"
	"survey-map/internal/config"
	"survey-map/internal/logger"
	"survey-map/internal/middleware"
	"survey-map/internal/migrate"
	"survey-map/internal/stats"
	"survey-map/internal/utils"
)

func main() {
	config.LoadDotenv()
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.Load()
	l.Debug("config_loaded", "api_base", cfg.APIBase, "central", cfg.CentralURL, "addr", cfg.Addr)

	// 背景：统计为可选功能，数据库不可用时不阻断中继
	var st *stats.Store
	if cfg.StatsEnabled {
		if db, err := utils.OpenPostgresFromEnv(); err != nil {
			l.Error("db_open_error", "err", err)
		} else if err := db.Ping(); err != nil {
			l.Error("db_ping_error", "err", err)
			_ = db.Close()
		} else if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			_ = db.Close()
		} else {
			l.Info("db_open_ok")
			st = stats.AttachDB(db)
		}
	} else {
		l.Info("stats_disabled")
	}
	defer st.Close()

	var rcache *cache.Cache
	if cfg.RedisEnabled {
		rc := utils.OpenRedisFromEnv()
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
			_ = rc.Close()
		} else {
			l.Info("redis_ping_ok")
			rcache = cache.New(rc, cfg.CacheTTL)
			defer rc.Close()
		}
	} else {
		l.Info("redis_disabled")
	}

	client := central.New(cfg.CentralURL, &http.Client{Timeout: cfg.CentralTimeout})
	apiMux := api.BuildRoutes(api.Deps{
		Central: client,
		Cache:   rcache,
		Stats:   st,
		Limits: api.Limits{
			ProjectsTop:  cfg.ProjectsTop,
			FormsTop:     cfg.FormsTop,
			CountsTop:    cfg.CountsTop,
			GeoPointsTop: cfg.GeoPointsTop,
		},
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	// 向前端暴露 API 基础路径，避免硬编码
	mux.HandleFunc("GET /config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + cfg.APIBase + "'\n"))
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, middleware.Options{RateLimitEnabled: cfg.RateLimitEnabled, RateLimitQPS: cfg.RateLimitQPS})
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()

	var err error
	if cfg.TLSEnabled {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSCN); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertFile)
		err = s.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	} else {
		l.Info("listening", "addr", cfg.Addr, "api", cfg.APIBase)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_done")
}
