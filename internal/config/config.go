// 包 config：环境变量配置；启动时加载 .env 与 data/env/.env，未设置的项使用代码内默认值
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"survey-map/internal/logger"
)

// Config：中继服务与命令行工具共用的配置
type Config struct {
	Addr    string
	APIBase string

	CentralURL     string
	CentralTimeout time.Duration
	ProjectsTop    int
	FormsTop       int
	CountsTop      int
	GeoPointsTop   int

	RedisEnabled bool
	CacheTTL     time.Duration

	StatsEnabled bool

	RateLimitEnabled bool
	RateLimitQPS     int

	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCN       string
}

// LoadDotenv：依次尝试加载 .env 与 data/env/.env；已存在的环境变量不被覆盖
func LoadDotenv() {
	for _, p := range []string{".env", "data/env/.env"} {
		if err := godotenv.Load(p); err == nil {
			logger.L().Debug("dotenv_loaded", "path", p)
		}
	}
}

// Load：读取环境变量生成配置
func Load() Config {
	return Config{
		Addr:             str("ADDR", ":8080"),
		APIBase:          apiBase(str("API_BASE", "/api")),
		CentralURL:       strings.TrimRight(str("CENTRAL_URL", "http://localhost:8383"), "/"),
		CentralTimeout:   time.Duration(num("CENTRAL_TIMEOUT_S", 15)) * time.Second,
		ProjectsTop:      num("PROJECTS_TOP", 10),
		FormsTop:         num("FORMS_TOP", 10),
		CountsTop:        num("COUNTS_TOP", 1000),
		GeoPointsTop:     num("GEOPOINTS_TOP", 0),
		RedisEnabled:     flag("REDIS_ENABLED"),
		CacheTTL:         time.Duration(num("CACHE_TTL_S", 60)) * time.Second,
		StatsEnabled:     flag("STATS_ENABLED"),
		RateLimitEnabled: flag("RATE_LIMIT_ENABLED"),
		RateLimitQPS:     num("RATE_LIMIT_QPS", 200),
		TLSEnabled:       flag("TLS_ENABLED"),
		TLSCertFile:      str("TLS_CERT_FILE", "data/tls/server.crt"),
		TLSKeyFile:       str("TLS_KEY_FILE", "data/tls/server.key"),
		TLSCN:            str("TLS_CN", "localhost"),
	}
}

// apiBase：规范为 "/x" 形式；根路径挂载时为空串
func apiBase(v string) string {
	v = strings.Trim(v, "/")
	if v == "" {
		return ""
	}
	return "/" + v
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// num：解析失败或为负数时回退默认值
func num(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.L().Warn("config_invalid_int", "key", key, "value", v)
		return def
	}
	return n
}

func flag(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
