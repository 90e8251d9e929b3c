package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"survey-map/internal/central"
	"survey-map/internal/logger"
)

// bearer：读取调用方凭据；兼容不带 Bearer 前缀的原样转发
func bearer(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// 文档注释：获取访问者 IP（仅用于日志）
// 背景：多层代理环境下，优先常见反向代理头，最后回退远端地址。
// 约束：头部可被伪造，结果不参与鉴权。
func visitorIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"cf-connecting-ip", "x-real-ip", "x-client-ip"} {
		if x := h.Get(k); x != "" {
			return x
		}
	}
	if x := h.Get("forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := strings.Trim(x[i+4:], "\" ")
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			return y
		}
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		return host[:i]
	}
	return host
}

func projectID(r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("projectId"))
	return n, err == nil && n >= 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Message string `json:"message"`
}

// writeError：按错误类别返回状态码与 {"message"}
func writeError(w http.ResponseWriter, r *http.Request, route string, err error) int {
	status, msg := central.StatusOf(err)
	if status < 400 {
		status = http.StatusInternalServerError
	}
	logger.L().Warn("relay_error", "route", route, "status", status, "ip", visitorIP(r), "err", err)
	writeJSON(w, status, errorBody{Message: msg})
	return status
}
