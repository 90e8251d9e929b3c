// 包 api：中继路由；把调用方的 bearer 凭据原样转发给调查数据服务，并整理为前端所需结构
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"survey-map/internal/cache"
	"survey-map/internal/central"
	"survey-map/internal/geopoint"
	"survey-map/internal/logger"
	"survey-map/internal/metrics"
	"survey-map/internal/stats"
	"survey-map/internal/submission"
)

// Central：中继依赖的调查数据服务操作，由 *central.Client 实现
type Central interface {
	ListProjects(ctx context.Context, token string, top int) ([]central.Project, error)
	ListDatasets(ctx context.Context, token string, projectID int, top int) ([]central.Dataset, error)
	ListFields(ctx context.Context, token string, projectID int, formID string) ([]submission.FieldSchemaEntry, error)
	ListSubmissions(ctx context.Context, token string, projectID int, formID string, q central.Query) ([]submission.Record, error)
	ListSubmissionStates(ctx context.Context, token string, projectID int, formID string, top int) ([]submission.Record, error)
	CurrentUser(ctx context.Context, token string) (central.User, error)
	CreateSession(ctx context.Context, email, password string) (central.Session, error)
}

// Limits：各列表接口的 $top
type Limits struct {
	ProjectsTop  int
	FormsTop     int
	CountsTop    int
	GeoPointsTop int
}

// Deps：路由依赖；Cache 与 Stats 可为 nil（未启用）
type Deps struct {
	Central Central
	Cache   *cache.Cache
	Stats   *stats.Store
	Limits  Limits
}

// 登录请求体上限
const maxLoginBody = 16 << 10

var (
	errBadRequest  = errors.New("bad request")
	errMissingBody = errors.New("email and password are required")
)

type handlerFunc func(ctx context.Context, r *http.Request, token string) (any, error)

// 文档注释：构建并返回中继路由
// 背景：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀。
// 约束：缺少凭据的请求直接 401，不访问上游；上游 401 时清除该凭据下的缓存。
func BuildRoutes(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth", d.wrap("auth", false, d.login))
	mux.HandleFunc("GET /auth/user", d.wrap("user", true, d.currentUser))
	mux.HandleFunc("GET /projects", d.wrap("projects", true, d.projects))
	mux.HandleFunc("GET /projects/{projectId}/datasets", d.wrap("datasets", true, d.datasets))
	mux.HandleFunc("GET /projects/{projectId}/datasets/{datasetId}/submissions", d.wrap("submissions", true, d.submissions))
	mux.HandleFunc("GET /projects/{projectId}/datasets/{datasetId}/entities", d.wrap("entities", true, d.entities))
	mux.HandleFunc("GET /projects/{projectId}/datasets/{datasetId}/forms", d.wrap("forms", true, d.reviewStates))
	mux.HandleFunc("GET /projects/{projectId}/forms/{formId}/submissions", d.wrap("counts", true, d.counts))
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		t, err := d.Stats.GetTotals(r.Context())
		if err != nil {
			writeError(w, r, "stats", err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	})
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

func statusClass(code int) string { return fmt.Sprintf("%dxx", code/100) }

func (d Deps) wrap(route string, auth bool, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		tok := bearer(r)
		status := http.StatusOK
		defer func() {
			metrics.RelayRequestsTotal.WithLabelValues(route, statusClass(status)).Inc()
			metrics.RelayDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
		}()
		if auth && tok == "" {
			status = writeError(w, r, route, central.ErrNoToken)
			return
		}
		out, err := fn(r.Context(), r, tok)
		if err != nil {
			if errors.Is(err, errBadRequest) {
				status = http.StatusBadRequest
				writeJSON(w, status, errorBody{Message: err.Error()})
				return
			}
			if errors.Is(err, central.ErrUnauthorized) {
				d.Cache.Drop(r.Context(), tok)
			}
			status = writeError(w, r, route, err)
			return
		}
		d.Stats.Incr(r.Context(), route)
		logger.L().Debug("relay_ok", "route", route, "ip", visitorIP(r), "duration_ms", time.Since(t0).Milliseconds())
		writeJSON(w, status, out)
	}
}

func badRequest(err error) error { return fmt.Errorf("%w: %v", errBadRequest, err) }

// cached：命中缓存直接返回；未命中时调用 load 并写回
func cached[T any](ctx context.Context, c *cache.Cache, tok, resource string, load func() (T, error)) (T, error) {
	var v T
	key := cache.Key(tok, resource)
	if c.Get(ctx, key, &v) {
		logger.L().Debug("relay_cache_hit", "resource", resource)
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(ctx, key, v)
	return v, nil
}

func (d Deps) login(ctx context.Context, r *http.Request, _ string) (any, error) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLoginBody)).Decode(&req); err != nil {
		return nil, badRequest(err)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, badRequest(errMissingBody)
	}
	return d.Central.CreateSession(ctx, req.Email, req.Password)
}

func (d Deps) currentUser(ctx context.Context, _ *http.Request, tok string) (any, error) {
	u, err := d.Central.CurrentUser(ctx, tok)
	if err != nil {
		return nil, err
	}
	return userResult{Username: u.Username()}, nil
}

func (d Deps) projects(ctx context.Context, _ *http.Request, tok string) (any, error) {
	return cached(ctx, d.Cache, tok, fmt.Sprintf("projects?top=%d", d.Limits.ProjectsTop), func() ([]central.Project, error) {
		return d.Central.ListProjects(ctx, tok, d.Limits.ProjectsTop)
	})
}

func (d Deps) datasets(ctx context.Context, r *http.Request, tok string) (any, error) {
	pid, ok := projectID(r)
	if !ok {
		return nil, badRequest(errors.New("invalid project id"))
	}
	return cached(ctx, d.Cache, tok, fmt.Sprintf("projects/%d/datasets?top=%d", pid, d.Limits.FormsTop), func() ([]central.Dataset, error) {
		return d.Central.ListDatasets(ctx, tok, pid, d.Limits.FormsTop)
	})
}

func (d Deps) submissions(ctx context.Context, r *http.Request, tok string) (any, error) {
	pid, ok := projectID(r)
	if !ok {
		return nil, badRequest(errors.New("invalid project id"))
	}
	ds := r.PathValue("datasetId")
	fields, err := d.Central.ListFields(ctx, tok, pid, ds)
	if err != nil {
		return nil, err
	}
	path, found := submission.DetectGeoPath(fields)
	recs, err := d.Central.ListSubmissions(ctx, tok, pid, ds, central.Query{Filter: central.FilterNotRejected})
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []submission.Record{}
	}
	res := submissionsResult{
		Submissions:        recs,
		Entities:           geopoint.ExtractEntities(recs, path),
		GeoPointsAvailable: found,
		TotalSubmissions:   len(recs),
	}
	if found {
		res.GeoPointPath = &path
	}
	logger.L().Debug("relay_submissions", "dataset", ds, "submissions", len(recs), "entities", len(res.Entities), "geo_path", path)
	return res, nil
}

func (d Deps) entities(ctx context.Context, r *http.Request, tok string) (any, error) {
	pid, ok := projectID(r)
	if !ok {
		return nil, badRequest(errors.New("invalid project id"))
	}
	ds := r.PathValue("datasetId")
	fields, err := d.Central.ListFields(ctx, tok, pid, ds)
	if err != nil {
		return nil, err
	}
	path, found := submission.DetectGeoPath(fields)
	if !found {
		return []geopoint.GeoPoint{}, nil
	}
	recs, err := d.Central.ListSubmissions(ctx, tok, pid, ds, central.Query{
		Select: []string{"__id", "__system/reviewState", strings.TrimPrefix(path, "/")},
		Filter: central.FilterNotRejected,
		Top:    d.Limits.GeoPointsTop,
	})
	if err != nil {
		return nil, err
	}
	return geopoint.Extract(recs, path), nil
}

func (d Deps) reviewStates(ctx context.Context, r *http.Request, tok string) (any, error) {
	pid, ok := projectID(r)
	if !ok {
		return nil, badRequest(errors.New("invalid project id"))
	}
	recs, err := d.Central.ListSubmissionStates(ctx, tok, pid, r.PathValue("datasetId"), d.Limits.CountsTop)
	if err != nil {
		return nil, err
	}
	out := make([]reviewItem, 0, len(recs))
	for _, rec := range recs {
		it := reviewItem{ID: rec.ID()}
		if st, ok := rec.ReviewState(); ok {
			it.ReviewState = &st
		}
		out = append(out, it)
	}
	return out, nil
}

func (d Deps) counts(ctx context.Context, r *http.Request, tok string) (any, error) {
	pid, ok := projectID(r)
	if !ok {
		return nil, badRequest(errors.New("invalid project id"))
	}
	form := r.PathValue("formId")
	recs, err := d.Central.ListSubmissionStates(ctx, tok, pid, form, d.Limits.CountsTop)
	if err != nil {
		return nil, err
	}
	return submission.Aggregate(recs, form), nil
}
