// 包 store：数据存储与获取编排；持有项目缓存、地理点路径缓存与只读快照，合并重复请求
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"survey-map/internal/central"
	"survey-map/internal/geopoint"
	"survey-map/internal/logger"
	"survey-map/internal/metrics"
	"survey-map/internal/submission"
)

// Source：调查数据服务的只读操作集合，由 *central.Client 实现
type Source interface {
	ListProjects(ctx context.Context, token string, top int) ([]central.Project, error)
	ListFields(ctx context.Context, token string, projectID int, formID string) ([]submission.FieldSchemaEntry, error)
	ListSubmissions(ctx context.Context, token string, projectID int, formID string, q central.Query) ([]submission.Record, error)
	ListSubmissionStates(ctx context.Context, token string, projectID int, formID string, top int) ([]submission.Record, error)
}

// TokenSource：凭据持有方；远端返回 401 时调用 Logout 使凭据失效
type TokenSource interface {
	Token() string
	Logout()
}

type options struct {
	projectsTop  int
	countsTop    int
	geoPointsTop int
}

type Option func(*options)

// WithProjectsTop：项目列表 $top，<=0 表示不限制
func WithProjectsTop(n int) Option { return func(o *options) { o.projectsTop = n } }

// WithCountsTop：统计用提交列表 $top
func WithCountsTop(n int) Option { return func(o *options) { o.countsTop = n } }

// WithGeoPointsTop：地理点提交列表 $top
func WithGeoPointsTop(n int) Option { return func(o *options) { o.geoPointsTop = n } }

// ticket：一次派发在各分区上取得的序号；0 表示未参与该分区
type ticket struct {
	seq [numSlots]uint64
}

type flightEntry struct {
	id    uint64
	slots []slot
}

type geoPathEntry struct {
	path string
	ok   bool
}

// 文档注释：数据存储 / 获取编排器
// 背景：显式构造的状态容器，应用启动时创建、登出时 Invalidate；测试可各自实例化。
// 约束：
// - 快照仅经由本结构的更新点写入（dispatch / commit / Invalidate / ClearSubmissions）；
// - 同一 (操作, 资源) 的并发调用共享一次在途结果（singleflight）；
// - 每次派发对目标分区取单调递增序号，完成时若已有更晚的派发则丢弃本次结果，避免慢响应覆盖新数据；
// - 任何失败都把对应分区重置为空值并清除加载标记，不留下阻止重试的终态。
type Store struct {
	src    Source
	tokens TokenSource
	opts   options

	snap   atomic.Pointer[Snapshot]
	flight singleflight.Group

	mu       sync.Mutex
	seq      [numSlots]uint64
	gen      uint64
	projects []central.Project
	cached   bool
	geoPaths map[string]geoPathEntry
	inflight map[string]flightEntry
	flightID uint64

	lmu       sync.Mutex
	listeners map[int]func(*Snapshot)
	nextLID   int
}

func New(src Source, tokens TokenSource, opts ...Option) *Store {
	o := options{projectsTop: 10, countsTop: 1000}
	for _, fn := range opts {
		fn(&o)
	}
	s := &Store{
		src:       src,
		tokens:    tokens,
		opts:      o,
		geoPaths:  make(map[string]geoPathEntry),
		inflight:  make(map[string]flightEntry),
		listeners: make(map[int]func(*Snapshot)),
	}
	s.snap.Store(emptySnapshot())
	return s
}

// Snapshot：当前只读快照
func (s *Store) Snapshot() *Snapshot { return s.snap.Load() }

// Watch：注册快照发布回调，返回取消函数；回调在发布方协程中同步执行
func (s *Store) Watch(fn func(*Snapshot)) func() {
	s.lmu.Lock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = fn
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.lmu.Lock()
	fns := make([]func(*Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// publish：在写锁内基于当前快照生成新快照；调用方持有 s.mu
func (s *Store) publish(fn func(next *Snapshot)) *Snapshot {
	next := *s.snap.Load()
	fn(&next)
	next.Version++
	s.snap.Store(&next)
	return &next
}

// dispatch：为目标分区取新序号并置加载标记
func (s *Store) dispatch(slots ...slot) ticket {
	var t ticket
	s.mu.Lock()
	snap := s.publish(func(next *Snapshot) {
		for _, sl := range slots {
			s.seq[sl]++
			t.seq[sl] = s.seq[sl]
			next.Loading.set(sl, true)
		}
	})
	s.mu.Unlock()
	s.notify(snap)
	return t
}

// commit：仅对序号仍为最新的分区写入结果并清除加载标记；全部过期时返回 false 且不发布
func (s *Store) commit(t ticket, write func(next *Snapshot, sl slot)) bool {
	s.mu.Lock()
	var live []slot
	for sl := slot(0); sl < numSlots; sl++ {
		if t.seq[sl] != 0 && t.seq[sl] == s.seq[sl] {
			live = append(live, sl)
		}
	}
	if len(live) == 0 {
		s.mu.Unlock()
		return false
	}
	snap := s.publish(func(next *Snapshot) {
		for _, sl := range live {
			write(next, sl)
			next.Loading.set(sl, false)
		}
	})
	s.mu.Unlock()
	s.notify(snap)
	return true
}

// run：按 key 合并在途调用；共享的在途请求不随单个调用方的取消而中断
func (s *Store) run(ctx context.Context, op, key string, slots []slot, fn func(ctx context.Context) error) error {
	_, err, shared := s.flight.Do(key, func() (any, error) {
		id := s.track(key, slots)
		defer s.untrack(key, id)
		return nil, fn(context.WithoutCancel(ctx))
	})
	if shared {
		metrics.StoreFetchTotal.WithLabelValues(op, "shared").Inc()
	}
	return err
}

func (s *Store) track(key string, slots []slot) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flightID++
	s.inflight[key] = flightEntry{id: s.flightID, slots: slots}
	return s.flightID
}

func (s *Store) untrack(key string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.inflight[key]; ok && e.id == id {
		delete(s.inflight, key)
	}
}

// forget：让涉及给定分区的在途 key 不再被后续调用共享；调用方持有 s.mu
func (s *Store) forget(match func(slot) bool) {
	for key, e := range s.inflight {
		for _, sl := range e.slots {
			if match(sl) {
				s.flight.Forget(key)
				delete(s.inflight, key)
				break
			}
		}
	}
}

// fail：分区回到空值；401 额外使凭据失效
func (s *Store) fail(op string, t ticket, err error) error {
	result := "fail"
	if errors.Is(err, central.ErrNoToken) {
		result = "no_token"
		logger.L().Warn("store_no_token", "op", op)
	} else {
		logger.L().Error("store_fetch_error", "op", op, "err", err)
	}
	metrics.StoreFetchTotal.WithLabelValues(op, result).Inc()
	s.commit(t, func(next *Snapshot, sl slot) { resetSlot(next, sl) })
	if errors.Is(err, central.ErrUnauthorized) && s.tokens != nil {
		logger.L().Info("store_credential_invalidated", "op", op)
		s.tokens.Logout()
	}
	return err
}

func (s *Store) token() string {
	if s.tokens == nil {
		return ""
	}
	return s.tokens.Token()
}

func resourceKey(projectID int, datasetID string) string {
	return fmt.Sprintf("%d/%s", projectID, datasetID)
}

// 文档注释：获取项目列表
// 约束：首次成功后缓存至进程生命周期内，后续调用直接由缓存发布，不发起网络请求，直到 Invalidate。
func (s *Store) FetchProjects(ctx context.Context) error {
	if s.fromCache() {
		metrics.StoreFetchTotal.WithLabelValues("projects", "cached").Inc()
		return nil
	}
	return s.run(ctx, "projects", "projects", []slot{slotProjects}, func(ctx context.Context) error {
		if s.fromCache() {
			return nil
		}
		t := s.dispatch(slotProjects)
		tok := s.token()
		if tok == "" {
			return s.fail("projects", t, central.ErrNoToken)
		}
		ps, err := s.src.ListProjects(ctx, tok, s.opts.projectsTop)
		if err != nil {
			return s.fail("projects", t, err)
		}
		applied := s.commit(t, func(next *Snapshot, sl slot) {
			next.Projects = ps
			s.projects = ps
			s.cached = true
		})
		s.outcome("projects", applied)
		logger.L().Debug("store_projects_fetched", "count", len(ps), "applied", applied)
		return nil
	})
}

// fromCache：命中缓存时直接发布
func (s *Store) fromCache() bool {
	s.mu.Lock()
	if !s.cached {
		s.mu.Unlock()
		return false
	}
	ps := s.projects
	snap := s.publish(func(next *Snapshot) {
		next.Projects = ps
		next.Loading.Projects = false
	})
	s.mu.Unlock()
	s.notify(snap)
	return true
}

func (s *Store) outcome(op string, applied bool) {
	if applied {
		metrics.StoreFetchTotal.WithLabelValues(op, "ok").Inc()
		return
	}
	metrics.StoreFetchTotal.WithLabelValues(op, "stale").Inc()
	logger.L().Debug("store_stale_discarded", "op", op)
}

// 文档注释：数据集地理点字段路径（每会话检测一次）
// 约束：由字段结构中第一个 geopoint 字段决定，缓存后对该数据集的后续请求统一复用，直到 Invalidate。
func (s *Store) geoPath(ctx context.Context, tok string, projectID int, datasetID string) (string, error) {
	key := resourceKey(projectID, datasetID)
	s.mu.Lock()
	e, ok := s.geoPaths[key]
	gen := s.gen
	s.mu.Unlock()
	if ok {
		return e.path, nil
	}
	fields, err := s.src.ListFields(ctx, tok, projectID, datasetID)
	if err != nil {
		return "", err
	}
	p, found := submission.DetectGeoPath(fields)
	logger.L().Debug("store_geopath_detected", "dataset", key, "path", p, "available", found)
	s.mu.Lock()
	if s.gen == gen {
		s.geoPaths[key] = geoPathEntry{path: p, ok: found}
	}
	s.mu.Unlock()
	return p, nil
}

func setGeo(next *Snapshot, pts []geopoint.GeoPoint, path string) {
	next.GeoPoints = pts
	next.GeoPointsAvailable = path != ""
	next.GeoPointPath = path
}

// 文档注释：获取数据集的地理点（地图视图）
// 背景：仅选取 __id、审核状态与地理字段三列，排除已驳回提交。
func (s *Store) FetchGeoPoints(ctx context.Context, projectID int, datasetID string) error {
	key := "geopoints:" + resourceKey(projectID, datasetID)
	return s.run(ctx, "geopoints", key, []slot{slotGeo}, func(ctx context.Context) error {
		t := s.dispatch(slotGeo)
		tok := s.token()
		if tok == "" {
			return s.fail("geopoints", t, central.ErrNoToken)
		}
		path, err := s.geoPath(ctx, tok, projectID, datasetID)
		if err != nil {
			return s.fail("geopoints", t, err)
		}
		pts := []geopoint.GeoPoint{}
		if path != "" {
			recs, err := s.src.ListSubmissions(ctx, tok, projectID, datasetID, central.Query{
				Select: []string{"__id", "__system/reviewState", strings.TrimPrefix(path, "/")},
				Filter: central.FilterNotRejected,
				Top:    s.opts.geoPointsTop,
			})
			if err != nil {
				return s.fail("geopoints", t, err)
			}
			pts = geopoint.Extract(recs, path)
		}
		applied := s.commit(t, func(next *Snapshot, sl slot) { setGeo(next, pts, path) })
		s.outcome("geopoints", applied)
		logger.L().Debug("store_geopoints_fetched", "dataset", resourceKey(projectID, datasetID), "points", len(pts), "applied", applied)
		return nil
	})
}

// 文档注释：获取数据集全部未驳回提交（数据表视图）
// 约束：同时发布提交列表、带完整记录的实体视图与地理点三部分，三者来自同一批响应。
func (s *Store) FetchAllSubmissions(ctx context.Context, projectID int, datasetID string) error {
	key := "submissions:" + resourceKey(projectID, datasetID)
	return s.run(ctx, "submissions", key, []slot{slotSubmissions, slotGeo}, func(ctx context.Context) error {
		t := s.dispatch(slotSubmissions, slotGeo)
		tok := s.token()
		if tok == "" {
			return s.fail("submissions", t, central.ErrNoToken)
		}
		path, err := s.geoPath(ctx, tok, projectID, datasetID)
		if err != nil {
			return s.fail("submissions", t, err)
		}
		recs, err := s.src.ListSubmissions(ctx, tok, projectID, datasetID, central.Query{Filter: central.FilterNotRejected})
		if err != nil {
			return s.fail("submissions", t, err)
		}
		ents := geopoint.ExtractEntities(recs, path)
		pts := make([]geopoint.GeoPoint, len(ents))
		for i, e := range ents {
			pts[i] = e.GeoPoint
		}
		applied := s.commit(t, func(next *Snapshot, sl slot) {
			switch sl {
			case slotSubmissions:
				next.Submissions = recs
				next.Entities = ents
			case slotGeo:
				setGeo(next, pts, path)
			}
		})
		s.outcome("submissions", applied)
		logger.L().Debug("store_submissions_fetched", "dataset", resourceKey(projectID, datasetID), "submissions", len(recs), "entities", len(ents), "applied", applied)
		return nil
	})
}

// 文档注释：获取表单审核状态统计
// 约束：每次由本次批次重新计算并整体替换，不与其它表单的统计合并。
func (s *Store) FetchSubmissionCounts(ctx context.Context, projectID int, formID string) error {
	key := "counts:" + resourceKey(projectID, formID)
	return s.run(ctx, "counts", key, []slot{slotCounts}, func(ctx context.Context) error {
		t := s.dispatch(slotCounts)
		tok := s.token()
		if tok == "" {
			return s.fail("counts", t, central.ErrNoToken)
		}
		recs, err := s.src.ListSubmissionStates(ctx, tok, projectID, formID, s.opts.countsTop)
		if err != nil {
			return s.fail("counts", t, err)
		}
		c := submission.Aggregate(recs, formID)
		applied := s.commit(t, func(next *Snapshot, sl slot) { next.SubmissionCounts = c })
		s.outcome("counts", applied)
		logger.L().Debug("store_counts_fetched", "form", formID, "total", c.Total, "applied", applied)
		return nil
	})
}

// 文档注释：视图卸载时清空提交相关分区
// 约束：在途的提交/地理点请求结果将被丢弃，且不再被后续调用共享；下次进入视图会重新发起请求。
func (s *Store) ClearSubmissions() {
	s.mu.Lock()
	s.seq[slotSubmissions]++
	s.seq[slotGeo]++
	s.forget(func(sl slot) bool { return sl == slotSubmissions || sl == slotGeo })
	snap := s.publish(func(next *Snapshot) {
		resetSlot(next, slotSubmissions)
		resetSlot(next, slotGeo)
		next.Loading.Submissions = false
		next.Loading.GeoPoints = false
	})
	s.mu.Unlock()
	s.notify(snap)
}

// 文档注释：登出失效
// 约束：清空项目缓存与地理点路径缓存，所有分区回到空值；在途请求的结果一律丢弃。
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.gen++
	for sl := slot(0); sl < numSlots; sl++ {
		s.seq[sl]++
	}
	s.projects = nil
	s.cached = false
	s.geoPaths = make(map[string]geoPathEntry)
	s.forget(func(slot) bool { return true })
	snap := emptySnapshot()
	snap.Version = s.snap.Load().Version + 1
	s.snap.Store(snap)
	s.mu.Unlock()
	logger.L().Info("store_invalidated")
	s.notify(snap)
}
