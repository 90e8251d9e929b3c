// 包 stats：中继请求统计的 PostgreSQL 读写，按路由记录总计与当日计数
package stats

import (
	"context"
	"database/sql"
	"errors"

	"survey-map/internal/logger"
)

// Store：统计存储；nil 表示未启用，所有方法安全返回
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// Close：关闭数据库连接
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Totals：总请求数、当日请求数与按路由的总计
type Totals struct {
	Total   int64            `json:"total"`
	Today   int64            `json:"today"`
	ByRoute map[string]int64 `json:"byRoute"`
}

// Incr：成功响应后递增总计与当日计数；写入失败只记录日志
func (s *Store) Incr(ctx context.Context, route string) {
	if s == nil {
		return
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO _relay_stats_total(route, requests) VALUES($1, 1)
		ON CONFLICT (route) DO UPDATE SET requests=_relay_stats_total.requests+1`, route); err != nil {
		logger.L().Warn("stats_incr_error", "route", route, "err", err)
		return
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO _relay_stats_daily(day, requests) VALUES(current_date, 1)
		ON CONFLICT (day) DO UPDATE SET requests=_relay_stats_daily.requests+1`); err != nil {
		logger.L().Warn("stats_incr_daily_error", "err", err)
	}
}

// GetTotals：读取统计；未启用时返回零值
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	t := &Totals{ByRoute: map[string]int64{}}
	if s == nil {
		return t, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT route, requests FROM _relay_stats_total")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var route string
		var n int64
		if err := rows.Scan(&route, &n); err != nil {
			return nil, err
		}
		t.ByRoute[route] = n
		t.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, "SELECT requests FROM _relay_stats_daily WHERE day=current_date")
	if err := row.Scan(&t.Today); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return t, nil
}
