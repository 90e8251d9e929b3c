package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-map/internal/logger"
)

func init() { logger.Discard() }

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return AttachDB(db), mock
}

func TestIncr(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO _relay_stats_total`).WithArgs("projects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO _relay_stats_daily`).WillReturnResult(sqlmock.NewResult(0, 1))

	s.Incr(context.Background(), "projects")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrStopsOnError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO _relay_stats_total`).WithArgs("projects").WillReturnError(errors.New("conn reset"))

	s.Incr(context.Background(), "projects")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTotals(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT route, requests FROM _relay_stats_total`).
		WillReturnRows(sqlmock.NewRows([]string{"route", "requests"}).AddRow("projects", 4).AddRow("counts", 6))
	mock.ExpectQuery(`SELECT requests FROM _relay_stats_daily`).
		WillReturnRows(sqlmock.NewRows([]string{"requests"}).AddRow(3))

	tot, err := s.GetTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Totals{Total: 10, Today: 3, ByRoute: map[string]int64{"projects": 4, "counts": 6}}, tot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTotalsNoTrafficToday(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT route, requests FROM _relay_stats_total`).
		WillReturnRows(sqlmock.NewRows([]string{"route", "requests"}))
	mock.ExpectQuery(`SELECT requests FROM _relay_stats_daily`).
		WillReturnRows(sqlmock.NewRows([]string{"requests"}))

	tot, err := s.GetTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), tot.Today)
	assert.Empty(t, tot.ByRoute)
}

func TestDisabledStore(t *testing.T) {
	var s *Store
	assert.Nil(t, AttachDB(nil))
	s.Incr(context.Background(), "projects")
	tot, err := s.GetTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), tot.Total)
	assert.NotNil(t, tot.ByRoute)
	assert.NoError(t, s.Close())
}
