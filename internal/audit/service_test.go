package audit

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	rows []TimelineRow

	gotFilters TimelineFilters
	gotOffset  int
	gotLimit   int
}

func (s *stubRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.gotFilters = filters
	s.gotOffset = offset
	s.gotLimit = limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubRepo) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	s.gotFilters = filters
	return s.rows, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, 0, n)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rows = append(rows, TimelineRow{
			At:       base.Add(-time.Duration(i) * time.Minute),
			ActorID:  7,
			Action:   "apply",
			Entity:   "stock_adjustment",
			EntityID: fmt.Sprintf("%d", i+1),
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: makeRows(25)}
	svc := NewService(repo)
	ctx := context.Background()

	result, err := svc.Timeline(ctx, TimelineFilters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	require.Equal(t, 21, repo.gotLimit)

	result, err = svc.Timeline(ctx, TimelineFilters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Equal(t, 20, repo.gotOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{rows: makeRows(60)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, result.Paging.PageSize)
	require.Len(t, result.Rows, maxPageSize)

	result, err = svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Equal(t, defaultPageSize, result.Paging.PageSize)
	require.Equal(t, 1, result.Paging.Page)
}

func TestExportCSV(t *testing.T) {
	rows := []TimelineRow{
		{
			At:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			ActorID:  7,
			Action:   "complete",
			Entity:   "stock_transfer",
			EntityID: "42",
			Meta:     map[string]any{"status": "completed"},
		},
	}
	out, err := CSVExporter{}.WriteCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "at,actor_id,action,entity,entity_id,meta", lines[0])
	require.Contains(t, lines[1], "2026-03-01T12:00:00Z")
	require.Contains(t, lines[1], "stock_transfer")
	require.Contains(t, lines[1], `""status"":""completed""`)
}
