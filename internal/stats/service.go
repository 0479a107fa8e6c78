package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/cleannote/internal/dateutil"
	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/repository"
)

// thisWeekLimit は今週のエントリ取得上限。
const thisWeekLimit = 200

// Service はダッシュボード・統計ページ向けの集計を提供する。
type Service struct {
	entries repository.EntryRepository
	now     func() time.Time
}

// NewService はServiceを生成する。
func NewService(entries repository.EntryRepository) *Service {
	return &Service{
		entries: entries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dashboard は直近90日ウィンドウの集計結果を返す。
// monthsは月別系列の長さで、ダッシュボードは3、統計ページは6を使う。
func (s *Service) Dashboard(ctx context.Context, userID string, months int) (*DashboardStats, error) {
	asOf := s.now()
	today := dateutil.TruncateToDay(asOf)
	since := today.AddDate(0, 0, -windowDays)

	entries, err := s.entries.ListSinceEitherDate(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for stats window: %w", err)
	}

	days := buildDayAggregates(entries)

	activityDays := make(map[string]struct{})
	for _, e := range entries {
		activityDays[dateutil.ToISODate(e.CreatedAt)] = struct{}{}
	}
	current, streakDays := streaks(activityDays, dateutil.ToISODate(today))

	weekStart := dateutil.StartOfISOWeek(asOf)
	weekEnd := dateutil.EndOfDay(dateutil.EndOfISOWeek(asOf))
	thisWeek, err := s.entries.ListBetweenEitherDate(ctx, userID, weekStart, weekEnd, thisWeekLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load this week's entries: %w", err)
	}

	var tidied, raw []*model.Entry
	for _, e := range thisWeek {
		if e.IsFullyTidied() {
			tidied = append(tidied, e)
		} else {
			raw = append(raw, e)
		}
	}

	return &DashboardStats{
		CurrentStreak:  current,
		CalendarDays:   calendarDays(days, streakDays),
		MonthlySeries:  monthlySeries(days, asOf, months),
		Last7Days:      last7Days(days, asOf),
		ThisWeekTidied: tidied,
		ThisWeekRaw:    raw,
		Week:           SummarizeEntries(thisWeek),
	}, nil
}
