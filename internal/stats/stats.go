// Package stats はエントリの集計を提供する。
// カレンダー用の日別集計、月別件数、ストリーク、直近7日サマリー、
// 今週のエントリ分類を計算する。すべての日付演算はUTCで行う。
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/hitoshi/cleannote/internal/dateutil"
	"github.com/hitoshi/cleannote/internal/model"
)

// windowDays は集計ウィンドウの長さ（日数）。
const windowDays = 90

// DayStat はカレンダー1日分の集計。
type DayStat struct {
	Date       string   `json:"date"` // YYYY-MM-DD
	EntryCount int      `json:"entryCount"`
	TopMood    *string  `json:"topMood"`
	AvgScore   *float64 `json:"avgScore"`
	InStreak   bool     `json:"inStreak"`
}

// MonthCount は月別エントリ件数。
type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// DaySummary は直近7日サマリーの1日分。エントリのない日はnullになる。
type DaySummary struct {
	Date     string   `json:"date"`
	Mood     *string  `json:"mood"`
	AvgScore *float64 `json:"avgScore"`
}

// WeekSummary は1週間分の気分サマリー。
type WeekSummary struct {
	TotalEntries     int            `json:"totalEntries"`
	MostFrequentMood *string        `json:"mostFrequentMood"`
	AvgScore         *float64       `json:"avgScore"`
	Distribution     map[string]int `json:"distribution"`
}

// DashboardStats はダッシュボード・統計ページ用の集計結果一式。
type DashboardStats struct {
	CurrentStreak  int            `json:"currentStreak"`
	CalendarDays   []DayStat      `json:"calendarDays"`
	MonthlySeries  []MonthCount   `json:"monthlySeries"`
	Last7Days      []DaySummary   `json:"last7Days"`
	ThisWeekTidied []*model.Entry `json:"-"`
	ThisWeekRaw    []*model.Entry `json:"-"`
	Week           WeekSummary    `json:"week"`
}

// dayAggregate は内容日1日分の中間集計。
// moodOrderは出現順を保持し、最頻気分の同数タイブレークに使う。
type dayAggregate struct {
	count      int
	moodCounts map[string]int
	moodOrder  []string
	scoreSum   float64
	scoreCount int

	// 内容日と活動日が一致するエントリが1件でもあるか。
	// バックフィルした日にストリーク装飾を出さないための判定
	sameDayActivity bool
}

func newDayAggregate() *dayAggregate {
	return &dayAggregate{moodCounts: make(map[string]int)}
}

func (a *dayAggregate) add(e *model.Entry) {
	a.count++
	if e.MoodLabel != nil && *e.MoodLabel != "" {
		if _, seen := a.moodCounts[*e.MoodLabel]; !seen {
			a.moodOrder = append(a.moodOrder, *e.MoodLabel)
		}
		a.moodCounts[*e.MoodLabel]++
	}
	if e.MoodScore != nil {
		a.scoreSum += *e.MoodScore
		a.scoreCount++
	}
	if dateutil.ToISODate(e.ContextDay()) == dateutil.ToISODate(e.CreatedAt) {
		a.sameDayActivity = true
	}
}

// topMood は最頻気分を返す。同数の場合は先に出現した気分が勝つ。
func (a *dayAggregate) topMood() *string {
	var best *string
	bestCount := 0
	for _, m := range a.moodOrder {
		if a.moodCounts[m] > bestCount {
			mood := m
			best = &mood
			bestCount = a.moodCounts[m]
		}
	}
	return best
}

func (a *dayAggregate) avgScore() *float64 {
	if a.scoreCount == 0 {
		return nil
	}
	v := round1(a.scoreSum / float64(a.scoreCount))
	return &v
}

// buildDayAggregates は内容日キーの集計マップを作る。
func buildDayAggregates(entries []*model.Entry) map[string]*dayAggregate {
	days := make(map[string]*dayAggregate)
	for _, e := range entries {
		key := dateutil.ToISODate(e.ContextDay())
		agg, ok := days[key]
		if !ok {
			agg = newDayAggregate()
			days[key] = agg
		}
		agg.add(e)
	}
	return days
}

// streaks は活動日集合からストリークを計算する。
// 活動日を昇順に並べ、1日差で連続する極大ランに分割する。
// 現在ストリークはtoday（UTCの日付）で終わるランの長さ。
// 全ランの全メンバーが履歴上のストリーク日になる。
func streaks(activityDays map[string]struct{}, today string) (current int, streakDays map[string]struct{}) {
	streakDays = make(map[string]struct{})
	if len(activityDays) == 0 {
		return 0, streakDays
	}

	sorted := make([]string, 0, len(activityDays))
	for d := range activityDays {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	runLen := 0
	var prev time.Time
	for i, ds := range sorted {
		d, err := dateutil.ParseISODate(ds)
		if err != nil {
			continue
		}
		if i > 0 && d.Sub(prev) == 24*time.Hour {
			runLen++
		} else {
			runLen = 1
		}
		prev = d
		streakDays[ds] = struct{}{}
		if ds == today {
			current = runLen
		}
	}
	return current, streakDays
}

// monthlySeries は今月を含む直近monthsか月分の月別件数を古い順に返す。
func monthlySeries(days map[string]*dayAggregate, asOf time.Time, months int) []MonthCount {
	counts := make(map[string]int)
	for ds, agg := range days {
		counts[ds[:7]] += agg.count // YYYY-MM
	}

	series := make([]MonthCount, 0, months)
	base := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := months - 1; i >= 0; i-- {
		m := base.AddDate(0, -i, 0)
		key := m.Format("2006-01")
		series = append(series, MonthCount{Month: key, Count: counts[key]})
	}
	return series
}

// last7Days は今日を含む直近7日のサマリーを古い順に返す。
func last7Days(days map[string]*dayAggregate, asOf time.Time) []DaySummary {
	today := dateutil.TruncateToDay(asOf)
	out := make([]DaySummary, 0, 7)
	for i := 6; i >= 0; i-- {
		d := today.AddDate(0, 0, -i)
		key := dateutil.ToISODate(d)
		s := DaySummary{Date: key}
		if agg, ok := days[key]; ok {
			s.Mood = agg.topMood()
			s.AvgScore = agg.avgScore()
		}
		out = append(out, s)
	}
	return out
}

// calendarDays は日別集計をカレンダー表示用に昇順で並べる。
// ストリーク装飾は履歴ストリーク日かつ内容日=活動日の場合のみ付く。
func calendarDays(days map[string]*dayAggregate, streakDays map[string]struct{}) []DayStat {
	out := make([]DayStat, 0, len(days))
	for ds, agg := range days {
		_, inStreak := streakDays[ds]
		out = append(out, DayStat{
			Date:       ds,
			EntryCount: agg.count,
			TopMood:    agg.topMood(),
			AvgScore:   agg.avgScore(),
			InStreak:   inStreak && agg.sameDayActivity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// SummarizeEntries はエントリ群の気分サマリーを計算する。
// 同数の最頻気分は先に出現したものが勝つ。週次インサイトの
// 分布バックフィルにも使われる。
func SummarizeEntries(entries []*model.Entry) WeekSummary {
	sum := WeekSummary{
		TotalEntries: len(entries),
		Distribution: make(map[string]int),
	}

	var order []string
	scoreSum := 0.0
	scoreCount := 0
	for _, e := range entries {
		if e.MoodLabel != nil && *e.MoodLabel != "" {
			if _, seen := sum.Distribution[*e.MoodLabel]; !seen {
				order = append(order, *e.MoodLabel)
			}
			sum.Distribution[*e.MoodLabel]++
		}
		if e.MoodScore != nil {
			scoreSum += *e.MoodScore
			scoreCount++
		}
	}

	best := 0
	for _, m := range order {
		if sum.Distribution[m] > best {
			mood := m
			sum.MostFrequentMood = &mood
			best = sum.Distribution[m]
		}
	}
	if scoreCount > 0 {
		v := round1(scoreSum / float64(scoreCount))
		sum.AvgScore = &v
	}
	return sum
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
