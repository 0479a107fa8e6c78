package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/cleannote/internal/dateutil"
	"github.com/hitoshi/cleannote/internal/genai"
	"github.com/hitoshi/cleannote/internal/metrics"
	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/repository"
	"github.com/hitoshi/cleannote/internal/stats"
	"github.com/hitoshi/cleannote/internal/taxonomy"
)

// Service は週次インサイトの生成・取得・保存を提供する。
type Service struct {
	entries  repository.EntryRepository
	insights repository.InsightRepository
	gen      genai.TextGenerator
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(entries repository.EntryRepository, insights repository.InsightRepository, gen genai.TextGenerator, mc metrics.MetricsCollector) *Service {
	return &Service{
		entries:  entries,
		insights: insights,
		gen:      gen,
		metrics:  mc,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// week は対象週の両端。週内の任意の日付から正規化される。
type week struct {
	start time.Time
	end   time.Time
}

func weekOf(t time.Time) week {
	start := dateutil.StartOfISOWeek(t)
	return week{start: start, end: dateutil.EndOfISOWeek(t)}
}

// Generate は対象週のエントリからインサイトを生成して保存する。
// dayInWeekは週内の任意の日付でよい。既存のインサイトは上書きされる。
// 生成AIの失敗時は何も永続化しない。
func (s *Service) Generate(ctx context.Context, userID string, dayInWeek time.Time) (*model.WeeklyInsight, error) {
	w := weekOf(dayInWeek)

	entries, err := s.entries.ListByCreatedAtRange(ctx, userID, w.start, dateutil.EndOfDay(w.end))
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for insight week: %w", err)
	}
	if len(entries) == 0 {
		return nil, model.NewInvalidRequestError("対象週にエントリがありません")
	}

	weekStart := dateutil.ToISODate(w.start)
	weekEnd := dateutil.ToISODate(w.end)
	prompt := buildInsightPrompt(buildBundle(entries), weekStart, weekEnd)

	start := s.now()
	raw, err := s.gen.GenerateText(ctx, prompt)
	s.metrics.RecordAILatency(metrics.AIKindInsight, time.Since(start))
	if err != nil {
		s.metrics.RecordAIFailure(metrics.AIKindInsight)
		slog.Error("インサイト生成呼び出しに失敗", "error", err, "week_start", weekStart)
		return nil, model.NewAIUnavailableError()
	}

	parsed, strategyName, ok := parseContent(raw)
	if !ok {
		s.metrics.RecordAIFailure(metrics.AIKindInsight)
		slog.Error("インサイト応答から内容を抽出できない", "week_start", weekStart, "response_len", len(raw))
		return nil, model.NewAIUnavailableError()
	}
	s.metrics.RecordAISuccess(metrics.AIKindInsight)
	s.metrics.RecordParseStrategy(strategyName)

	content := postProcess(parsed, entries)

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insight content: %w", err)
	}

	now := s.now()
	insight := &model.WeeklyInsight{
		ID:           uuid.NewString(),
		UserID:       userID,
		WeekStart:    weekStart,
		WeekEnd:      weekEnd,
		Content:      string(contentJSON),
		ShortSummary: content.ShortSummary,
		GeneratedAt:  now,
		CreatedAt:    now,
	}

	stored, err := s.insights.Upsert(ctx, insight)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert insight: %w", err)
	}
	return stored, nil
}

// Get は保存済みインサイトと、その週の最新の気分サマリーを返す。
// インサイトが未生成の場合は未検出エラーを返す。
func (s *Service) Get(ctx context.Context, userID string, dayInWeek time.Time) (*model.WeeklyInsight, stats.WeekSummary, error) {
	w := weekOf(dayInWeek)
	weekStart := dateutil.ToISODate(w.start)

	stored, err := s.insights.FindByUserAndWeekStart(ctx, userID, weekStart)
	if err != nil {
		return nil, stats.WeekSummary{}, fmt.Errorf("failed to find insight: %w", err)
	}
	if stored == nil {
		return nil, stats.WeekSummary{}, model.NewInsightNotFoundError(weekStart)
	}

	entries, err := s.entries.ListByCreatedAtRange(ctx, userID, w.start, dateutil.EndOfDay(w.end))
	if err != nil {
		return nil, stats.WeekSummary{}, fmt.Errorf("failed to load entries for insight week: %w", err)
	}
	return stored, stats.SummarizeEntries(entries), nil
}

// List はユーザーの全インサイトを週の新しい順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.WeeklyInsight, error) {
	insights, err := s.insights.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	return insights, nil
}

// Save はクライアントが編集したインサイトをサニタイズして保存する。
func (s *Service) Save(ctx context.Context, userID string, dayInWeek time.Time, content model.InsightContent) (*model.WeeklyInsight, error) {
	w := weekOf(dayInWeek)

	sanitized := sanitizeContent(content)
	contentJSON, err := json.Marshal(sanitized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insight content: %w", err)
	}

	now := s.now()
	insight := &model.WeeklyInsight{
		ID:           uuid.NewString(),
		UserID:       userID,
		WeekStart:    dateutil.ToISODate(w.start),
		WeekEnd:      dateutil.ToISODate(w.end),
		Content:      string(contentJSON),
		ShortSummary: sanitized.ShortSummary,
		GeneratedAt:  now,
		CreatedAt:    now,
	}

	stored, err := s.insights.Upsert(ctx, insight)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert insight: %w", err)
	}
	return stored, nil
}

// postProcess は抽出結果をサニタイズし、欠けた集計値を実データで補完する。
func postProcess(raw *rawContent, entries []*model.Entry) model.InsightContent {
	weekStats := stats.SummarizeEntries(entries)

	content := model.InsightContent{
		Recommendations: sanitizeList(raw.Recommendations, 4),
		Highlights:      sanitizeList(raw.Highlights, 6),
	}

	if summary := sanitizeText(raw.Summary); summary != "" {
		content.Summary = &summary
	}

	// 気分分布はモデル提供値を浄化し、空なら実データから補完する
	dist := cleanDistribution(raw.MoodSummary.Distribution)
	if len(dist) == 0 {
		dist = cleanDistribution(weekStats.Distribution)
	}
	content.MoodSummary.Distribution = dist

	mostMood := taxonomy.NormalizeMood(&raw.MoodSummary.MostMood)
	if mostMood == nil {
		mostMood = weekStats.MostFrequentMood
	}
	content.MoodSummary.MostMood = mostMood

	if raw.MoodSummary.AvgScore != nil {
		content.MoodSummary.AvgScore = raw.MoodSummary.AvgScore
	} else {
		content.MoodSummary.AvgScore = weekStats.AvgScore
	}

	content.ShortSummary = synthesizeShortSummary(sanitizeText(raw.ShortSummary), content.Summary, mostMood)
	return content
}

// sanitizeContent はクライアント提供のインサイトを保存前に浄化する。
func sanitizeContent(content model.InsightContent) model.InsightContent {
	out := model.InsightContent{
		Recommendations: sanitizeList(content.Recommendations, 4),
		Highlights:      sanitizeList(content.Highlights, 6),
	}
	if content.Summary != nil {
		if v := sanitizeText(*content.Summary); v != "" {
			out.Summary = &v
		}
	}
	if content.ShortSummary != nil {
		if v := sanitizeText(*content.ShortSummary); v != "" {
			out.ShortSummary = &v
		}
	}
	out.MoodSummary.AvgScore = content.MoodSummary.AvgScore
	out.MoodSummary.MostMood = content.MoodSummary.MostMood
	out.MoodSummary.Distribution = cleanDistribution(content.MoodSummary.Distribution)
	return out
}

// synthesizeShortSummary はshortSummaryを決定する。
// モデル提供値 → summaryの最初の1文 → "I felt X this week." の順で採用する。
func synthesizeShortSummary(provided string, summary *string, mostMood *string) *string {
	if provided != "" {
		return &provided
	}
	if summary != nil {
		if s := firstSentence(*summary); s != "" {
			return &s
		}
	}
	if mostMood != nil {
		s := fmt.Sprintf("I felt %s this week.", *mostMood)
		return &s
	}
	return nil
}

// firstSentence は最初の文区切りまでを返す。区切りがなければ全体を返す。
func firstSentence(s string) string {
	for i, r := range s {
		switch r {
		case '.', '!', '?', '。':
			return strings.TrimSpace(s[:i+utf8.RuneLen(r)])
		}
	}
	return strings.TrimSpace(s)
}
