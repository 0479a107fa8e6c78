package tidy

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/cleannote/internal/dateutil"
	"github.com/hitoshi/cleannote/internal/entry"
	"github.com/hitoshi/cleannote/internal/genai"
	"github.com/hitoshi/cleannote/internal/metrics"
	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/repository"
	"github.com/hitoshi/cleannote/internal/taxonomy"
)

// Overrides は整形呼び出し時のユーザー指定値。
// 指定されたフィールドはAI候補より優先され、手動フラグが立つ。
type Overrides struct {
	Title    *string
	Mood     *string
	Category *string
	Score    *float64
	Date     *string // YYYY-MM-DD
}

// Service はエントリのAI整形を提供する。
type Service struct {
	entries repository.EntryRepository
	gen     genai.TextGenerator
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceを生成する。
func NewService(entries repository.EntryRepository, gen genai.TextGenerator, mc metrics.MetricsCollector) *Service {
	return &Service{
		entries: entries,
		gen:     gen,
		metrics: mc,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Preview は本文テキストを整形して結果だけを返す。保存はしない。
// 保存前のプレビュー表示用。
func (s *Service) Preview(ctx context.Context, content string, ov Overrides) (*Result, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, model.NewEmptyContentError()
	}

	res, err := s.generate(ctx, content, mergeFields(nil, ov))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// TidyEntry はエントリを整形して保存する。
// 手動フラグの立ったフィールドは保持され、AI候補で上書きされない。
func (s *Service) TidyEntry(ctx context.Context, userID, entryID string, ov Overrides) (*model.Entry, error) {
	e, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	if e == nil || e.UserID != userID {
		return nil, model.NewEntryNotFoundError(entryID)
	}

	// 呼び出し指定を保存済みの手動値に1フィールドずつ重ねて確定値を決める
	m := mergeFields(e, ov)

	res, err := s.generate(ctx, e.ContentRaw, m)
	if err != nil {
		return nil, err
	}

	applyResult(e, res, m, s.now())

	if err := s.entries.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to save tidied entry: %w", err)
	}
	return e, nil
}

// generate はAIを呼び出し、応答をパース・正規化してResultを返す。
// パース不能な応答は原文ベースのフォールバック結果に落とす。
func (s *Service) generate(ctx context.Context, content string, m mergedFields) (*Result, error) {
	prompt := buildPrompt(content, m.locked())

	start := s.now()
	raw, err := s.gen.GenerateText(ctx, prompt)
	s.metrics.RecordAILatency(metrics.AIKindTidy, time.Since(start))
	if err != nil {
		s.metrics.RecordAIFailure(metrics.AIKindTidy)
		slog.Error("AI整形呼び出しに失敗", "error", err)
		return nil, model.NewAIUnavailableError()
	}
	s.metrics.RecordAISuccess(metrics.AIKindTidy)

	res, ok := parseResult(raw)
	if !ok {
		slog.Warn("AI応答のパースに失敗、原文フォールバックを使用", "response_len", len(raw))
		res = &Result{}
	}
	normalizeResult(res, content)
	return res, nil
}

// normalizeResult はAI応答をドメインの語彙に正規化する。
// 本文は必ず非空にし、タイトルは本文先頭からフォールバック生成する。
func normalizeResult(res *Result, original string) {
	res.Content = strings.TrimSpace(res.Content)
	if res.Content == "" {
		res.Content = original
	}

	res.Title = strings.TrimSpace(res.Title)
	if res.Title == "" {
		res.Title = firstWords(original, 6)
	}

	if m := taxonomy.NormalizeMood(&res.Mood); m != nil {
		res.Mood = *m
	} else {
		res.Mood = ""
	}
	if c := taxonomy.NormalizeCategory(&res.Category); c != nil {
		res.Category = *c
	} else {
		res.Category = ""
	}

	if res.Score != nil {
		v := clampScore(*res.Score)
		res.Score = &v
	}

	res.Date = strings.TrimSpace(res.Date)
	if res.Date != "" {
		if _, err := dateutil.ParseISODate(res.Date); err != nil {
			res.Date = ""
		}
	}
}

// mergedFields は整形1回分の確定フィールド。呼び出し指定と保存済みの
// 手動値をentry.MergeFieldで重ねた結果で、値が入っているフィールドは
// AI候補で上書きされない。
type mergedFields struct {
	Title    entry.Field[string]
	Mood     entry.Field[string]
	Score    entry.Field[float64]
	Category entry.Field[string]
	Date     entry.Field[string]
}

// storedField は保存済みの値をマージ用のフィールドに変換する。
// 手動フラグが立っていない値は確定扱いにしない。
func storedField[T any](v *T, manual bool) entry.Field[T] {
	if !manual {
		return entry.Field[T]{}
	}
	return entry.Field[T]{Value: v, Manual: true}
}

// mergeFields は呼び出し指定を保存済みの手動値に重ねる。
// eがnilの場合（プレビュー）は呼び出し指定だけが確定値になる。
func mergeFields(e *model.Entry, ov Overrides) mergedFields {
	var stored mergedFields
	if e != nil {
		var date *string
		if e.DayDate != nil {
			d := dateutil.ToISODate(*e.DayDate)
			date = &d
		}
		stored = mergedFields{
			Title:    storedField(e.TitleRaw, e.TitleManual),
			Mood:     storedField(e.MoodLabel, e.MoodManual),
			Score:    storedField(e.MoodScore, e.MoodManual),
			Category: storedField(e.Category, e.CategoryManual),
			Date:     storedField(date, e.DateManual),
		}
	}
	return mergedFields{
		Title:    entry.MergeField(entry.Field[string]{Value: ov.Title}, stored.Title),
		Mood:     entry.MergeField(entry.Field[string]{Value: ov.Mood}, stored.Mood),
		Score:    entry.MergeField(entry.Field[float64]{Value: ov.Score}, stored.Score),
		Category: entry.MergeField(entry.Field[string]{Value: ov.Category}, stored.Category),
		Date:     entry.MergeField(entry.Field[string]{Value: ov.Date}, stored.Date),
	}
}

// locked は値の確定したフィールドをプロンプト用の一覧に変換する。
func (m mergedFields) locked() []lockedField {
	var locked []lockedField
	if m.Title.Value != nil {
		locked = append(locked, lockedField{"title", *m.Title.Value})
	}
	if m.Mood.Value != nil {
		locked = append(locked, lockedField{"mood", *m.Mood.Value})
	}
	if m.Category.Value != nil {
		locked = append(locked, lockedField{"category", *m.Category.Value})
	}
	if m.Score.Value != nil {
		locked = append(locked, lockedField{"score", strconv.FormatFloat(*m.Score.Value, 'f', -1, 64)})
	}
	if m.Date.Value != nil {
		locked = append(locked, lockedField{"date", *m.Date.Value})
	}
	return locked
}

// applyResult は整形結果をエントリにマージする。
// 各フィールドの優先順位は 確定値（呼び出し指定・保存済み手動値）> AI候補 >
// フォールバック。
func applyResult(e *model.Entry, res *Result, m mergedFields, now time.Time) {
	// タイトル
	if m.Title.Value != nil {
		e.TitleTidied = m.Title.Value
		e.TitleManual = true
	} else {
		t := res.Title
		e.TitleTidied = &t
	}

	// 本文（手動フラグなし、常にAI結果かフォールバック）
	c := res.Content
	e.ContentTidied = &c

	// 気分ラベルとスコアは1つの手動フラグで束ねる
	if m.Mood.Manual || m.Score.Manual {
		if m.Mood.Value != nil {
			e.MoodLabel = taxonomy.NormalizeMood(m.Mood.Value)
		}
		if m.Score.Value != nil {
			v := clampScore(*m.Score.Value)
			e.MoodScore = &v
		}
		e.MoodManual = true
	} else {
		if res.Mood != "" {
			mood := res.Mood
			e.MoodLabel = &mood
		}
		if res.Score != nil {
			e.MoodScore = res.Score
		}
	}

	// カテゴリ
	if m.Category.Value != nil {
		e.Category = taxonomy.NormalizeCategory(m.Category.Value)
		e.CategoryManual = true
	} else if !m.Category.Manual && res.Category != "" {
		cat := res.Category
		e.Category = &cat
	}

	// 日付: 確定値 > AI > 妥当な既存値 > 今日
	e.DayDate = resolveDayDate(e, res, m.Date, now)

	e.TidiedAt = &now
	wi := dateutil.ComputeWeekIndex(e.ContextDay())
	e.WeekIndex = &wi
	e.UpdatedAt = now
}

// resolveDayDate は整形後の内容日を決定する。
// 整形済みエントリは必ず内容日を持つ。西暦2000年より前の既存値は
// 壊れたデータとみなして採用しない。
func resolveDayDate(e *model.Entry, res *Result, date entry.Field[string], now time.Time) *time.Time {
	if date.Value != nil {
		if d, err := dateutil.ParseISODate(*date.Value); err == nil {
			d = dateutil.TruncateToDay(d)
			e.DateManual = true
			return &d
		}
	}
	if res.Date != "" {
		if d, err := dateutil.ParseISODate(res.Date); err == nil {
			d = dateutil.TruncateToDay(d)
			return &d
		}
	}
	if e.DayDate != nil && e.DayDate.Year() >= 2000 {
		return e.DayDate
	}
	today := dateutil.TruncateToDay(now)
	return &today
}
