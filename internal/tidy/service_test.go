package tidy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/cleannote/internal/metrics"
	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/repository"
)

// mockGenerator はテスト用のテキスト生成モック。
type mockGenerator struct {
	resp      string
	err       error
	gotPrompt string
}

func (m *mockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.gotPrompt = prompt
	return m.resp, m.err
}

// mockEntryRepo はテスト用のインメモリエントリリポジトリ。
type mockEntryRepo struct {
	entries map[string]*model.Entry
}

func newMockEntryRepo() *mockEntryRepo {
	return &mockEntryRepo{entries: make(map[string]*model.Entry)}
}

func (m *mockEntryRepo) Create(ctx context.Context, e *model.Entry) error {
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockEntryRepo) FindByID(ctx context.Context, id string) (*model.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *mockEntryRepo) Update(ctx context.Context, e *model.Entry) error {
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockEntryRepo) Delete(ctx context.Context, id string) error {
	delete(m.entries, id)
	return nil
}

func (m *mockEntryRepo) ListByUser(ctx context.Context, userID string, opts repository.EntryListOptions) ([]*model.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepo) ListSinceEitherDate(ctx context.Context, userID string, since time.Time) ([]*model.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepo) ListBetweenEitherDate(ctx context.Context, userID string, from, to time.Time, limit int) ([]*model.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepo) ListByCreatedAtRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Entry, error) {
	return nil, nil
}

var _ repository.EntryRepository = (*mockEntryRepo)(nil)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func fixedTime() time.Time {
	return time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
}

func newTestService(repo *mockEntryRepo, gen *mockGenerator) *Service {
	s := NewService(repo, gen, metrics.NopCollector{})
	s.now = fixedTime
	return s
}

func seedEntry(repo *mockEntryRepo, e *model.Entry) *model.Entry {
	if e.ID == "" {
		e.ID = "e1"
	}
	if e.UserID == "" {
		e.UserID = "u1"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = fixedTime().Add(-24 * time.Hour)
	}
	repo.entries[e.ID] = e
	return e
}

func TestTidyEntry_AppliesAIFields(t *testing.T) {
	repo := newMockEntryRepo()
	gen := &mockGenerator{
		resp: `{"title":"Long walk","content":"I took a long walk by the river.","mood":"calm","category":"health","score":7.5,"date":"2025-06-03"}`,
	}
	svc := newTestService(repo, gen)
	seedEntry(repo, &model.Entry{ContentRaw: "walkd by river long time v calming"})

	e, err := svc.TidyEntry(context.Background(), "u1", "e1", Overrides{})
	if err != nil {
		t.Fatalf("TidyEntry failed: %v", err)
	}

	if e.TitleTidied == nil || *e.TitleTidied != "Long walk" {
		t.Errorf("TitleTidied = %v", e.TitleTidied)
	}
	if e.ContentTidied == nil || *e.ContentTidied != "I took a long walk by the river." {
		t.Errorf("ContentTidied = %v", e.ContentTidied)
	}
	if e.MoodLabel == nil || *e.MoodLabel != "calm" {
		t.Errorf("MoodLabel = %v", e.MoodLabel)
	}
	if e.MoodScore == nil || *e.MoodScore != 7.5 {
		t.Errorf("MoodScore = %v", e.MoodScore)
	}
	if e.Category == nil || *e.Category != "health" {
		t.Errorf("Category = %v", e.Category)
	}
	if e.DayDate == nil || e.DayDate.Format("2006-01-02") != "2025-06-03" {
		t.Errorf("DayDate = %v", e.DayDate)
	}
	if e.TidiedAt == nil {
		t.Error("TidiedAt should be set")
	}
	if e.WeekIndex == nil || *e.WeekIndex != 202523 {
		t.Errorf("WeekIndex = %v, want 202523", e.WeekIndex)
	}
	if !e.IsFullyTidied() {
		t.Error("expected fully tidied entry")
	}
}

func TestTidyEntry_ManualMoodSurvivesAICandidate(t *testing.T) {
	repo := newMockEntryRepo()
	gen := &mockGenerator{
		resp: `{"title":"T","content":"C","mood":"sad","category":"daily","score":2,"date":""}`,
	}
	svc := newTestService(repo, gen)
	seedEntry(repo, &model.Entry{
		ContentRaw: "raw",
		MoodLabel:  strPtr("happy"),
		MoodScore:  f64Ptr(9),
		MoodManual: true,
	})

	e, err := svc.TidyEntry(context.Background(), "u1", "e1", Overrides{})
	if err != nil {
		t.Fatalf("TidyEntry failed: %v", err)
	}
	if *e.MoodLabel != "happy" || *e.MoodScore != 9 {
		t.Errorf("manual mood overwritten: label=%v score=%v", *e.MoodLabel, *e.MoodScore)
	}
	// 確定値がプロンプトにも渡っていること
	if !strings.Contains(gen.gotPrompt, "mood: happy") {
		t.Error("locked mood should appear in the prompt")
	}
}

func TestTidyEntry_StoredManualScoreOnly_BlocksAIMood(t *testing.T) {
	repo := newMockEntryRepo()
	gen := &mockGenerator{
		resp: `{"title":"T","content":"C","mood":"sad","category":"daily","score":2,"date":""}`,
	}
	svc := newTestService(repo, gen)
	seedEntry(repo, &model.Entry{
		ContentRaw: "raw",
		MoodScore:  f64Ptr(4),
		MoodManual: true,
	})

	e, err := svc.TidyEntry(context.Background(), "u1", "e1", Overrides{})
	if err != nil {
		t.Fatalf("TidyEntry failed: %v", err)
	}
	// ラベルとスコアは1つの手動フラグで束ねるため、スコアだけの手動入力でも
	// AIの気分候補は採用しない
	if e.MoodLabel != nil {
		t.Errorf("MoodLabel = %v, want AI candidate rejected", *e.MoodLabel)
	}
	if e.MoodScore == nil || *e.MoodScore != 4 {
		t.Errorf("MoodScore = %v, want stored manual score kept", e.MoodScore)
	}
	if !e.MoodManual {
		t.Error("MoodManual should remain set")
	}
}

func TestTidyEntry_CallOverridesSupersedeStoredManual(t *testing.T) {
	repo := newMockEntryRepo()
	gen := &mockGenerator{
		resp: `{"title":"T","content":"C","mood":"sad","category":"daily","score":2,"date":""}`,
	}
	svc := newTestService(repo, gen)
	seedEntry(repo, &model.Entry{
		ContentRaw:     "raw",
		Category:       strPtr("work"),
		CategoryManual: true,
	})

	e, err := svc.TidyEntry(context.Background(), "u1", "e1", Overrides{Category: strPtr("study")})
	if err != nil {
		t.Fatalf("TidyEntry failed: %v", err)
	}
	if e.Category == nil || *e.Category != "study" {
		t.Errorf("Category = %v, want call override to win", e.Category)
	}
	if !e.CategoryManual {
		t.Error("CategoryManual should remain set")
	}
}

func TestTidyEntry_UnparseableResponse_FallsBackToRawText(t *testing.T) {
	repo := newMockEntryRepo()
	gen := &mockGenerator{resp: "Sorry, I cannot help with that."}
	svc := newTestService(repo, gen)
	seedEntry(repo, &model.Entry{
		ContentRaw: "one two three four five six seven",
	})

	e, err := svc.TidyEntry(context.Background(), "u1", "e1", Overrides{})
	if err != nil {
		t.Fatalf("TidyEntry failed: %v", err)
	}
	if e.ContentTidied == nil || *e.ContentTidied != "one two three four five six seven" {
		t.Errorf("ContentTidied = %v, want raw content fallback", e.ContentTidied)
	}
	if e.TitleTidied == nil || *e.TitleTidied != "one two three four five six" {
		t.Errorf("TitleTidied = %v, want first six words", e.TitleTidied)
	}
	if e.TidiedAt == nil {
		t.Error("fallback tidy should still mark the entry tidied")
	}
}

func TestTidyEntry_ScoreClampedToRange(t *testing.T) {
	repo := newMockEntryRepo()
	gen := &mockGenerator{
		resp: `{"title":"T","content":"C","mood":"happy","category":"daily","score":42,"date":""}`,
	}
	svc := newTestService(repo, gen)
	seedEntry(repo, &model.Entry{ContentRaw: "raw"})

	e, err := svc.TidyEntry(context.Background(), "u1", "e1", Overrides{})
	if err != nil {
		t.Fatalf("TidyEntry failed: %v", err)
	}
	if e.MoodScore == nil || *e.MoodScore != 10 {
		t.Errorf("MoodScore = %v, want clamped to 10", e.MoodScore)
	}
}

func TestTidyEntry_NoDateAnywhere_UsesToday(t *testing.T) {
	repo := newMockEntryRepo()
	gen := &mockGenerator{
		resp: `{"title":"T","content":"C","mood":"happy","category":"daily","score":5,"date":""}`,
	}
	svc := newTestService(repo, gen)
	seedEntry(repo, &model.Entry{ContentRaw: "raw"})

	e, err := svc.TidyEntry(context.Background(), "u1", "e1", Overrides{})
	if err != nil {
		t.Fatalf("TidyEntry failed: %v", err)
	}
	if e.DayDate == nil || e.DayDate.Format("2006-01-02") != "2025-06-04" {
		t.Errorf("DayDate = %v, want today", e.DayDate)
	}
}

func TestTidyEntry_BrokenStoredDate_Replaced(t *testing.T) {
	repo := newMockEntryRepo()
	gen := &mockGenerator{
		resp: `{"title":"T","content":"C","mood":"happy","category":"daily","score":5,"date":""}`,
	}
	svc := newTestService(repo, gen)
	broken := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	seedEntry(repo, &model.Entry{ContentRaw: "raw", DayDate: &broken})

	e, err := svc.TidyEntry(context.Background(), "u1", "e1", Overrides{})
	if err != nil {
		t.Fatalf("TidyEntry failed: %v", err)
	}
	if e.DayDate == nil || e.DayDate.Year() != 2025 {
		t.Errorf("DayDate = %v, want pre-2000 value replaced with today", e.DayDate)
	}
}

func TestTidyEntry_OtherUsersEntry_NotFound(t *testing.T) {
	repo := newMockEntryRepo()
	svc := newTestService(repo, &mockGenerator{resp: "{}"})
	seedEntry(repo, &model.Entry{UserID: "owner", ContentRaw: "raw"})

	_, err := svc.TidyEntry(context.Background(), "intruder", "e1", Overrides{})
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeEntryNotFound {
		t.Errorf("expected ENTRY_NOT_FOUND, got %v", err)
	}
}

func TestTidyEntry_GeneratorError_ReturnsAIUnavailable(t *testing.T) {
	repo := newMockEntryRepo()
	gen := &mockGenerator{err: context.DeadlineExceeded}
	svc := newTestService(repo, gen)
	seedEntry(repo, &model.Entry{ContentRaw: "raw"})

	_, err := svc.TidyEntry(context.Background(), "u1", "e1", Overrides{})
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeAIUnavailable {
		t.Errorf("expected AI_UNAVAILABLE, got %v", err)
	}
}

func TestPreview_EmptyContent_ReturnsError(t *testing.T) {
	svc := newTestService(newMockEntryRepo(), &mockGenerator{resp: "{}"})

	_, err := svc.Preview(context.Background(), "  ", Overrides{})
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeEmptyContent {
		t.Errorf("expected EMPTY_CONTENT, got %v", err)
	}
}

func TestPreview_ReturnsNormalizedResult(t *testing.T) {
	gen := &mockGenerator{
		resp: `{"title":"T","content":"cleaned","mood":"Senang","category":"Fitness","score":0.5,"date":"bad-date"}`,
	}
	svc := newTestService(newMockEntryRepo(), gen)

	res, err := svc.Preview(context.Background(), "raw text", Overrides{})
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if res.Mood != "happy" {
		t.Errorf("Mood = %q, want normalized to happy", res.Mood)
	}
	if res.Category != "health" {
		t.Errorf("Category = %q, want normalized to health", res.Category)
	}
	if res.Score == nil || *res.Score != 1 {
		t.Errorf("Score = %v, want clamped to 1", res.Score)
	}
	if res.Date != "" {
		t.Errorf("Date = %q, want invalid date dropped", res.Date)
	}
}
