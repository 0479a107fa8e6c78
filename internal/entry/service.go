package entry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cleannote/internal/dateutil"
	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/repository"
	"github.com/hitoshi/cleannote/internal/taxonomy"
)

// Service はエントリのCRUDとリコンシリエーションを提供する。
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

// CreateInput はエントリ作成の入力。
// Content以外はすべて任意で、nilのフィールドは未指定として扱う。
type CreateInput struct {
	Content       string
	Title         *string
	TitleTidied   *string
	ContentTidied *string
	MoodLabel     *string
	MoodScore     *float64
	Category      *string
	DayDate       *string // YYYY-MM-DD

	// 明示的な手動フラグ。対応する値が入力された場合も手動扱いになる
	TitleManual    bool
	MoodManual     bool
	CategoryManual bool
	DateManual     bool

	// MarkTidied はクライアントが整形済みとして保存することを宣言するフラグ
	MarkTidied bool
}

// Create はエントリを作成する。
// 気分・カテゴリは正規化し、認識できない値は未設定に落とす。
// タイトル・気分・スコア・カテゴリ・日付がすべて人手で埋まっている場合は
// AI整形を経ずに整形済みとして保存する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Entry, error) {
	e, err := buildEntry(userID, in, s.now())
	if err != nil {
		return nil, err
	}
	e.ID = uuid.NewString()

	if err := s.entries.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	return e, nil
}

// buildEntry は作成入力からエントリを組み立てる純関数。
func buildEntry(userID string, in CreateInput, now time.Time) (*model.Entry, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, model.NewEmptyContentError()
	}

	title := trimToNil(in.Title)
	titleTidied := trimToNil(in.TitleTidied)
	contentTidied := trimToNil(in.ContentTidied)
	mood := taxonomy.NormalizeMood(in.MoodLabel)
	category := taxonomy.NormalizeCategory(in.Category)

	// 日付は不正値をエラーにせず未設定に落とす（書き込み日で代替できるため）
	var dayDate *time.Time
	if in.DayDate != nil && strings.TrimSpace(*in.DayDate) != "" {
		if d, err := dateutil.ParseISODate(strings.TrimSpace(*in.DayDate)); err == nil {
			d = dateutil.TruncateToDay(d)
			dayDate = &d
		}
	}

	e := &model.Entry{
		UserID:        userID,
		TitleRaw:      title,
		ContentRaw:    content,
		TitleTidied:   titleTidied,
		ContentTidied: contentTidied,
		MoodLabel:     mood,
		MoodScore:     in.MoodScore,
		Category:      category,
		DayDate:       dayDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	e.TitleManual = title != nil || in.TitleManual
	e.MoodManual = mood != nil || in.MoodScore != nil || in.MoodManual
	e.CategoryManual = category != nil || in.CategoryManual
	e.DateManual = dayDate != nil || in.DateManual

	// 整形済み判定: クライアントの明示宣言、整形済みフィールドの直接指定、
	// または表示項目一式の手動入力のいずれかで成立する
	userFilledAll := title != nil && mood != nil && in.MoodScore != nil && category != nil && dayDate != nil
	if in.MarkTidied || titleTidied != nil || contentTidied != nil || userFilledAll {
		t := now
		e.TidiedAt = &t
		if e.TitleTidied == nil {
			e.TitleTidied = title
		}
		if e.ContentTidied == nil {
			c := content
			e.ContentTidied = &c
		}
	}

	wi := dateutil.ComputeWeekIndex(e.ContextDay())
	e.WeekIndex = &wi

	return e, nil
}

// PatchInput はエントリ部分更新の入力。
// nilのフィールドは変更なし。MoodLabel・Category・DayDateは空文字で解除できる。
type PatchInput struct {
	TitleRaw      *string
	ContentRaw    *string
	TitleTidied   *string
	ContentTidied *string
	MoodLabel     *string
	MoodScore     *float64
	Category      *string
	DayDate       *string // YYYY-MM-DD。""で解除

	// 明示的な手動フラグ上書き。nilなら変更しない
	TitleManual    *bool
	MoodManual     *bool
	CategoryManual *bool
	DateManual     *bool
}

// Patch はエントリを部分更新する。
// 値の入力は対応する手動フラグを立てる。フラグは明示的なfalse指定が
// ない限り暗黙には降りない。
func (s *Service) Patch(ctx context.Context, userID, entryID string, in PatchInput) (*model.Entry, error) {
	e, err := s.getOwned(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	if in.ContentRaw != nil {
		content := strings.TrimSpace(*in.ContentRaw)
		if content == "" {
			return nil, model.NewEmptyContentError()
		}
		e.ContentRaw = content
	}
	if in.TitleRaw != nil {
		e.TitleRaw = trimToNil(in.TitleRaw)
		if e.TitleRaw != nil {
			e.TitleManual = true
		}
	}
	if in.TitleTidied != nil {
		e.TitleTidied = trimToNil(in.TitleTidied)
	}
	if in.ContentTidied != nil {
		e.ContentTidied = trimToNil(in.ContentTidied)
	}
	if in.MoodLabel != nil {
		if strings.TrimSpace(*in.MoodLabel) == "" {
			e.MoodLabel = nil
		} else {
			mood := taxonomy.NormalizeMood(in.MoodLabel)
			if mood == nil {
				return nil, model.NewInvalidRequestError(fmt.Sprintf("unknown mood %q", *in.MoodLabel))
			}
			e.MoodLabel = mood
			e.MoodManual = true
		}
	}
	if in.MoodScore != nil {
		e.MoodScore = in.MoodScore
		e.MoodManual = true
	}
	if in.Category != nil {
		if strings.TrimSpace(*in.Category) == "" {
			e.Category = nil
		} else {
			category := taxonomy.NormalizeCategory(in.Category)
			if category == nil {
				return nil, model.NewInvalidRequestError(fmt.Sprintf("unknown category %q", *in.Category))
			}
			e.Category = category
			e.CategoryManual = true
		}
	}
	if in.DayDate != nil {
		v := strings.TrimSpace(*in.DayDate)
		if v == "" {
			e.DayDate = nil
		} else {
			d, err := dateutil.ParseISODate(v)
			if err != nil {
				return nil, model.NewInvalidDateError(v)
			}
			d = dateutil.TruncateToDay(d)
			e.DayDate = &d
			e.DateManual = true
		}
	}

	if in.TitleManual != nil {
		e.TitleManual = *in.TitleManual
	}
	if in.MoodManual != nil {
		e.MoodManual = *in.MoodManual
	}
	if in.CategoryManual != nil {
		e.CategoryManual = *in.CategoryManual
	}
	if in.DateManual != nil {
		e.DateManual = *in.DateManual
	}

	wi := dateutil.ComputeWeekIndex(e.ContextDay())
	e.WeekIndex = &wi
	e.UpdatedAt = s.now()

	if err := s.entries.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}
	return e, nil
}

// Get は所有権を確認したうえでエントリを取得する。
func (s *Service) Get(ctx context.Context, userID, entryID string) (*model.Entry, error) {
	return s.getOwned(ctx, userID, entryID)
}

// List はユーザーのエントリ一覧を返す。
func (s *Service) List(ctx context.Context, userID string, opts repository.EntryListOptions) ([]*model.Entry, error) {
	entries, err := s.entries.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// Delete は所有権を確認したうえでエントリを削除する。
func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	if _, err := s.getOwned(ctx, userID, entryID); err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// getOwned はエントリを取得し、所有者が一致しない場合は未検出として扱う。
// 他ユーザーのエントリの存在を漏洩させないため、どちらも同じエラーになる。
func (s *Service) getOwned(ctx context.Context, userID, entryID string) (*model.Entry, error) {
	e, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	if e == nil || e.UserID != userID {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	return e, nil
}

func trimToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
