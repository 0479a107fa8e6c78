// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/cleannote/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByProviderUserID は外部IdPのユーザーIDでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderUserID(ctx context.Context, providerUserID string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するentries、weekly_insightsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// EntryListOptions はエントリ一覧取得の絞り込み条件。
// ゼロ値のフィールドは条件として使われない。
type EntryListOptions struct {
	// Search はタイトル・本文への大文字小文字を無視した部分一致検索。
	Search string
	// From / To は内容日（day_date、なければcreated_at）の両端含む範囲。
	From *time.Time
	To   *time.Time
	// Limit は最大取得件数。0の場合は無制限。
	Limit int
}

// EntryRepository はエントリデータの永続化インターフェース。
// すべてのメソッドはユーザーIDで所有権を絞り込む（IDのみで引くFindByIDを除き、
// 所有権チェックはサービス層で行う）。
type EntryRepository interface {
	// Create はエントリを作成する。
	Create(ctx context.Context, entry *model.Entry) error

	// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Entry, error)

	// Update はエントリを全カラム上書き更新する。
	Update(ctx context.Context, entry *model.Entry) error

	// Delete は指定IDのエントリを削除する。
	Delete(ctx context.Context, id string) error

	// ListByUser はユーザーのエントリ一覧を作成日時降順で返す。
	ListByUser(ctx context.Context, userID string, opts EntryListOptions) ([]*model.Entry, error)

	// ListSinceEitherDate はday_dateまたはcreated_atがsince以降のエントリを
	// 作成日時降順で返す。ダッシュボードの90日集計ウィンドウ用。
	ListSinceEitherDate(ctx context.Context, userID string, since time.Time) ([]*model.Entry, error)

	// ListBetweenEitherDate はday_dateまたはcreated_atが[from, to]に入る
	// エントリをtidied_at降順（NULLは末尾）、created_at降順で返す。
	// 今週の優先表示エントリ用。
	ListBetweenEitherDate(ctx context.Context, userID string, from, to time.Time, limit int) ([]*model.Entry, error)

	// ListByCreatedAtRange はcreated_atが[from, to]に入るエントリを
	// 作成日時昇順で返す。週次インサイトの入力束ね用。
	ListByCreatedAtRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Entry, error)
}

// InsightRepository は週次インサイトの永続化インターフェース。
type InsightRepository interface {
	// Upsert は(user_id, week_start)をキーに冪等にUPSERTする。
	// 一意制約違反（並行生成の競合）の場合はfind-then-updateにフォールバックする。
	Upsert(ctx context.Context, insight *model.WeeklyInsight) (*model.WeeklyInsight, error)

	// FindByUserAndWeekStart はユーザーIDと週開始日でインサイトを取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndWeekStart(ctx context.Context, userID, weekStart string) (*model.WeeklyInsight, error)

	// ListByUser はユーザーの全インサイトを週開始日降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.WeeklyInsight, error)
}
