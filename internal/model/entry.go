// Package model はドメインモデルを定義する。
package model

import "time"

// Entry はユーザーの日記エントリを表す。
// contentRawがユーザー入力の原文であり、AI整形または手動入力完了によって
// tidied系フィールドが埋まる。
type Entry struct {
	ID     string
	UserID string

	// 原文フィールド
	TitleRaw   *string
	ContentRaw string // 必須。ユーザー入力テキストの原本

	// 整形済みフィールド（AI整形または全項目手動入力で設定される）
	TitleTidied   *string
	ContentTidied *string
	TidiedAt      *time.Time // 非nilなら整形済みとして扱う

	// 分類フィールド
	MoodLabel *string  // taxonomyの10種enum値
	MoodScore *float64 // 1.0〜10.0
	Category  *string  // taxonomyの12種enum値

	// 日付フィールド
	DayDate   *time.Time // ユーザーまたはAIが割り当てた「内容の日付」。表示・カレンダー用
	WeekIndex *int       // ISO週年*100 + ISO週番号。週次集計の高速化用

	// 手動フラグ。trueのフィールドはAI整形で上書きされない
	TitleManual    bool
	MoodManual     bool
	CategoryManual bool
	DateManual     bool

	CreatedAt time.Time // 書き込み日時。ストリーク計算の「活動日」
	UpdatedAt time.Time
}

// ContextDay はカレンダー表示・月次集計に使う「内容の日」を返す。
// DayDateが設定されていればそれを、なければCreatedAtの日付を使う。
func (e *Entry) ContextDay() time.Time {
	if e.DayDate != nil {
		return *e.DayDate
	}
	return e.CreatedAt
}

// IsFullyTidied はエントリが完全に整形済みかを判定する。
// tidiedAtに加えて主要な整形フィールドがすべて揃っている場合のみtrueを返す。
func (e *Entry) IsFullyTidied() bool {
	return e.TidiedAt != nil &&
		e.TitleTidied != nil && *e.TitleTidied != "" &&
		e.ContentTidied != nil && *e.ContentTidied != "" &&
		e.MoodLabel != nil && *e.MoodLabel != "" &&
		e.MoodScore != nil &&
		e.Category != nil && *e.Category != ""
}
