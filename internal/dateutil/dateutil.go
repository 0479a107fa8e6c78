// Package dateutil はUTC基準の日付・ISO週計算を提供する。
//
// サーバーとクライアントで日境界がずれないよう、日付演算はすべてUTCで行う。
// ISO週は月曜始まりで、その年の最初の木曜日を含む週が第1週となる。
package dateutil

import "time"

// ISODateFormat はYYYY-MM-DD形式のフォーマット文字列。
const ISODateFormat = "2006-01-02"

// ToISODate は日時をUTCのISO日付文字列（YYYY-MM-DD）に変換する。
func ToISODate(t time.Time) string {
	return t.UTC().Format(ISODateFormat)
}

// ParseISODate はISO日付文字列をUTC深夜0時のtime.Timeにパースする。
func ParseISODate(s string) (time.Time, error) {
	return time.Parse(ISODateFormat, s)
}

// TruncateToDay は日時をUTCの日単位に切り捨てる。
func TruncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay は指定日のUTC終端（翌日0時の直前）を返す。
// タイムスタンプの包含範囲比較の上端に使う。
func EndOfDay(t time.Time) time.Time {
	return TruncateToDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfISOWeek は指定日を含むISO週の月曜日（UTC 0時）を返す。
func StartOfISOWeek(t time.Time) time.Time {
	d := TruncateToDay(t)
	// time.Weekdayは日曜=0。月曜始まりのオフセットに変換する
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// EndOfISOWeek は指定日を含むISO週の日曜日（UTC 0時）を返す。
func EndOfISOWeek(t time.Time) time.Time {
	return StartOfISOWeek(t).AddDate(0, 0, 6)
}

// ComputeWeekIndex は週次集計用の整数インデックスを計算する。
// ISO週年 * 100 + ISO週番号。同一ISO週内のどの日付でも同じ値になり、
// 月曜日の境界で必ず値が変わる。年末年始はISO週年を使うため、
// 例えば2024-12-30（2025年第1週の月曜）は202501になる。
func ComputeWeekIndex(t time.Time) int {
	year, week := t.UTC().ISOWeek()
	return year*100 + week
}
