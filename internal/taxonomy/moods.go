// Package taxonomy は気分・カテゴリの正規化機能を提供する。
//
// フリーフォームの入力文字列（AI出力やユーザー入力。英語とインドネシア語の
// 同義語を含む）を固定のenum値に写像する。何が「有効な」気分・カテゴリ値かの
// 唯一の情報源であり、ここを通らない値は保存されない。
// 正規化関数は純粋かつ冪等で、未知の値には推測せずnilを返す。
package taxonomy

import (
	"strings"
	"unicode"
)

// Moods は許可される気分ラベルの正規値一覧。
var Moods = []string{
	"joyful",
	"happy",
	"calm",
	"neutral",
	"tired",
	"sad",
	"anxious",
	"stressed",
	"frustrated",
	"angry",
}

// moodSet は正規値の高速判定用セット。
var moodSet = func() map[string]bool {
	m := make(map[string]bool, len(Moods))
	for _, v := range Moods {
		m[v] = true
	}
	return m
}()

// moodSynonyms はフリーフォーム入力から正規値への同義語テーブル。
// 英語の名詞形・活用形とインドネシア語の日常語をカバーする。
var moodSynonyms = map[string]string{
	// 英語
	"happiness":   "happy",
	"joy":         "joyful",
	"tiredness":   "tired",
	"anxiousness": "anxious",
	"anxiety":     "anxious",
	"frustration": "frustrated",

	// インドネシア語
	"senang":   "happy",
	"bahagia":  "happy",
	"gembira":  "joyful",
	"capek":    "tired",
	"lelah":    "tired",
	"sedih":    "sad",
	"cemas":    "anxious",
	"khawatir": "anxious",
	"marah":    "angry",
	"frustasi": "frustrated",
	"stres":    "stressed",
	"tenang":   "calm",
	"netral":   "neutral",
}

// IsValidMood は文字列が正規の気分ラベルかを判定する。
func IsValidMood(s string) bool {
	return moodSet[s]
}

// NormalizeMood はフリーフォームの気分文字列を正規値に正規化する。
// 小文字化・トリム後、正規値→同義語→記号除去後の同義語の順に照合し、
// どれにも該当しなければnilを返す（推測はしない）。
func NormalizeMood(s *string) *string {
	if s == nil {
		return nil
	}
	low := strings.ToLower(strings.TrimSpace(*s))
	if low == "" {
		return nil
	}
	if moodSet[low] {
		return &low
	}
	if canonical, ok := moodSynonyms[low]; ok {
		return &canonical
	}
	cleaned := stripNonLetters(low, false)
	if moodSet[cleaned] {
		return &cleaned
	}
	if canonical, ok := moodSynonyms[cleaned]; ok {
		return &canonical
	}
	return nil
}

// stripNonLetters は英字・拡張ラテン文字・空白以外を除去する。
// keepHyphenがtrueの場合はハイフンも残す（"lain-lain"のようなカテゴリ同義語用）。
func stripNonLetters(s string, keepHyphen bool) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 0x00C0 && r <= 0x024F: // ラテン補助・拡張A/B
			b.WriteRune(r)
		case r >= 0x1E00 && r <= 0x1EFF: // ラテン拡張追加
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		case keepHyphen && r == '-':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
