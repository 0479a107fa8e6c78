// Package tidy は日記原文のAI整形を提供する。
// プロンプト構築、応答パース、手動フィールドを尊重したマージを担当する。
package tidy

import "strings"

// Result はAI整形の結果。生成AIが返すJSONに対応する。
type Result struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Mood     string   `json:"mood"`
	Category string   `json:"category"`
	Score    *float64 `json:"score"`
	Date     string   `json:"date"` // YYYY-MM-DD。不明の場合は空文字
}

// firstWords は先頭n語をスペース連結して返す。タイトルのフォールバック用。
func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// clampScore はスコアを1.0〜10.0の範囲に収める。
func clampScore(v float64) float64 {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
