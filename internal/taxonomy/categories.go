package taxonomy

import "strings"

// Categories は許可されるカテゴリの正規値一覧。
var Categories = []string{
	"personal",
	"relationships",
	"health",
	"habits",
	"work",
	"study",
	"creativity",
	"goals",
	"reflection",
	"finance",
	"daily",
	"other",
}

// categorySet は正規値の高速判定用セット。
var categorySet = func() map[string]bool {
	m := make(map[string]bool, len(Categories))
	for _, v := range Categories {
		m[v] = true
	}
	return m
}()

// categorySynonyms はフリーフォーム入力から正規値への同義語テーブル。
var categorySynonyms = map[string]string{
	// 英語
	"relationship": "relationships",
	"fitness":      "health",
	"studying":     "study",
	"goal":         "goals",

	// インドネシア語
	"personalia": "personal",
	"keluarga":   "relationships",
	"hubungan":   "relationships",
	"kesehatan":  "health",
	"kebiasaan":  "habits",
	"kerja":      "work",
	"pekerjaan":  "work",
	"belajar":    "study",
	"kreatif":    "creativity",
	"tujuan":     "goals",
	"refleksi":   "reflection",
	"keuangan":   "finance",
	"harian":     "daily",
	"lain":       "other",
	"lain-lain":  "other",
}

// IsValidCategory は文字列が正規のカテゴリかを判定する。
func IsValidCategory(s string) bool {
	return categorySet[s]
}

// NormalizeCategory はフリーフォームのカテゴリ文字列を正規値に正規化する。
// 照合順序はNormalizeMoodと同じ。カテゴリの同義語にはハイフンを含むものが
// あるため、記号除去時にハイフンだけは残す。
func NormalizeCategory(s *string) *string {
	if s == nil {
		return nil
	}
	low := strings.ToLower(strings.TrimSpace(*s))
	if low == "" {
		return nil
	}
	if categorySet[low] {
		return &low
	}
	if canonical, ok := categorySynonyms[low]; ok {
		return &canonical
	}
	cleaned := stripNonLetters(low, true)
	if categorySet[cleaned] {
		return &cleaned
	}
	if canonical, ok := categorySynonyms[cleaned]; ok {
		return &canonical
	}
	return nil
}
