// Package insight は週次インサイトの生成・取得・保存を提供する。
// 生成AIの応答は形が保証されないため、順序付きの抽出戦略で
// 構造化コンテンツに落とし込む。
package insight

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

// rawContent は抽出直後の未サニタイズのインサイト。
type rawContent struct {
	Summary         string   `json:"summary"`
	ShortSummary    string   `json:"shortSummary"`
	Recommendations []string `json:"recommendations"`
	Highlights      []string `json:"highlights"`
	MoodSummary     struct {
		AvgScore     *float64       `json:"avgScore"`
		MostMood     string         `json:"mostMood"`
		Distribution map[string]int `json:"distribution"`
	} `json:"moodSummary"`
}

// empty は抽出結果に使える中身が何もないかを判定する。
// 空のJSONオブジェクトを成功扱いにしないためのガード。
func (c *rawContent) empty() bool {
	return strings.TrimSpace(c.Summary) == "" &&
		len(c.Recommendations) == 0 &&
		len(c.Highlights) == 0
}

// strategy は抽出戦略。nameはメトリクスのラベルに使う。
type strategy struct {
	name    string
	extract func(string) (*rawContent, bool)
}

// strategies は適用順に並んだ抽出戦略。先に成功したものが勝つ。
var strategies = []strategy{
	{"DirectJSON", extractDirectJSON},
	{"StrippedTagsJSON", extractStrippedTagsJSON},
	{"RegexExtractedJSON", extractRegexJSON},
	{"HeuristicTextExtraction", extractHeuristic},
}

// parseContent は応答テキストから構造化コンテンツを抽出する。
// 成功した戦略の名前も返す。
func parseContent(raw string) (*rawContent, string, bool) {
	for _, s := range strategies {
		if c, ok := s.extract(raw); ok {
			return c, s.name, true
		}
	}
	return nil, "", false
}

var thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

func tryUnmarshal(s string) (*rawContent, bool) {
	var c rawContent
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &c); err != nil {
		return nil, false
	}
	if c.empty() {
		return nil, false
	}
	return &c, true
}

// extractDirectJSON は応答全体を単一のJSONオブジェクトとして試す。
func extractDirectJSON(raw string) (*rawContent, bool) {
	return tryUnmarshal(raw)
}

// extractStrippedTagsJSON は<think>ブロックを取り除いてから再試行する。
// 推論過程をタグ付きで吐くモデルへの対応。
func extractStrippedTagsJSON(raw string) (*rawContent, bool) {
	stripped := thinkTagRe.ReplaceAllString(raw, "")
	if stripped == raw {
		return nil, false
	}
	return tryUnmarshal(stripped)
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractRegexJSON は応答中の最初の{から最後の}までを切り出して試す。
// コードフェンスや前置きの混ざった応答への対応。
func extractRegexJSON(raw string) (*rawContent, bool) {
	m := jsonObjectRe.FindString(thinkTagRe.ReplaceAllString(raw, ""))
	if m == "" {
		return nil, false
	}
	return tryUnmarshal(m)
}

var (
	bulletRe        = regexp.MustCompile(`^[-•*]\s+(.+)$`)
	numberedRe      = regexp.MustCompile(`^\d+[.)]\s+(.+)$`)
	quotedRe        = regexp.MustCompile(`"([^"]{3,})"`)
	recommendHeadRe = regexp.MustCompile(`(?i)^recommendations?\s*:?\s*$`)
)

// extractHeuristic はJSONを諦め、プレーンテキストから同じ形を組み立てる。
// 最初の段落をsummary、箇条書きをhighlights、"recommendations:"ブロック
// または番号付き行をrecommendationsとして拾う。
func extractHeuristic(raw string) (*rawContent, bool) {
	text := strings.TrimSpace(thinkTagRe.ReplaceAllString(raw, ""))
	if text == "" {
		return nil, false
	}

	c := &rawContent{}
	lines := strings.Split(text, "\n")

	// 最初の非空・非箇条書き行の連続をsummaryにする
	var summaryLines []string
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if l == "" {
			if len(summaryLines) > 0 {
				break
			}
			continue
		}
		if bulletRe.MatchString(l) || numberedRe.MatchString(l) || recommendHeadRe.MatchString(l) {
			break
		}
		// 波括弧や記号だけの行はJSONの残骸なのでサマリーに拾わない
		if !hasWordChar(l) {
			continue
		}
		summaryLines = append(summaryLines, l)
	}
	c.Summary = strings.Join(summaryLines, " ")

	inRecommendBlock := false
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if recommendHeadRe.MatchString(l) {
			inRecommendBlock = true
			continue
		}
		if l == "" {
			inRecommendBlock = false
			continue
		}
		if m := bulletRe.FindStringSubmatch(l); m != nil && hasWordChar(m[1]) {
			if inRecommendBlock {
				c.Recommendations = append(c.Recommendations, m[1])
			} else {
				c.Highlights = append(c.Highlights, m[1])
			}
			continue
		}
		if m := numberedRe.FindStringSubmatch(l); m != nil && hasWordChar(m[1]) {
			c.Recommendations = append(c.Recommendations, m[1])
		}
	}

	// 箇条書きが1つもない場合は引用符付き文字列をhighlights扱いにする
	if len(c.Highlights) == 0 {
		for _, m := range quotedRe.FindAllStringSubmatch(text, 6) {
			if hasWordChar(m[1]) {
				c.Highlights = append(c.Highlights, m[1])
			}
		}
	}

	if c.empty() {
		return nil, false
	}
	return c, true
}

// hasWordChar は文字列に文字または数字が含まれるかを判定する。
func hasWordChar(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	})
}
