package insight

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// stripPolicy はすべてのHTMLタグを除去するポリシー。
// 生成AIの応答をそのままUIに返すため、タグは一切通さない。
var stripPolicy = bluemonday.StrictPolicy()

// scaffoldingTokens はモデルの思考残骸とみなして捨てる文字列。
var scaffoldingTokens = map[string]struct{}{
	"think":    {},
	"thinking": {},
	"ok":       {},
	"okay":     {},
	"sure":     {},
}

// sanitizeText はHTMLタグを除去し、思考残骸トークンを空文字に落とす。
func sanitizeText(s string) string {
	s = strings.TrimSpace(stripPolicy.Sanitize(s))
	if _, ok := scaffoldingTokens[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}

// sanitizeList は各要素をサニタイズし、空要素を除いて最大max件に絞る。
func sanitizeList(items []string, max int) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if v := sanitizeText(it); v != "" {
			out = append(out, v)
		}
		if len(out) == max {
			break
		}
	}
	return out
}

// cleanDistribution は気分分布から"unknown"キーと0以下のカウントを除く。
func cleanDistribution(d map[string]int) map[string]int {
	out := make(map[string]int, len(d))
	for k, v := range d {
		if strings.EqualFold(k, "unknown") || v <= 0 {
			continue
		}
		out[k] = v
	}
	return out
}
