package tidy

import (
	"encoding/json"
	"regexp"
	"strings"
)

var thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// parseResult はAI応答からResultをパースする。
// 応答全体のJSON → <think>ブロック除去後のJSON → バランスした {...} 部分の
// 抜き出し、の順に試す。バランス抽出は除去後のテキストに対して行い、
// 推論過程に混ざったJSON片を拾わないようにする。
// すべて失敗した場合はok=falseを返し、呼び出し側がフォールバックする。
func parseResult(raw string) (*Result, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err == nil {
		return &r, true
	}

	stripped := strings.TrimSpace(thinkTagRe.ReplaceAllString(raw, ""))
	if stripped != raw {
		if err := json.Unmarshal([]byte(stripped), &r); err == nil {
			return &r, true
		}
	}

	if obj, ok := extractBalancedObject(stripped); ok {
		if err := json.Unmarshal([]byte(obj), &r); err == nil {
			return &r, true
		}
	}

	return nil, false
}

// extractBalancedObject はテキスト中の最初のバランスした {...} を返す。
// 文字列リテラル内の波括弧とエスケープを考慮する。
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
