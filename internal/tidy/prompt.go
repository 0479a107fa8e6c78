package tidy

import (
	"fmt"
	"strings"

	"github.com/hitoshi/cleannote/internal/taxonomy"
)

// lockedField はプロンプトに埋め込むユーザー確定済みフィールド。
type lockedField struct {
	name  string
	value string
}

// buildPrompt は整形プロンプトを構築する。
// lockedに入っているフィールドはAIに変更させないよう明示する。
func buildPrompt(content string, locked []lockedField) string {
	var b strings.Builder

	b.WriteString("You are a journaling assistant. Rewrite the user's raw journal text into a clean entry.\n")
	b.WriteString("Respond with a single JSON object only. No code fences, no commentary. Use exactly these keys:\n")
	b.WriteString(`{"title": string, "content": string, "mood": string, "category": string, "score": number, "date": string}` + "\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- title: at most 8 words summarizing the entry, in the language of the text.\n")
	b.WriteString("- content: the cleaned-up text. Fix grammar and remove filler, keep the meaning and the writer's voice.\n")
	b.WriteString("- mood: one of " + strings.Join(taxonomy.Moods, ", ") + ".\n")
	b.WriteString("- category: one of " + strings.Join(taxonomy.Categories, ", ") + ".\n")
	b.WriteString("- score: mood intensity from 1.0 (very negative) to 10.0 (very positive).\n")
	b.WriteString("- date: the date the text is about, in YYYY-MM-DD, only when the text states it explicitly. Never invent a date. Use \"\" when unknown.\n")

	if len(locked) > 0 {
		b.WriteString("\nThe user already fixed these fields. Echo them back unchanged:\n")
		for _, f := range locked {
			b.WriteString(fmt.Sprintf("- %s: %s\n", f.name, f.value))
		}
	}

	b.WriteString("\nRaw journal text:\n")
	b.WriteString(content)

	return b.String()
}
