package insight

import (
	"fmt"
	"strings"

	"github.com/hitoshi/cleannote/internal/dateutil"
	"github.com/hitoshi/cleannote/internal/model"
)

// buildBundle は1週間分のエントリをプロンプト用のテキスト束にする。
// エントリごとに日付・タイトル・気分・本文（整形済み優先）を1ブロックにする。
func buildBundle(entries []*model.Entry) string {
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		title := "(untitled)"
		if e.TitleTidied != nil && *e.TitleTidied != "" {
			title = *e.TitleTidied
		} else if e.TitleRaw != nil && *e.TitleRaw != "" {
			title = *e.TitleRaw
		}

		content := e.ContentRaw
		if e.ContentTidied != nil && *e.ContentTidied != "" {
			content = *e.ContentTidied
		}

		mood := "-"
		if e.MoodLabel != nil && *e.MoodLabel != "" {
			mood = *e.MoodLabel
		}

		blocks = append(blocks, fmt.Sprintf("%s / %s / mood: %s\n%s",
			dateutil.ToISODate(e.ContextDay()), title, mood, content))
	}
	return strings.Join(blocks, "\n\n")
}

// buildInsightPrompt は週次インサイト生成のプロンプトを構築する。
func buildInsightPrompt(bundle, weekStart, weekEnd string) string {
	var b strings.Builder

	b.WriteString("You are a reflective journaling assistant. Below are my journal entries for the week ")
	b.WriteString(weekStart + " to " + weekEnd + ".\n")
	b.WriteString("Write a weekly insight about my week, in the first person, as if I wrote it myself.\n\n")

	b.WriteString("Respond with a single JSON object only. No code fences, no commentary. Use exactly these keys:\n")
	b.WriteString(`{"summary": string, "shortSummary": string, "recommendations": [string], "highlights": [string], "moodSummary": {"avgScore": number, "mostMood": string, "distribution": {"<mood>": count}}}` + "\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- summary: a warm first-person paragraph about the week.\n")
	b.WriteString("- shortSummary: one sentence.\n")
	b.WriteString("- recommendations: up to 4 gentle suggestions for next week.\n")
	b.WriteString("- highlights: up to 6 short moments worth remembering.\n")
	b.WriteString("- distribution: counts per mood label actually present. Never include an \"unknown\" bucket.\n")
	b.WriteString("- Only mention dates that appear in the entries. Never invent dates.\n\n")

	b.WriteString("Entries:\n")
	b.WriteString(bundle)

	return b.String()
}
