// Package model はドメインモデルを定義する。
package model

import "time"

// WeeklyInsight はユーザー・週ごとに1件生成される週次インサイトを表す。
// (UserID, WeekStart) の組で一意。再生成時は上書き更新され、重複行は作られない。
type WeeklyInsight struct {
	ID           string
	UserID       string
	WeekStart    string // ISO日付文字列（YYYY-MM-DD、月曜日）
	WeekEnd      string // ISO日付文字列（YYYY-MM-DD、日曜日）
	Content      string // InsightContentをJSONシリアライズしたもの
	ShortSummary *string
	GeneratedAt  time.Time
	CreatedAt    time.Time
}

// InsightContent は週次インサイトの構造化された中身。
// WeeklyInsight.ContentにJSONとして保存される形をそのまま表す。
type InsightContent struct {
	Summary         *string     `json:"summary"`
	ShortSummary    *string     `json:"shortSummary"`
	Recommendations []string    `json:"recommendations"`
	Highlights      []string    `json:"highlights"`
	MoodSummary     MoodSummary `json:"moodSummary"`
}

// MoodSummary は週の気分集計を表す。
// Distributionには"unknown"キーと0以下のカウントは含まれない。
type MoodSummary struct {
	AvgScore     *float64       `json:"avgScore"`
	MostMood     *string        `json:"mostMood"`
	Distribution map[string]int `json:"distribution"`
}
