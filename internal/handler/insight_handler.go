package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/cleannote/internal/dateutil"
	"github.com/hitoshi/cleannote/internal/middleware"
	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/stats"
)

// InsightServiceInterface は週次インサイトハンドラーが必要とするサービスインターフェース。
type InsightServiceInterface interface {
	Generate(ctx context.Context, userID string, dayInWeek time.Time) (*model.WeeklyInsight, error)
	Get(ctx context.Context, userID string, dayInWeek time.Time) (*model.WeeklyInsight, stats.WeekSummary, error)
	List(ctx context.Context, userID string) ([]*model.WeeklyInsight, error)
	Save(ctx context.Context, userID string, dayInWeek time.Time, content model.InsightContent) (*model.WeeklyInsight, error)
}

// InsightHandler は週次インサイトのHTTPハンドラー。
type InsightHandler struct {
	service InsightServiceInterface
	now     func() time.Time
}

// NewInsightHandler はInsightHandlerを生成する。
func NewInsightHandler(service InsightServiceInterface) *InsightHandler {
	return &InsightHandler{
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// generateInsightRequest はインサイト生成リクエストのボディ。
// weekは対象週に含まれる任意の日付。省略時は今週。
type generateInsightRequest struct {
	Week *string `json:"week"` // YYYY-MM-DD
}

// saveInsightRequest はインサイト保存リクエストのボディ。
type saveInsightRequest struct {
	Week    *string              `json:"week"` // YYYY-MM-DD
	Content model.InsightContent `json:"content"`
}

// insightResponse は週次インサイトのAPIレスポンス。
type insightResponse struct {
	ID           string               `json:"id"`
	WeekStart    string               `json:"weekStart"`
	WeekEnd      string               `json:"weekEnd"`
	Content      model.InsightContent `json:"content"`
	ShortSummary *string              `json:"shortSummary"`
	GeneratedAt  string               `json:"generatedAt"`
}

// insightWithStatsResponse はインサイトと週統計を合わせたAPIレスポンス。
type insightWithStatsResponse struct {
	Insight   insightResponse   `json:"insight"`
	WeekStats stats.WeekSummary `json:"weekStats"`
}

// Get は指定週のインサイトと週統計を返す。
// GET /api/insights?week=YYYY-MM-DD
func (h *InsightHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	dayInWeek := h.now()
	if raw := r.URL.Query().Get("week"); raw != "" {
		t, err := dateutil.ParseISODate(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(raw))
			return
		}
		dayInWeek = t
	}

	insight, weekStats, err := h.service.Get(r.Context(), userID, dayInWeek)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := toInsightResponse(insight)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(insightWithStatsResponse{
		Insight:   resp,
		WeekStats: weekStats,
	})
}

// List は過去のインサイト一覧を週の新しい順で返す。
// GET /api/insights/history
func (h *InsightHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	insights, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]insightResponse, 0, len(insights))
	for _, ins := range insights {
		resp, err := toInsightResponse(ins)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		out = append(out, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// Generate は指定週のインサイトをAI生成して保存する。
// POST /api/insights/generate
func (h *InsightHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req generateInsightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	dayInWeek, ok := h.resolveWeek(w, req.Week)
	if !ok {
		return
	}

	insight, err := h.service.Generate(r.Context(), userID, dayInWeek)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := toInsightResponse(insight)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// Save はクライアント側で編集されたインサイトを保存する。
// POST /api/insights
func (h *InsightHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req saveInsightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	dayInWeek, ok := h.resolveWeek(w, req.Week)
	if !ok {
		return
	}

	insight, err := h.service.Save(r.Context(), userID, dayInWeek, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := toInsightResponse(insight)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// resolveWeek はリクエストの週指定をパースする。省略時は現在時刻を使う。
// 不正な日付の場合はエラーレスポンスを書き込んでfalseを返す。
func (h *InsightHandler) resolveWeek(w http.ResponseWriter, week *string) (time.Time, bool) {
	if week == nil || *week == "" {
		return h.now(), true
	}
	t, err := dateutil.ParseISODate(*week)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(*week))
		return time.Time{}, false
	}
	return t, true
}

// toInsightResponse は保存されたインサイトをAPIレスポンスに変換する。
// Contentカラムには構造化JSONが保存されている前提。
func toInsightResponse(ins *model.WeeklyInsight) (insightResponse, error) {
	var content model.InsightContent
	if err := json.Unmarshal([]byte(ins.Content), &content); err != nil {
		return insightResponse{}, fmt.Errorf("failed to decode stored insight content: %w", err)
	}

	return insightResponse{
		ID:           ins.ID,
		WeekStart:    ins.WeekStart,
		WeekEnd:      ins.WeekEnd,
		Content:      content,
		ShortSummary: ins.ShortSummary,
		GeneratedAt:  ins.GeneratedAt.Format(time.RFC3339),
	}, nil
}
