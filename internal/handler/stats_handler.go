package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/cleannote/internal/middleware"
	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/stats"
)

const (
	// defaultDashboardMonths はダッシュボードの月別系列のデフォルト月数。
	defaultDashboardMonths = 3

	// defaultStatisticsMonths は統計ページの月別系列のデフォルト月数。
	defaultStatisticsMonths = 6
)

// StatsServiceInterface は統計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	Dashboard(ctx context.Context, userID string, months int) (*stats.DashboardStats, error)
}

// StatsHandler はダッシュボード・統計のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{service: service}
}

// thisWeekResponse は今週のエントリの整形済み・未整形の分類。
type thisWeekResponse struct {
	Tidied []entryResponse `json:"tidied"`
	Raw    []entryResponse `json:"raw"`
}

// dashboardResponse はダッシュボード統計のAPIレスポンス。
type dashboardResponse struct {
	CurrentStreak int                `json:"currentStreak"`
	CalendarDays  []stats.DayStat    `json:"calendarDays"`
	MonthlySeries []stats.MonthCount `json:"monthlySeries"`
	Last7Days     []stats.DaySummary `json:"last7Days"`
	ThisWeek      thisWeekResponse   `json:"thisWeek"`
	Week          stats.WeekSummary  `json:"week"`
}

// Dashboard はダッシュボード用の統計を返す。
// GET /api/dashboard/stats?months=n
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, defaultDashboardMonths)
}

// Statistics は統計ページ用の統計を返す。月別系列が長い以外はダッシュボードと同じ。
// GET /api/statistics?months=n
func (h *StatsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, defaultStatisticsMonths)
}

func (h *StatsHandler) serve(w http.ResponseWriter, r *http.Request, defaultMonths int) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	months := defaultMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 24 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("monthsが不正です"))
			return
		}
		months = n
	}

	result, err := h.service.Dashboard(r.Context(), userID, months)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dashboardResponse{
		CurrentStreak: result.CurrentStreak,
		CalendarDays:  result.CalendarDays,
		MonthlySeries: result.MonthlySeries,
		Last7Days:     result.Last7Days,
		ThisWeek: thisWeekResponse{
			Tidied: toEntryResponses(result.ThisWeekTidied),
			Raw:    toEntryResponses(result.ThisWeekRaw),
		},
		Week: result.Week,
	})
}
