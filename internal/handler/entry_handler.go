package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cleannote/internal/dateutil"
	"github.com/hitoshi/cleannote/internal/entry"
	"github.com/hitoshi/cleannote/internal/middleware"
	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/repository"
	"github.com/hitoshi/cleannote/internal/tidy"
)

// EntryServiceInterface はエントリハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	Create(ctx context.Context, userID string, in entry.CreateInput) (*model.Entry, error)
	Patch(ctx context.Context, userID, entryID string, in entry.PatchInput) (*model.Entry, error)
	Get(ctx context.Context, userID, entryID string) (*model.Entry, error)
	List(ctx context.Context, userID string, opts repository.EntryListOptions) ([]*model.Entry, error)
	Delete(ctx context.Context, userID, entryID string) error
}

// TidyServiceInterface はAI整形ハンドラーが必要とするサービスインターフェース。
type TidyServiceInterface interface {
	Preview(ctx context.Context, content string, ov tidy.Overrides) (*tidy.Result, error)
	TidyEntry(ctx context.Context, userID, entryID string, ov tidy.Overrides) (*model.Entry, error)
}

// EntryHandler はエントリ管理のHTTPハンドラー。
type EntryHandler struct {
	entries EntryServiceInterface
	tidier  TidyServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(entries EntryServiceInterface, tidier TidyServiceInterface) *EntryHandler {
	return &EntryHandler{
		entries: entries,
		tidier:  tidier,
	}
}

// createEntryRequest はエントリ作成リクエストのボディ。
type createEntryRequest struct {
	Content       string   `json:"content"`
	Title         *string  `json:"title"`
	TitleTidied   *string  `json:"titleTidied"`
	ContentTidied *string  `json:"contentTidied"`
	MoodLabel     *string  `json:"moodLabel"`
	MoodScore     *float64 `json:"moodScore"`
	Category      *string  `json:"category"`
	DayDate       *string  `json:"dayDate"` // YYYY-MM-DD

	TitleManual    bool `json:"titleManual"`
	MoodManual     bool `json:"moodManual"`
	CategoryManual bool `json:"categoryManual"`
	DateManual     bool `json:"dateManual"`
	MarkTidied     bool `json:"markTidied"`
}

// patchEntryRequest はエントリ部分更新リクエストのボディ。
// nilのフィールドは変更しない。
type patchEntryRequest struct {
	TitleRaw      *string  `json:"titleRaw"`
	ContentRaw    *string  `json:"contentRaw"`
	TitleTidied   *string  `json:"titleTidied"`
	ContentTidied *string  `json:"contentTidied"`
	MoodLabel     *string  `json:"moodLabel"`
	MoodScore     *float64 `json:"moodScore"`
	Category      *string  `json:"category"`
	DayDate       *string  `json:"dayDate"` // YYYY-MM-DD。""で解除

	TitleManual    *bool `json:"titleManual"`
	MoodManual     *bool `json:"moodManual"`
	CategoryManual *bool `json:"categoryManual"`
	DateManual     *bool `json:"dateManual"`
}

// tidyRequest はAI整形リクエストのボディ。指定フィールドはAI結果より優先される。
type tidyRequest struct {
	Title    *string  `json:"title"`
	Mood     *string  `json:"mood"`
	Category *string  `json:"category"`
	Score    *float64 `json:"score"`
	Date     *string  `json:"date"` // YYYY-MM-DD
}

// previewTidyRequest は保存前整形プレビューのリクエストボディ。
type previewTidyRequest struct {
	Content  string   `json:"content"`
	Title    *string  `json:"title"`
	Mood     *string  `json:"mood"`
	Category *string  `json:"category"`
	Score    *float64 `json:"score"`
	Date     *string  `json:"date"`
}

// entryResponse はエントリのAPIレスポンス。
type entryResponse struct {
	ID            string   `json:"id"`
	TitleRaw      *string  `json:"titleRaw"`
	ContentRaw    string   `json:"contentRaw"`
	TitleTidied   *string  `json:"titleTidied"`
	ContentTidied *string  `json:"contentTidied"`
	TidiedAt      *string  `json:"tidiedAt"`
	MoodLabel     *string  `json:"moodLabel"`
	MoodScore     *float64 `json:"moodScore"`
	Category      *string  `json:"category"`
	DayDate       *string  `json:"dayDate"` // YYYY-MM-DD
	WeekIndex     *int     `json:"weekIndex"`

	TitleManual    bool `json:"titleManual"`
	MoodManual     bool `json:"moodManual"`
	CategoryManual bool `json:"categoryManual"`
	DateManual     bool `json:"dateManual"`
	FullyTidied    bool `json:"fullyTidied"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// Create はエントリ作成を処理する。
// POST /api/entries
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	created, err := h.entries.Create(r.Context(), userID, entry.CreateInput{
		Content:        req.Content,
		Title:          req.Title,
		TitleTidied:    req.TitleTidied,
		ContentTidied:  req.ContentTidied,
		MoodLabel:      req.MoodLabel,
		MoodScore:      req.MoodScore,
		Category:       req.Category,
		DayDate:        req.DayDate,
		TitleManual:    req.TitleManual,
		MoodManual:     req.MoodManual,
		CategoryManual: req.CategoryManual,
		DateManual:     req.DateManual,
		MarkTidied:     req.MarkTidied,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toEntryResponse(created))
}

// List はエントリ一覧を返す。
// GET /api/entries?search=xxx&from=YYYY-MM-DD&to=YYYY-MM-DD&limit=n
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	opts := repository.EntryListOptions{
		Search: r.URL.Query().Get("search"),
	}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := dateutil.ParseISODate(from)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(from))
			return
		}
		opts.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := dateutil.ParseISODate(to)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(to))
			return
		}
		end := dateutil.EndOfDay(t)
		opts.To = &end
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limitが不正です"))
			return
		}
		opts.Limit = n
	}

	entries, err := h.entries.List(r.Context(), userID, opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponses(entries))
}

// Get はエントリ詳細を返す。
// GET /api/entries/{id}
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	e, err := h.entries.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponse(e))
}

// Patch はエントリを部分更新する。
// PATCH /api/entries/{id}
func (h *EntryHandler) Patch(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req patchEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	updated, err := h.entries.Patch(r.Context(), userID, chi.URLParam(r, "id"), entry.PatchInput{
		TitleRaw:       req.TitleRaw,
		ContentRaw:     req.ContentRaw,
		TitleTidied:    req.TitleTidied,
		ContentTidied:  req.ContentTidied,
		MoodLabel:      req.MoodLabel,
		MoodScore:      req.MoodScore,
		Category:       req.Category,
		DayDate:        req.DayDate,
		TitleManual:    req.TitleManual,
		MoodManual:     req.MoodManual,
		CategoryManual: req.CategoryManual,
		DateManual:     req.DateManual,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponse(updated))
}

// Delete はエントリを削除する。
// DELETE /api/entries/{id}
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.entries.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Tidy は保存済みエントリをAI整形する。
// POST /api/entries/{id}/tidy
func (h *EntryHandler) Tidy(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req tidyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	tidied, err := h.tidier.TidyEntry(r.Context(), userID, chi.URLParam(r, "id"), tidy.Overrides{
		Title:    req.Title,
		Mood:     req.Mood,
		Category: req.Category,
		Score:    req.Score,
		Date:     req.Date,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponse(tidied))
}

// PreviewTidy は未保存テキストの整形結果を返す。永続化はしない。
// POST /api/entries/preview-tidy
func (h *EntryHandler) PreviewTidy(w http.ResponseWriter, r *http.Request) {
	var req previewTidyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	result, err := h.tidier.Preview(r.Context(), req.Content, tidy.Overrides{
		Title:    req.Title,
		Mood:     req.Mood,
		Category: req.Category,
		Score:    req.Score,
		Date:     req.Date,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// --- ヘルパー関数 ---

// toEntryResponse はmodel.EntryからAPIレスポンスに変換する。
func toEntryResponse(e *model.Entry) entryResponse {
	resp := entryResponse{
		ID:             e.ID,
		TitleRaw:       e.TitleRaw,
		ContentRaw:     e.ContentRaw,
		TitleTidied:    e.TitleTidied,
		ContentTidied:  e.ContentTidied,
		MoodLabel:      e.MoodLabel,
		MoodScore:      e.MoodScore,
		Category:       e.Category,
		WeekIndex:      e.WeekIndex,
		TitleManual:    e.TitleManual,
		MoodManual:     e.MoodManual,
		CategoryManual: e.CategoryManual,
		DateManual:     e.DateManual,
		FullyTidied:    e.IsFullyTidied(),
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
	if e.TidiedAt != nil {
		s := e.TidiedAt.Format(time.RFC3339)
		resp.TidiedAt = &s
	}
	if e.DayDate != nil {
		s := dateutil.ToISODate(*e.DayDate)
		resp.DayDate = &s
	}
	return resp
}

// toEntryResponses はエントリのスライスをAPIレスポンスに変換する。
// nilスライスでも空配列としてシリアライズされるようにする。
func toEntryResponses(entries []*model.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return out
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeEmptyContent, model.ErrCodeInvalidRequest, model.ErrCodeInvalidDate, model.ErrCodeWeakPassword:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeLoginFailed:
		return http.StatusUnauthorized
	case model.ErrCodeEntryNotFound, model.ErrCodeInsightNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeRegistrationFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeAIUnavailable, model.ErrCodeMissingCredential:
		return http.StatusServiceUnavailable
	case model.ErrCodeTranscribeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
