package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cleannote/internal/metrics"
	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/transcribe"
)

// defaultMaxAudioBytes は音声アップロードの最大サイズ（10MB）。
const defaultMaxAudioBytes = 10 << 20

// TranscribeHandler は音声文字起こしのHTTPハンドラー。
// transcriberがnilの場合（APIトークン未設定）は503を返す。
type TranscribeHandler struct {
	transcriber transcribe.Transcriber
	metrics     metrics.MetricsCollector
	maxBytes    int64
}

// NewTranscribeHandler はTranscribeHandlerを生成する。
// maxBytesが0以下の場合はデフォルトの上限を使う。
func NewTranscribeHandler(transcriber transcribe.Transcriber, mc metrics.MetricsCollector, maxBytes int64) *TranscribeHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxAudioBytes
	}
	return &TranscribeHandler{
		transcriber: transcriber,
		metrics:     mc,
		maxBytes:    maxBytes,
	}
}

// transcribeResponse は文字起こし結果のAPIレスポンス。
type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe は音声バイト列を文字起こしする。
// POST /api/voice/transcribe（ボディは音声データそのもの）
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewMissingCredentialError("HF_TOKEN"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	audio, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewInvalidRequestError("音声データが大きすぎます"))
		return
	}
	if len(audio) == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("音声データが空です"))
		return
	}

	text, err := h.transcriber.Transcribe(r.Context(), audio, r.Header.Get("Content-Type"))
	if err != nil {
		h.metrics.RecordTranscription(false)
		slog.Error("transcription failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewTranscribeFailedError())
		return
	}

	h.metrics.RecordTranscription(true)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transcribeResponse{Text: text})
}
