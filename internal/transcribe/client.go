// Package transcribe はHugging Face router経由の音声文字起こしを提供する。
//
// 推論側のContent-Type判定が不安定なため、クライアントのヒントを先頭に
// 既知のContent-Typeを順に試し、最初に使える応答が得られたものを採用する。
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// defaultEndpoint は本番のwhisperエンドポイント。
const defaultEndpoint = "https://router.huggingface.co/hf-inference/models/openai/whisper-large-v3"

// rankedContentTypes は試行順のContent-Type一覧。
var rankedContentTypes = []string{
	"audio/m4a",
	"audio/mp4",
	"audio/x-m4a",
	"audio/wav",
	"audio/flac",
	"audio/ogg",
	"audio/webm",
	"application/octet-stream",
}

// Transcriber は音声バイト列をテキストに変換するインターフェース。
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentTypeHint string) (string, error)
}

// Client はHugging Face routerのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
}

// NewClient はClientを生成する。
func NewClient(token string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   defaultEndpoint,
		token:      token,
	}
}

// SetEndpoint はAPIエンドポイントを差し替える。テスト用。
func (c *Client) SetEndpoint(u string) {
	c.endpoint = u
}

// Transcribe は音声を文字起こしする。
// クライアントのContent-Typeヒントを最優先で試し、失敗したら既知の
// Content-Typeを順に試す。すべて失敗した場合は最後の失敗理由を返す。
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentTypeHint string) (string, error) {
	if c.token == "" {
		return "", fmt.Errorf("transcribe: API token is not configured")
	}

	var lastErr error
	for _, ct := range candidateContentTypes(contentTypeHint) {
		text, err := c.tryOnce(ctx, audio, ct)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			slog.Debug("文字起こし試行に失敗、次のContent-Typeへ", "content_type", ct, "error", err)
			lastErr = err
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("transcription failed for all content types: %w", lastErr)
}

// candidateContentTypes はヒントを先頭にした重複なしの試行リストを返す。
func candidateContentTypes(hint string) []string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if i := strings.IndexByte(hint, ';'); i >= 0 {
		hint = strings.TrimSpace(hint[:i])
	}

	if hint == "" {
		return rankedContentTypes
	}
	out := []string{hint}
	for _, ct := range rankedContentTypes {
		if ct != hint {
			out = append(out, ct)
		}
	}
	return out
}

// tryOnce は1つのContent-Typeで文字起こしを試みる。
func (c *Client) tryOnce(ctx context.Context, audio []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create transcribe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read transcribe response: %w", err)
	}

	// 非JSON応答は形式不一致とみなして次の候補に進む
	if !json.Valid(body) {
		return "", fmt.Errorf("non-JSON response (status %d)", resp.StatusCode)
	}

	var payload struct {
		Text          string `json:"text"`
		Transcription string `json:"transcription"`
		Error         string `json:"error"`
		Results       []struct {
			Text string `json:"text"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode transcribe response: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("provider error: %s", payload.Error)
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		text = strings.TrimSpace(payload.Transcription)
	}
	if text == "" && len(payload.Results) > 0 {
		text = strings.TrimSpace(payload.Results[0].Text)
	}
	if text == "" {
		return "", fmt.Errorf("response contains no transcript text")
	}
	return text, nil
}

var _ Transcriber = (*Client)(nil)
