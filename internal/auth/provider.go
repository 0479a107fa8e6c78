// Package auth は外部IdP（GoTrue互換API）連携と認証のドメインロジックを提供する。
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "cleannote_session"

// Identity は外部IdP上のユーザー。
type Identity struct {
	UserID string
	Email  string
}

// Provider は外部IdPのインターフェース。
type Provider interface {
	// CreateUser はIdP上にユーザーを作成する。
	CreateUser(ctx context.Context, email, password string) (*Identity, error)

	// SignInWithPassword はパスワード認証でトークンを発行する。
	SignInWithPassword(ctx context.Context, email, password string) (string, *Identity, error)

	// VerifyToken はトークンを検証してIdP上のユーザーを返す。
	// 無効なトークンはエラーになる。
	VerifyToken(ctx context.Context, token string) (*Identity, error)

	// DeleteUser はIdP上のユーザーを削除する。登録失敗時の補償処理用。
	DeleteUser(ctx context.Context, providerUserID string) error
}

// HTTPProvider はGoTrue互換APIのHTTP実装。
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
}

// NewHTTPProvider はHTTPProviderを生成する。
func NewHTTPProvider(baseURL, serviceKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
	}
}

type providerUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CreateUser は管理APIでユーザーを作成する。メール確認済みとして扱う。
func (p *HTTPProvider) CreateUser(ctx context.Context, email, password string) (*Identity, error) {
	payload := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
	}

	var u providerUser
	if err := p.doJSON(ctx, http.MethodPost, "/admin/users", p.serviceKey, payload, &u); err != nil {
		return nil, fmt.Errorf("failed to create provider user: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("provider returned no user id")
	}
	return &Identity{UserID: u.ID, Email: u.Email}, nil
}

// SignInWithPassword はパスワードグラントでアクセストークンを取得する。
func (p *HTTPProvider) SignInWithPassword(ctx context.Context, email, password string) (string, *Identity, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
	}

	var resp struct {
		AccessToken string       `json:"access_token"`
		User        providerUser `json:"user"`
	}
	if err := p.doJSON(ctx, http.MethodPost, "/token?grant_type=password", "", payload, &resp); err != nil {
		return "", nil, fmt.Errorf("failed to sign in: %w", err)
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return "", nil, fmt.Errorf("provider returned incomplete sign-in response")
	}
	return resp.AccessToken, &Identity{UserID: resp.User.ID, Email: resp.User.Email}, nil
}

// VerifyToken はトークンでユーザー情報を引く。
func (p *HTTPProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	var u providerUser
	if err := p.doJSON(ctx, http.MethodGet, "/user", token, nil, &u); err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("provider returned no user for token")
	}
	return &Identity{UserID: u.ID, Email: u.Email}, nil
}

// DeleteUser は管理APIでユーザーを削除する。
func (p *HTTPProvider) DeleteUser(ctx context.Context, providerUserID string) error {
	if err := p.doJSON(ctx, http.MethodDelete, "/admin/users/"+providerUserID, p.serviceKey, nil, nil); err != nil {
		return fmt.Errorf("failed to delete provider user: %w", err)
	}
	return nil
}

// doJSON はJSONリクエストを送り、2xx以外をエラーにする。
// bearerが空でない場合はAuthorizationヘッダーに載せる。
func (p *HTTPProvider) doJSON(ctx context.Context, method, path, bearer string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Provider = (*HTTPProvider)(nil)
