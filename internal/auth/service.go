package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/hitoshi/cleannote/internal/model"
	"github.com/hitoshi/cleannote/internal/repository"
)

// Service は登録・ログイン・認証のサービス層。
type Service struct {
	provider Provider
	users    repository.UserRepository
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(provider Provider, users repository.UserRepository) *Service {
	return &Service{
		provider: provider,
		users:    users,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register は新規ユーザーを登録してセッショントークンを返す。
// IdP上のユーザー作成とローカル行の作成の2段階で行い、ローカル行の
// 作成に失敗した場合はIdP上のユーザーを削除して巻き戻す。
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", model.NewInvalidRequestError("メールアドレスが不正です")
	}
	if !validPassword(password) {
		return nil, "", model.NewWeakPasswordError()
	}

	identity, err := s.provider.CreateUser(ctx, email, password)
	if err != nil {
		slog.Error("IdPでのユーザー作成に失敗", "error", err)
		return nil, "", model.NewRegistrationFailedError("アカウントを作成できませんでした")
	}

	now := s.now()
	user := &model.User{
		ID:             uuid.NewString(),
		Email:          email,
		ProviderUserID: identity.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// 補償処理: ローカル行が作れなかったらIdP側に孤児を残さない
		if delErr := s.provider.DeleteUser(ctx, identity.UserID); delErr != nil {
			slog.Error("登録巻き戻しのIdPユーザー削除に失敗", "error", delErr, "provider_user_id", identity.UserID)
		}
		slog.Error("ローカルユーザー作成に失敗", "error", err)
		return nil, "", model.NewRegistrationFailedError("アカウントを作成できませんでした")
	}

	token, _, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		slog.Error("登録直後のサインインに失敗", "error", err)
		return nil, "", model.NewLoginFailedError()
	}

	slog.Info("ユーザーを登録しました", "user_id", user.ID)
	return user, token, nil
}

// Login はパスワード認証でセッショントークンを返す。
// IdP側にはいるがローカル行のないユーザーはここで補完する。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	token, identity, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		slog.Warn("サインインに失敗", "error", err)
		return nil, "", model.NewLoginFailedError()
	}

	user, err := s.users.FindByProviderUserID(ctx, identity.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		now := s.now()
		user = &model.User{
			ID:             uuid.NewString(),
			Email:          email,
			ProviderUserID: identity.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, "", fmt.Errorf("ローカルユーザーの補完に失敗しました: %w", err)
		}
	}

	return user, token, nil
}

// Authenticate はセッショントークンからローカルユーザーを解決する。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.NewUnauthorizedError()
	}

	identity, err := s.provider.VerifyToken(ctx, token)
	if err != nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.users.FindByProviderUserID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// validPassword はパスワードポリシーを検証する。
// 8文字以上で、英字と数字を両方含む必要がある。
func validPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
