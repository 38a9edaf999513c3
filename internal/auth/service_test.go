package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/newsboard/internal/model"
	"github.com/hitoshi/newsboard/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFn func(ctx context.Context, username string) (*model.User, error)
	createFn         func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	user.ID = "new-user-id"
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// テストではbcryptのコストを最小にして高速化する
var testConfig = ServiceConfig{SessionMaxAge: 86400, BcryptCost: bcrypt.MinCost}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(hash)
}

func assertAPIErrorCode(t *testing.T, err error, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Fatalf("Code = %q, want %q", apiErr.Code, code)
	}
	return apiErr
}

// --- テスト ---

func TestValidateSignup(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		password  string
		wantField []string
	}{
		{"正常", "alice_01", "password123", nil},
		{"記号を含むユーザー名", "a.b+c-d@e", "password123", nil},
		{"キリル文字のユーザー名", "Лев", "password123", nil},
		{"ユーザー名が空", "", "password123", []string{"username"}},
		{"ユーザー名が短い", "ab", "password123", []string{"username"}},
		{"ユーザー名が長い", strings.Repeat("a", MaxUsernameLength+1), "password123", []string{"username"}},
		{"ユーザー名に空白", "al ice", "password123", []string{"username"}},
		{"パスワードが短い", "alice", "short", []string{"password"}},
		{"パスワードが長すぎる", "alice", strings.Repeat("p", MaxPasswordBytes+1), []string{"password"}},
		{"両方不正", "a", "x", []string{"username", "password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSignup(tt.username, tt.password)
			if len(errs) != len(tt.wantField) {
				t.Fatalf("errors = %v, want fields %v", errs, tt.wantField)
			}
			for _, f := range tt.wantField {
				if len(errs[f]) == 0 {
					t.Errorf("expected error on field %q, got %v", f, errs)
				}
			}
		})
	}
}

func TestSignup_CreatesUserAndSession(t *testing.T) {
	ctx := context.Background()

	var created *model.User
	var savedSession *model.Session
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			user.ID = "user-1"
			created = user
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			savedSession = session
			return nil
		},
	}

	svc := NewService(userRepo, sessionRepo, testConfig)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return now }

	user, session, err := svc.Signup(ctx, "  alice  ", "password123")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if user.Username != "alice" {
		t.Errorf("username = %q, want trimmed alice", user.Username)
	}
	if created.PasswordHash == "password123" {
		t.Error("password must be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
	if savedSession == nil || session.UserID != "user-1" {
		t.Fatalf("session = %+v, want session for user-1", session)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if want := now.Add(86400 * time.Second); !session.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, want)
	}
}

func TestSignup_InvalidInput_DoesNotCreateUser(t *testing.T) {
	called := false
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			called = true
			return nil
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, testConfig)

	_, _, err := svc.Signup(context.Background(), "a", "short")
	apiErr := assertAPIErrorCode(t, err, model.ErrCodeInvalidSignup)
	if len(apiErr.FieldErrors["username"]) == 0 || len(apiErr.FieldErrors["password"]) == 0 {
		t.Errorf("FieldErrors = %v", apiErr.FieldErrors)
	}
	if called {
		t.Error("user must not be created for invalid input")
	}
}

func TestSignup_DuplicateUsername(t *testing.T) {
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicateUsername
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, testConfig)

	_, _, err := svc.Signup(context.Background(), "alice", "password123")
	apiErr := assertAPIErrorCode(t, err, model.ErrCodeDuplicateUsername)
	if len(apiErr.FieldErrors["username"]) == 0 {
		t.Error("expected username field error")
	}
}

func TestLogin_ValidCredentials(t *testing.T) {
	hash := hashPassword(t, "password123")
	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			if username != "alice" {
				return nil, nil
			}
			return &model.User{ID: "user-1", Username: "alice", PasswordHash: hash}, nil
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, testConfig)

	user, session, err := svc.Login(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.ID != "user-1" || session.UserID != "user-1" {
		t.Errorf("user = %+v session = %+v", user, session)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	hash := hashPassword(t, "password123")
	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			if username != "alice" {
				return nil, nil
			}
			return &model.User{ID: "user-1", Username: "alice", PasswordHash: hash}, nil
		},
	}
	sessionCreated := false
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			sessionCreated = true
			return nil
		},
	}
	svc := NewService(userRepo, sessionRepo, testConfig)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"パスワード誤り", "alice", "wrong-password"},
		{"存在しないユーザー", "bob", "password123"},
		{"空入力", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Login(context.Background(), tt.username, tt.password)
			assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
		})
	}
	if sessionCreated {
		t.Error("session must not be created on failed login")
	}
}

func TestLogin_RepositoryError(t *testing.T) {
	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return nil, errors.New("db error")
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, testConfig)

	_, _, err := svc.Login(context.Background(), "alice", "password123")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("repository failure should not be reported as %s", apiErr.Code)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	ctx := context.Background()

	var deletedSessionID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedSessionID = id
			return nil
		},
	}

	svc := NewService(nil, sessionRepo, testConfig)

	if err := svc.Logout(ctx, "session-to-delete"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deletedSessionID != "session-to-delete" {
		t.Errorf("deleted session ID = %q, want %q", deletedSessionID, "session-to-delete")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc := NewService(nil, nil, testConfig)

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	userID := "user-id-123"

	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: "session-valid", UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: userID, Username: "alice"}, nil
		},
	}

	svc := NewService(userRepo, sessionRepo, testConfig)

	user, err := svc.GetCurrentUser(context.Background(), "session-valid")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.ID != userID {
		t.Errorf("user ID = %q, want %q", user.ID, userID)
	}
}

func TestGetCurrentUser_ExpiredSession_ReturnsError(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			// 期限切れセッション -> リポジトリはnilを返す
			return nil, nil
		},
	}

	svc := NewService(nil, sessionRepo, testConfig)

	if _, err := svc.GetCurrentUser(context.Background(), "expired-session"); err == nil {
		t.Fatal("expected error for expired session")
	}
}

func TestGetCurrentUser_DeletedUser_ReturnsUserNotFound(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "gone"}, nil
		},
	}
	svc := NewService(&mockUserRepo{}, sessionRepo, testConfig)

	_, err := svc.GetCurrentUser(context.Background(), "s")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestGenerateSessionID_Unique(t *testing.T) {
	a, err := generateSessionID()
	if err != nil {
		t.Fatalf("generateSessionID() error = %v", err)
	}
	b, _ := generateSessionID()
	if a == b {
		t.Error("session IDs should differ")
	}
}
