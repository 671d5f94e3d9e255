package users_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kianh03/fraudlens/internal/users"
)

// ── Stub repo ─────────────────────────────────────────────────────────────

type tokenRecord struct {
	userID    uuid.UUID
	tokenType string
	expiresAt time.Time
	usedAt    *time.Time
}

type stubUserRepo struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*users.User
	byEmail    map[string]uuid.UUID
	byUsername map[string]uuid.UUID
	oauthLinks map[string]uuid.UUID // "provider:providerID" → userID
	tokens     map[string]*tokenRecord
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byID:       make(map[uuid.UUID]*users.User),
		byEmail:    make(map[string]uuid.UUID),
		byUsername: make(map[string]uuid.UUID),
		oauthLinks: make(map[string]uuid.UUID),
		tokens:     make(map[string]*tokenRecord),
	}
}

func (r *stubUserRepo) Create(_ context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[u.Email]; exists {
		return users.ErrDuplicateEmail
	}
	u.ID = uuid.New()
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	r.byID[u.ID] = &cp
	r.byEmail[u.Email] = u.ID
	r.byUsername[u.Username] = u.ID
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *stubUserRepo) GetByUsername(_ context.Context, username string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *stubUserRepo) GetByOAuth(_ context.Context, provider, providerID string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.oauthLinks[provider+":"+providerID]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *stubUserRepo) LinkOAuth(_ context.Context, userID uuid.UUID, provider, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oauthLinks[provider+":"+providerID] = userID
	return nil
}

func (r *stubUserRepo) SetEmailVerified(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[userID]; ok {
		u.EmailVerified = true
	}
	return nil
}

func (r *stubUserRepo) SetPasswordHash(_ context.Context, userID uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[userID]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (r *stubUserRepo) UpdatePreferences(_ context.Context, userID uuid.UUID, displayName string, alertEmails bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return users.ErrNotFound
	}
	u.DisplayName = displayName
	u.AlertEmails = alertEmails
	return nil
}

func (r *stubUserRepo) CreateVerificationToken(_ context.Context, userID uuid.UUID, token string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = &tokenRecord{userID: userID, tokenType: "email_verification", expiresAt: expires}
	return nil
}

func (r *stubUserRepo) CreatePasswordResetToken(_ context.Context, userID uuid.UUID, token string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = &tokenRecord{userID: userID, tokenType: "password_reset", expiresAt: expires}
	return nil
}

func (r *stubUserRepo) useToken(token, tokenType string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tokens[token]
	if !ok || rec.tokenType != tokenType {
		return nil, users.ErrNotFound
	}
	if rec.usedAt != nil {
		return nil, fmt.Errorf("token already used")
	}
	if time.Now().After(rec.expiresAt) {
		return nil, fmt.Errorf("token expired")
	}
	now := time.Now()
	rec.usedAt = &now
	u := r.byID[rec.userID]
	if tokenType == "email_verification" {
		u.EmailVerified = true
	}
	cp := *u
	return &cp, nil
}

func (r *stubUserRepo) UseVerificationToken(_ context.Context, token string) (*users.User, error) {
	return r.useToken(token, "email_verification")
}

func (r *stubUserRepo) UsePasswordResetToken(_ context.Context, token string) (*users.User, error) {
	return r.useToken(token, "password_reset")
}

// ── Stub mailer ───────────────────────────────────────────────────────────

type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	to, subject, body string
}

func (m *stubMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func newService(t *testing.T) (*users.UserService, *stubUserRepo, *stubMailer) {
	t.Helper()
	repo := newStubUserRepo()
	mailer := &stubMailer{}
	svc := users.NewUserService(repo, mailer, "http://localhost:3000", zap.NewNop())
	return svc, repo, mailer
}

// ── Tests ─────────────────────────────────────────────────────────────────

func TestSignup(t *testing.T) {
	svc, _, mailer := newService(t)

	u, token, err := svc.Signup(context.Background(), "alice@example.com", "hunter2!secure", "")
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "alice" {
		t.Errorf("username = %q, want slug from email", u.Username)
	}
	if u.DisplayName != "alice" {
		t.Errorf("display name should default to username, got %q", u.DisplayName)
	}
	if !u.AlertEmails {
		t.Error("alert emails should default on")
	}
	if u.EmailVerified {
		t.Error("new signup must start unverified")
	}
	if token == "" {
		t.Error("no verification token returned")
	}
	if len(mailer.sent) != 1 || !strings.Contains(mailer.sent[0].body, token) {
		t.Error("verification email missing or lacks token link")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _, _ := newService(t)
	if _, _, err := svc.Signup(context.Background(), "bob@example.com", "password1", ""); err != nil {
		t.Fatal(err)
	}
	_, _, err := svc.Signup(context.Background(), "bob@example.com", "password2", "")
	if !errors.Is(err, users.ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestSignupShortPassword(t *testing.T) {
	svc, _, _ := newService(t)
	if _, _, err := svc.Signup(context.Background(), "carol@example.com", "short", ""); err == nil {
		t.Fatal("short password accepted")
	}
}

func TestSignupUsernameCollision(t *testing.T) {
	svc, _, _ := newService(t)
	first, _, _ := svc.Signup(context.Background(), "dave@one.example", "password1", "")
	second, _, err := svc.Signup(context.Background(), "dave@two.example", "password1", "")
	if err != nil {
		t.Fatal(err)
	}
	if first.Username != "dave" || second.Username != "dave2" {
		t.Errorf("usernames = %q, %q; want dave, dave2", first.Username, second.Username)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newService(t)
	if _, _, err := svc.Signup(context.Background(), "erin@example.com", "correct-horse", ""); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Login(context.Background(), "erin@example.com", "correct-horse"); err != nil {
		t.Errorf("valid login failed: %v", err)
	}
	if _, err := svc.Login(context.Background(), "erin@example.com", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "whatever"); err == nil {
		t.Error("unknown email accepted")
	}
}

func TestLoginOAuthOnlyAccount(t *testing.T) {
	svc, _, _ := newService(t)
	u, _, err := svc.GetOrCreateFromOAuth(context.Background(), "github", "gh-1", "frank@example.com", "Frank")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(context.Background(), u.Email, "anything"); err == nil {
		t.Error("password login succeeded for OAuth-only account")
	}
}

func TestVerifyEmail(t *testing.T) {
	svc, _, _ := newService(t)
	_, token, err := svc.Signup(context.Background(), "grace@example.com", "password1", "")
	if err != nil {
		t.Fatal(err)
	}

	u, err := svc.VerifyEmail(context.Background(), token)
	if err != nil {
		t.Fatal(err)
	}
	if !u.EmailVerified {
		t.Error("email not marked verified")
	}
	if _, err := svc.VerifyEmail(context.Background(), token); err == nil {
		t.Error("token reuse accepted")
	}
	if _, err := svc.VerifyEmail(context.Background(), "bogus"); err == nil {
		t.Error("unknown token accepted")
	}
}

func TestOAuthLinksExistingAccount(t *testing.T) {
	svc, _, _ := newService(t)
	orig, _, err := svc.Signup(context.Background(), "heidi@example.com", "password1", "Heidi")
	if err != nil {
		t.Fatal(err)
	}

	linked, created, err := svc.GetOrCreateFromOAuth(context.Background(), "google", "g-7", "heidi@example.com", "Heidi G")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("existing account reported as newly created")
	}
	if linked.ID != orig.ID {
		t.Error("OAuth login created a second account for the same email")
	}
	if !linked.EmailVerified {
		t.Error("OAuth link should mark the email verified")
	}

	again, created, err := svc.GetOrCreateFromOAuth(context.Background(), "google", "g-7", "heidi@example.com", "")
	if err != nil || created || again.ID != orig.ID {
		t.Errorf("repeat OAuth login: user=%v created=%v err=%v", again, created, err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	svc, repo, mailer := newService(t)
	u, _, err := svc.Signup(context.Background(), "ivan@example.com", "old-password", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ForgotPassword(context.Background(), "ivan@example.com"); err != nil {
		t.Fatal(err)
	}
	// Silent for unknown accounts.
	if err := svc.ForgotPassword(context.Background(), "stranger@example.com"); err != nil {
		t.Errorf("unknown email leaked: %v", err)
	}

	var resetToken string
	repo.mu.RLock()
	for tok, rec := range repo.tokens {
		if rec.tokenType == "password_reset" && rec.userID == u.ID {
			resetToken = tok
		}
	}
	repo.mu.RUnlock()
	if resetToken == "" {
		t.Fatal("no reset token persisted")
	}
	if len(mailer.sent) < 2 {
		t.Fatal("reset email not sent")
	}

	if err := svc.ResetPassword(context.Background(), resetToken, "new-password"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(context.Background(), "ivan@example.com", "new-password"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	if _, err := svc.Login(context.Background(), "ivan@example.com", "old-password"); err == nil {
		t.Error("old password still valid after reset")
	}
	if err := svc.ResetPassword(context.Background(), resetToken, "another-password"); err == nil {
		t.Error("reset token reuse accepted")
	}
}

func TestUpdatePreferences(t *testing.T) {
	svc, repo, _ := newService(t)
	u, _, err := svc.Signup(context.Background(), "judy@example.com", "password1", "Judy")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdatePreferences(context.Background(), u.ID, "Judy H", false); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetByID(context.Background(), u.ID)
	if got.DisplayName != "Judy H" || got.AlertEmails {
		t.Errorf("preferences not applied: %+v", got)
	}

	if err := svc.UpdatePreferences(context.Background(), u.ID, "   ", true); err == nil {
		t.Error("blank display name accepted")
	}
}
