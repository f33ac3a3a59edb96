package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/notify"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	username string
	email    string
	password string
	role     domain.Role
	plan     string
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		username: "testuser_" + suffix,
		email:    fmt.Sprintf("testuser_%s@example.com", suffix),
		password: "testpassword123",
		role:     domain.RoleUser,
		plan:     domain.PlanFreemium,
	}
}

// WithUsername sets the username
func (b *UserBuilder) WithUsername(username string) *UserBuilder {
	b.username = username
	return b
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// WithRole sets the role
func (b *UserBuilder) WithRole(role domain.Role) *UserBuilder {
	b.role = role
	return b
}

// WithPlan subscribes the user to the named plan. An empty name leaves the user without a plan.
func (b *UserBuilder) WithPlan(name string) *UserBuilder {
	b.plan = name
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     b.username,
		Email:        strings.ToLower(b.email),
		PasswordHash: string(hashedPassword),
		Role:         b.role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if b.plan != "" {
		var plan domain.SubscriptionPlan
		if err := db.Where("name = ?", b.plan).First(&plan).Error; err != nil {
			t.Fatalf("failed to find plan %s: %v", b.plan, err)
		}
		user.PlanID = &plan.ID
		user.Plan = &plan
	}

	if err := db.Omit("Plan").Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	Message string `json:"message"`
	User    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	} `json:"user"`
	Token string `json:"token"`
	Next  string `json:"next"`
}

// BuildAndAuthenticate registers the user via the API, completes the first
// login verification through the captured mailbox, and returns the user and
// its token. Later logins from the default test client are trusted.
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	resp := postJSON(t, ts.APIURL("/auth/register"), map[string]string{
		"username": b.username,
		"email":    b.email,
		"password": b.password,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:       userID,
		Username: authResp.User.Username,
		Email:    authResp.User.Email,
		Role:     domain.RoleUser,
	}

	if b.role != domain.RoleUser {
		if err := ts.Repos.User.UpdateRole(context.Background(), user.Email, b.role); err != nil {
			t.Fatalf("failed to set role: %v", err)
		}
		user.Role = b.role
	}

	return user, Login(t, ts, user.Email, b.password)
}

// Login logs in through the API, answering a verification challenge with the
// code captured by the test mailbox, and returns the token.
func Login(t *testing.T, ts *TestServer, email, password string) string {
	t.Helper()

	resp := postJSON(t, ts.APIURL("/auth/login"), map[string]string{
		"identifier": email,
		"password":   password,
	})
	defer resp.Body.Close()

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if authResp.Token != "" {
		return authResp.Token
	}
	if authResp.Next == "" {
		t.Fatalf("login failed with status %d", resp.StatusCode)
	}

	code, ok := ts.Mailbox.LastCode(notify.KindLoginCode, strings.ToLower(email))
	if !ok {
		t.Fatalf("no login code sent to %s", email)
	}

	verify := postJSON(t, ts.APIURL("/auth/verify-login"), map[string]string{
		"email": email,
		"code":  code,
	})
	defer verify.Body.Close()

	var verified AuthResponse
	if err := json.NewDecoder(verify.Body).Decode(&verified); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if verified.Token == "" {
		t.Fatalf("verification failed with status %d", verify.StatusCode)
	}
	return verified.Token
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		t.Fatalf("request to %s failed: %v", url, err)
	}
	return resp
}

// DraftBuilder creates test drafts
type DraftBuilder struct {
	owner     *domain.User
	title     string
	content   string
	platform  string
	generated bool
	updatedAt time.Time
}

// NewDraftBuilder creates a new DraftBuilder with default values
func NewDraftBuilder() *DraftBuilder {
	return &DraftBuilder{
		title:     domain.DefaultDraftTitle,
		content:   "draft content",
		platform:  domain.DefaultDraftPlatform,
		updatedAt: time.Now(),
	}
}

// WithOwner sets the owning user
func (b *DraftBuilder) WithOwner(user *domain.User) *DraftBuilder {
	b.owner = user
	return b
}

// WithTitle sets the title
func (b *DraftBuilder) WithTitle(title string) *DraftBuilder {
	b.title = title
	return b
}

// WithContent sets the content
func (b *DraftBuilder) WithContent(content string) *DraftBuilder {
	b.content = content
	return b
}

// WithUpdatedAt sets the last update time
func (b *DraftBuilder) WithUpdatedAt(t time.Time) *DraftBuilder {
	b.updatedAt = t
	return b
}

// Generated marks the draft as model output
func (b *DraftBuilder) Generated() *DraftBuilder {
	b.generated = true
	return b
}

// Build creates the draft in the database
func (b *DraftBuilder) Build(t *testing.T, db *gorm.DB) *domain.Draft {
	t.Helper()

	if b.owner == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.owner = user
	}

	draft := &domain.Draft{
		ID:        uuid.New(),
		UserID:    b.owner.ID,
		Title:     b.title,
		Content:   b.content,
		Platform:  b.platform,
		Generated: b.generated,
		CreatedAt: b.updatedAt,
		UpdatedAt: b.updatedAt,
	}

	if err := db.Create(draft).Error; err != nil {
		t.Fatalf("failed to create draft: %v", err)
	}

	return draft
}

// SeedUsage appends count ledger rows for user at the given time.
func SeedUsage(t *testing.T, db *gorm.DB, user *domain.User, model string, count int, at time.Time) []*domain.AIUsage {
	t.Helper()

	rows := make([]*domain.AIUsage, count)
	for i := 0; i < count; i++ {
		rows[i] = &domain.AIUsage{
			ID:         uuid.New(),
			UserID:     user.ID,
			Model:      model,
			TokensUsed: 100,
			CostUSD:    0.00005,
			CreatedAt:  at,
		}
		if err := db.Create(rows[i]).Error; err != nil {
			t.Fatalf("failed to create usage: %v", err)
		}
	}
	return rows
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// Do sends req with the default client.
func Do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() {
		resp.Body.Close()
	})
	return resp
}
