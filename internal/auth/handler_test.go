package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"canteen-backend/internal/engine"
	"canteen-backend/internal/schema"
	"canteen-backend/internal/store"
)

const testSecret = "test-secret"

func usersEntity() *schema.Entity {
	return &schema.Entity{
		Name:      "users",
		TableName: "users",
		Fields: map[string]schema.Field{
			"email":            {Type: schema.TypeString, Format: "email", Required: true, Unique: true},
			"password":         {Type: schema.TypeString, Required: true, MinLength: 6, Hidden: true},
			"full_name":        {Type: schema.TypeString, Required: true},
			"role":             {Type: schema.TypeString, Default: "student"},
			"roll_number":      {Type: schema.TypeString},
			"year":             {Type: schema.TypeString},
			"branch":           {Type: schema.TypeString},
			"phone":            {Type: schema.TypeString},
			"profile_complete": {Type: schema.TypeBoolean, Default: false},
			"wallet_balance":   {Type: schema.TypeNumber, Default: 0.0},
		},
	}
}

func newAuthApp(t *testing.T) *fiber.App {
	t.Helper()

	s, err := store.NewSQLiteMemory(context.Background())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(s.Close)

	if err := store.NewMigrator(s).Migrate(context.Background(), usersEntity()); err != nil {
		t.Fatalf("migrate users: %v", err)
	}
	if err := s.SeedAdminUser(context.Background()); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	required, _ := Middleware(s, testSecret)
	RegisterRoutes(app, NewHandler(s, testSecret), required)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("%s %s: bad body %q", method, path, raw)
		}
	}
	return resp.StatusCode, decoded
}

func registerUser(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	status, body := call(t, app, "POST", "/api/auth/register", "", map[string]any{
		"email": email, "password": "secret123", "full_name": "Test Student",
	})
	if status != 201 {
		t.Fatalf("register: %d %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("no token in register response")
	}
	return token
}

func TestRegister(t *testing.T) {
	app := newAuthApp(t)

	status, body := call(t, app, "POST", "/api/auth/register", "", map[string]any{
		"email": "alice@campus.edu", "password": "secret123", "full_name": "Alice",
	})
	if status != 201 {
		t.Fatalf("register: %d %v", status, body)
	}

	user, _ := body["user"].(map[string]any)
	if user["role"] != "student" {
		t.Errorf("new accounts must be students, got %v", user["role"])
	}
	if _, ok := user["password"]; ok {
		t.Error("password leaked in register response")
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	app := newAuthApp(t)
	status, _ := call(t, app, "POST", "/api/auth/register", "", map[string]any{
		"email": "a@b.c", "password": "short", "full_name": "A",
	})
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	app := newAuthApp(t)
	registerUser(t, app, "alice@campus.edu")

	status, body := call(t, app, "POST", "/api/auth/register", "", map[string]any{
		"email": "alice@campus.edu", "password": "secret123", "full_name": "Alice Again",
	})
	if status != 400 {
		t.Fatalf("expected 400, got %d %v", status, body)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "DUPLICATE_USER" {
		t.Errorf("code: %v", errObj["code"])
	}
}

func TestLogin(t *testing.T) {
	app := newAuthApp(t)
	registerUser(t, app, "alice@campus.edu")

	status, body := call(t, app, "POST", "/api/auth/login", "", map[string]any{
		"email": "alice@campus.edu", "password": "secret123",
	})
	if status != 200 {
		t.Fatalf("login: %d %v", status, body)
	}
	if body["token"] == "" {
		t.Fatal("no token")
	}
	user, _ := body["user"].(map[string]any)
	if _, ok := user["password"]; ok {
		t.Error("password leaked in login response")
	}
}

func TestLoginSeededAdmin(t *testing.T) {
	app := newAuthApp(t)
	status, body := call(t, app, "POST", "/api/auth/login", "", map[string]any{
		"email": "admin@canteen.local", "password": "changeme",
	})
	if status != 200 {
		t.Fatalf("seeded admin login: %d %v", status, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["role"] != "admin" {
		t.Errorf("role: %v", user["role"])
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	app := newAuthApp(t)
	registerUser(t, app, "alice@campus.edu")

	// wrong password and unknown user are indistinguishable
	for _, body := range []map[string]any{
		{"email": "alice@campus.edu", "password": "wrong1"},
		{"email": "nobody@campus.edu", "password": "secret123"},
	} {
		status, resp := call(t, app, "POST", "/api/auth/login", "", body)
		if status != 401 {
			t.Fatalf("expected 401, got %d %v", status, resp)
		}
		errObj, _ := resp["error"].(map[string]any)
		if errObj["message"] != "Invalid credentials" {
			t.Errorf("message: %v", errObj["message"])
		}
	}
}

func TestMe(t *testing.T) {
	app := newAuthApp(t)
	token := registerUser(t, app, "alice@campus.edu")

	status, body := call(t, app, "GET", "/api/auth/me", token, nil)
	if status != 200 {
		t.Fatalf("me: %d %v", status, body)
	}
	if body["email"] != "alice@campus.edu" {
		t.Errorf("email: %v", body["email"])
	}
	if _, ok := body["password"]; ok {
		t.Error("password leaked")
	}
	if body["wallet_balance"] != float64(0) {
		t.Errorf("wallet_balance: %T %v", body["wallet_balance"], body["wallet_balance"])
	}
}

func TestMeRequiresToken(t *testing.T) {
	app := newAuthApp(t)
	if status, _ := call(t, app, "GET", "/api/auth/me", "", nil); status != 401 {
		t.Fatal("me without token should 401")
	}

	bad, _ := GenerateToken("u1", "alice@campus.edu", "other-secret")
	if status, _ := call(t, app, "GET", "/api/auth/me", bad, nil); status != 401 {
		t.Fatal("me with forged token should 401")
	}
}

func TestUpdateMe(t *testing.T) {
	app := newAuthApp(t)
	token := registerUser(t, app, "alice@campus.edu")

	status, body := call(t, app, "PUT", "/api/auth/me", token, map[string]any{
		"full_name": "Alice Lidell",
		"phone":     "9999999999",
		"role":      "admin", // not a profile field; must be ignored
	})
	if status != 200 {
		t.Fatalf("update me: %d %v", status, body)
	}
	if body["full_name"] != "Alice Lidell" {
		t.Errorf("full_name: %v", body["full_name"])
	}
	if body["phone"] != "9999999999" {
		t.Errorf("phone: %v", body["phone"])
	}
	if body["role"] != "student" {
		t.Errorf("role escalation through profile update: %v", body["role"])
	}
}

func TestUpdateMeNoProfileFields(t *testing.T) {
	app := newAuthApp(t)
	token := registerUser(t, app, "alice@campus.edu")

	status, _ := call(t, app, "PUT", "/api/auth/me", token, map[string]any{"role": "admin"})
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestIsAuthenticated(t *testing.T) {
	app := newAuthApp(t)
	token := registerUser(t, app, "alice@campus.edu")

	status, body := call(t, app, "GET", "/api/auth/is-authenticated", token, nil)
	if status != 200 {
		t.Fatalf("is-authenticated: %d", status)
	}
	if body["authenticated"] != true {
		t.Errorf("body: %v", body)
	}
}
