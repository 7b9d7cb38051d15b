package integrations

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"canteen-backend/internal/config"
	"canteen-backend/internal/engine"
	"canteen-backend/internal/storage"
)

func newIntegrationsApp(t *testing.T, maxFileSize int64) *fiber.App {
	t.Helper()

	st, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	required := func(c *fiber.Ctx) error {
		c.Locals("principal", &engine.Principal{ID: "u1", Email: "alice@campus.edu", Role: "student"})
		return c.Next()
	}
	RegisterRoutes(app, NewHandler(st, NewMailer(config.SMTPConfig{}), maxFileSize), required)
	return app
}

func uploadRequest(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestUploadAndServe(t *testing.T) {
	app := newIntegrationsApp(t, 1024)

	body, contentType := uploadRequest(t, "menu.png", []byte("png-bytes"))
	req := httptest.NewRequest("POST", "/api/integrations/upload-file", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status %d: %s", resp.StatusCode, raw)
	}

	var result struct {
		Success      bool   `json:"success"`
		FileURL      string `json:"file_url"`
		Filename     string `json:"filename"`
		OriginalName string `json:"originalname"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.OriginalName != "menu.png" {
		t.Fatalf("result: %+v", result)
	}
	if !strings.HasSuffix(result.Filename, ".png") {
		t.Errorf("stored name keeps the extension: %s", result.Filename)
	}
	if result.Filename == "menu.png" {
		t.Error("stored name must not be the caller's name")
	}

	serveResp, err := app.Test(httptest.NewRequest("GET", result.FileURL, nil), -1)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer serveResp.Body.Close()
	if serveResp.StatusCode != 200 {
		t.Fatalf("serve status %d", serveResp.StatusCode)
	}
	served, _ := io.ReadAll(serveResp.Body)
	if string(served) != "png-bytes" {
		t.Errorf("served content: %q", served)
	}
}

func TestUploadRejectsExtension(t *testing.T) {
	app := newIntegrationsApp(t, 1024)

	body, contentType := uploadRequest(t, "malware.exe", []byte("nope"))
	req := httptest.NewRequest("POST", "/api/integrations/upload-file", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadRejectsOversize(t *testing.T) {
	app := newIntegrationsApp(t, 8)

	body, contentType := uploadRequest(t, "big.png", bytes.Repeat([]byte("x"), 64))
	req := httptest.NewRequest("POST", "/api/integrations/upload-file", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServeMissingFile(t *testing.T) {
	app := newIntegrationsApp(t, 1024)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/integrations/uploads/nope.png", nil), -1)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSendEmailMock(t *testing.T) {
	app := newIntegrationsApp(t, 1024)

	payload, _ := json.Marshal(map[string]string{
		"to": "bob@campus.edu", "subject": "Order ready", "body": "Token 12 is ready for pickup",
	})
	req := httptest.NewRequest("POST", "/api/integrations/send-email", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result["success"] != true || result["messageId"] == "" {
		t.Fatalf("result: %v", result)
	}
}

func TestSendEmailMissingFields(t *testing.T) {
	app := newIntegrationsApp(t, 1024)

	payload, _ := json.Marshal(map[string]string{"to": "bob@campus.edu"})
	req := httptest.NewRequest("POST", "/api/integrations/send-email", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
