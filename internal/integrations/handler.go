package integrations

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"canteen-backend/internal/engine"
	"canteen-backend/internal/storage"
)

// Handler serves the integration endpoints: file upload/serving and email
// dispatch. All routes require an authenticated principal.
type Handler struct {
	storage     *storage.LocalStorage
	mailer      *Mailer
	maxFileSize int64
}

func NewHandler(st *storage.LocalStorage, mailer *Mailer, maxFileSize int64) *Handler {
	return &Handler{storage: st, mailer: mailer, maxFileSize: maxFileSize}
}

// allowedExtensions limits uploads to images and documents.
var allowedExtensions = map[string]bool{
	".jpeg": true, ".jpg": true, ".png": true, ".gif": true,
	".pdf": true, ".doc": true, ".docx": true,
}

// UploadFile handles POST /api/integrations/upload-file (multipart field "file").
func (h *Handler) UploadFile(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "No file uploaded")
	}
	if fileHeader.Size > h.maxFileSize {
		return engine.NewAppError("FILE_TOO_LARGE", 400, "File exceeds the maximum allowed size")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExtensions[ext] {
		return engine.NewAppError("INVALID_FILE_TYPE", 400, "Invalid file type. Only images and documents are allowed.")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Unreadable upload")
	}
	defer src.Close()

	filename := uuid.New().String() + ext
	if _, err := h.storage.Save(filename, src); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"file_url":     "/api/integrations/uploads/" + filename,
		"filename":     filename,
		"originalname": fileHeader.Filename,
		"size":         fileHeader.Size,
	})
}

// ServeUpload handles GET /api/integrations/uploads/:filename.
func (h *Handler) ServeUpload(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if !h.storage.Exists(filename) {
		return engine.NewAppError("NOT_FOUND", 404, "File not found")
	}

	f, err := h.storage.Open(filename)
	if err != nil {
		return err
	}
	return c.SendStream(f)
}

// SendEmail handles POST /api/integrations/send-email.
func (h *Handler) SendEmail(c *fiber.Ctx) error {
	var body struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if body.To == "" || body.Subject == "" || body.Body == "" {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "to, subject, and body are required")
	}

	messageID, err := h.mailer.Send(body.To, body.Subject, body.Body)
	if err != nil {
		return engine.NewAppError("EMAIL_FAILED", 500, "Failed to send email")
	}

	return c.JSON(fiber.Map{"success": true, "messageId": messageID})
}

// RegisterRoutes mounts the integration endpoints behind required auth.
func RegisterRoutes(app *fiber.App, h *Handler, required fiber.Handler) {
	grp := app.Group("/api/integrations", required)
	grp.Post("/send-email", h.SendEmail)
	grp.Post("/upload-file", h.UploadFile)
	grp.Get("/uploads/:filename", h.ServeUpload)
}
