package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/djeeyo/nmreggae/internal/auth"
	"github.com/djeeyo/nmreggae/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AdminHandler serves the admin login, CSV upload and backup endpoints
type AdminHandler struct {
	service *services.EventService
	auth    *auth.Authenticator
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service *services.EventService, authenticator *auth.Authenticator) *AdminHandler {
	return &AdminHandler{service: service, auth: authenticator}
}

type loginRequest struct {
	Password string `json:"password" form:"password"`
}

// Login handles POST /admin/login and exchanges the password for a session
func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		WriteError(c, NewValidationError("Invalid request body"))
		return
	}

	if !h.auth.CheckPassword(req.Password) {
		log.Warn().Str("client_ip", c.ClientIP()).Msg("admin login failed")
		WriteError(c, ErrUnauthorized)
		return
	}

	token, expiresAt, err := h.auth.IssueSession()
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// UploadCSV handles POST /admin/csv-upload. With preview=true the parsed
// events are returned without touching the store; otherwise they replace
// every stored event.
func (h *AdminHandler) UploadCSV(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		log.Debug().Err(err).Msg("csv upload without file")
		WriteError(c, ErrNoFile)
		return
	}
	defer file.Close()

	if c.PostForm("preview") == "true" {
		result, err := h.service.PreviewCSV(c.Request.Context(), file)
		if err != nil {
			WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"events":  result.Events,
			"count":   result.Count,
			"preview": true,
		})
		return
	}

	result, err := h.service.ReplaceFromCSV(c.Request.Context(), file)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   result.Count,
		"backup":  result.Previous,
		"message": fmt.Sprintf("Successfully uploaded %d events", result.Count),
	})
}

// Backup handles GET /admin/backup and streams every event as CSV
func (h *AdminHandler) Backup(c *gin.Context) {
	var buf bytes.Buffer
	count, err := h.service.ExportCSV(c.Request.Context(), &buf)
	if err != nil {
		WriteError(c, err)
		return
	}

	log.Info().Int("count", count).Msg("backup downloaded")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, h.service.BackupFilename()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
