// Package handler exposes the visitor workflow over HTTP.
package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"visitordesk/internal/auth"
	"visitordesk/internal/visitor"
)

// VisitorService is the workflow the handlers drive.
type VisitorService interface {
	Submit(ctx context.Context, in visitor.SubmitInput) (*visitor.Entry, error)
	ResendNotice(ctx context.Context, id string) (*visitor.Entry, error)
	Approve(ctx context.Context, in visitor.DecisionInput) (*visitor.Entry, error)
	Disapprove(ctx context.Context, in visitor.DecisionInput) (*visitor.Entry, error)
	Get(ctx context.Context, id string) (*visitor.Entry, error)
	List(ctx context.Context, filter visitor.ListFilter) ([]*visitor.Entry, error)
}

type Handler struct {
	svc         VisitorService
	frontendURL string
	maxUpload   int64
}

func New(svc VisitorService, frontendURL string, maxUpload int64) *Handler {
	return &Handler{
		svc:         svc,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		maxUpload:   maxUpload,
	}
}

// Register mounts the visitor routes on g. tokens may be nil to accept untokened links only.
func (h *Handler) Register(g *gin.RouterGroup, tokens *auth.Tokens) {
	v := g.Group("/visitor")
	v.POST("", h.Submit)
	v.GET("", h.List)

	decision := []gin.HandlerFunc{}
	if tokens != nil {
		decision = append(decision, auth.DecisionToken(tokens))
	}
	v.GET("/approve", append(decision, h.Approve)...)
	v.GET("/disapprove", append(decision, h.Disapprove)...)

	v.GET("/:id", h.Get)
	v.POST("/:id/notify", h.Notify)
}

// ---------- Submit ----------

type submitForm struct {
	Name         string `form:"name"`
	Email        string `form:"email"`
	PersonToMeet string `form:"personToMeet"`
	Purpose      string `form:"purpose"`
}

// Submit handles the front desk form: multipart fields name, email, personToMeet, purpose and photo.
func (h *Handler) Submit(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Upload is too large."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "Malformed form data.", "error": err.Error()})
		return
	}

	var form submitForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Malformed form data.", "error": err.Error()})
		return
	}

	in := visitor.SubmitInput{
		Name:         form.Name,
		Email:        form.Email,
		PersonToMeet: form.PersonToMeet,
		Purpose:      form.Purpose,
	}

	header, err := c.FormFile("photo")
	if err == nil {
		if !isImage(header) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Photo must be an image."})
			return
		}
		file, err := header.Open()
		if err != nil {
			writeError(c, err, "", nil)
			return
		}
		defer file.Close()
		in.Photo = &visitor.Photo{Filename: header.Filename, Content: file}
	}

	entry, err := h.svc.Submit(c.Request.Context(), in)
	if err != nil {
		writeError(c, err, msgSubmitEmailFailed, entry)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Visitor entry recorded and email sent for approval",
		"id":      entry.ID,
	})
}

func isImage(h *multipart.FileHeader) bool {
	return strings.HasPrefix(h.Header.Get("Content-Type"), "image/")
}

// ---------- Decisions ----------

func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, visitor.StatusApproved, h.svc.Approve)
}

func (h *Handler) Disapprove(c *gin.Context) {
	h.decide(c, visitor.StatusDisapproved, h.svc.Disapprove)
}

type decideFunc func(context.Context, visitor.DecisionInput) (*visitor.Entry, error)

func (h *Handler) decide(c *gin.Context, status visitor.Status, fn decideFunc) {
	in := visitor.DecisionInput{
		Name:    c.Query("visitor"),
		Email:   c.Query("email"),
		EntryID: c.GetString(auth.EntryIDKey),
	}
	entry, err := fn(c.Request.Context(), in)
	if err != nil {
		msg := msgApproveEmailFailed
		if status == visitor.StatusDisapproved {
			msg = msgDisapproveEmailFailed
		}
		writeError(c, err, msg, entry)
		return
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/visitor/status?status="+string(entry.Status))
}

// ---------- Read views ----------

func (h *Handler) List(c *gin.Context) {
	var filter visitor.ListFilter
	if v := c.Query("status"); v != "" {
		s := visitor.Status(strings.ToLower(v))
		filter.Status = &s
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Offset = parsed
		}
	}
	entries, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visitors": entries})
}

func (h *Handler) Get(c *gin.Context) {
	entry, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Notify resends the host notice for a pending entry.
func (h *Handler) Notify(c *gin.Context) {
	entry, err := h.svc.ResendNotice(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, msgSubmitEmailFailed, entry)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Approval email sent", "id": entry.ID})
}
