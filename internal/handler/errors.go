package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"visitordesk/internal/visitor"
)

const (
	msgSubmitEmailFailed     = "Failed to send email."
	msgApproveEmailFailed    = "Failed to send approval email."
	msgDisapproveEmailFailed = "Failed to send disapproval email."
)

// writeError maps workflow errors to responses. notifyMsg is used for ErrNotificationFailed;
// entry, when known, adds the id or current status to the body.
func writeError(c *gin.Context, err error, notifyMsg string, entry *visitor.Entry) {
	switch {
	case errors.Is(err, visitor.ErrPhotoRequired):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Photo upload is required."})
	case errors.Is(err, visitor.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid visitor details.", "error": err.Error()})
	case errors.Is(err, visitor.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Visitor not found."})
	case errors.Is(err, visitor.ErrAlreadyDecided):
		body := gin.H{"message": "Visitor request already decided."}
		if entry != nil {
			body["status"] = entry.Status
		}
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, visitor.ErrNotificationFailed) && notifyMsg != "":
		body := gin.H{"message": notifyMsg, "error": err.Error()}
		if entry != nil {
			body["id"] = entry.ID
		}
		c.JSON(http.StatusInternalServerError, body)
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error", "error": err.Error()})
	}
}
