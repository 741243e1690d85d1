package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"vehicle-service-server/middleware"
	"vehicle-service-server/models"
	"vehicle-service-server/services"
)

func (h *Handler) getServicerProfile(c *gin.Context) {
	servicer, err := h.Accounts.GetServicerProfile(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": servicer})
}

func (h *Handler) updateServicerStatus(c *gin.Context) {
	var req models.ServicerStatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	servicer, err := h.Accounts.UpdateServicerStatus(c.Request.Context(), middleware.CurrentUserID(c), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated", "data": servicer})
}

// uploadServicerImage stores the profile_image form file and saves its URL
func (h *Handler) uploadServicerImage(c *gin.Context) {
	header, err := c.FormFile("profile_image")
	if err != nil {
		badRequest(c, "No image provided", err)
		return
	}
	if !services.ValidateImageFile(header) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid image",
			"message": "profile_image must be a jpg, jpeg, png or webp file up to 5MB",
		})
		return
	}
	userID := middleware.CurrentUserID(c)
	url, err := h.Uploader.Upload(c.Request.Context(), header, fmt.Sprintf("servicers/%d", userID))
	if err != nil {
		respondError(c, err)
		return
	}
	servicer, err := h.Accounts.SetServicerImage(c.Request.Context(), userID, url)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile image updated", "data": servicer})
}

func (h *Handler) servicerWorklist(c *gin.Context) {
	statuses, ok := statusQuery(c)
	if !ok {
		return
	}
	bookings, err := h.Bookings.ListServicerWorklist(c.Request.Context(), middleware.CurrentUserID(c), statuses...)
	respondList(c, bookings, err)
}

func (h *Handler) servicerHistory(c *gin.Context) {
	bookings, err := h.Bookings.ListServicerHistory(c.Request.Context(), middleware.CurrentUserID(c))
	respondList(c, bookings, err)
}

func (h *Handler) acceptBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in models.AcceptRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	result, err := h.Bookings.AcceptBooking(c.Request.Context(), middleware.CurrentUserID(c), id, in)
	respondResult(c, "Booking accepted", result, err)
}

func (h *Handler) rejectBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in models.RejectRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	result, err := h.Bookings.RejectBooking(c.Request.Context(), middleware.CurrentUserID(c), id, in)
	respondResult(c, "Booking rejected", result, err)
}

func (h *Handler) submitDiagnosis(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in models.DiagnosisCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	result, err := h.Bookings.SubmitDiagnosis(c.Request.Context(), middleware.CurrentUserID(c), id, in)
	respondResult(c, "Diagnosis submitted", result, err)
}

func (h *Handler) addProgress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in models.ProgressCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	result, err := h.Bookings.AddProgress(c.Request.Context(), middleware.CurrentUserID(c), id, in)
	respondResult(c, "Progress added", result, err)
}

func (h *Handler) completeWork(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in models.CompleteRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	result, err := h.Bookings.CompleteWork(c.Request.Context(), middleware.CurrentUserID(c), id, in)
	respondResult(c, "Work completed", result, err)
}
