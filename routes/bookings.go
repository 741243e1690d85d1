package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vehicle-service-server/middleware"
	"vehicle-service-server/models"
	"vehicle-service-server/services"
	"vehicle-service-server/store"
)

func (h *Handler) searchServicers(c *gin.Context) {
	filter := store.ServicerFilter{
		WorkType:      c.Query("work_type"),
		Location:      c.Query("location"),
		AvailableOnly: c.Query("available") == "true",
	}
	servicers, err := h.Bookings.SearchServicers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": servicers, "count": len(servicers)})
}

// createBooking accepts JSON or a multipart form carrying an optional
// vehicle_photo file.
func (h *Handler) createBooking(c *gin.Context) {
	var in models.BookingCreate
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	userID := middleware.CurrentUserID(c)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if header, err := c.FormFile("vehicle_photo"); err == nil {
			if !services.ValidateImageFile(header) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "Invalid image",
					"message": "vehicle_photo must be a jpg, jpeg, png or webp file up to 5MB",
				})
				return
			}
			if err := h.Bookings.ValidateBookingRequest(c.Request.Context(), userID, in); err != nil {
				respondError(c, err)
				return
			}
			url, err := h.Uploader.Upload(c.Request.Context(), header, fmt.Sprintf("vehicles/%d", userID))
			if err != nil {
				respondError(c, err)
				return
			}
			in.VehiclePhoto = &url
		}
	}

	booking, err := h.Bookings.CreateBooking(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Service request submitted",
		"data":    booking,
	})
}

func (h *Handler) listMyBookings(c *gin.Context) {
	statuses, ok := statusQuery(c)
	if !ok {
		return
	}
	bookings, err := h.Bookings.ListUserBookings(c.Request.Context(), middleware.CurrentUserID(c), statuses...)
	respondList(c, bookings, err)
}

func (h *Handler) listPendingPayments(c *gin.Context) {
	bookings, err := h.Bookings.ListPendingPayments(c.Request.Context(), middleware.CurrentUserID(c))
	respondList(c, bookings, err)
}

func (h *Handler) listWorkHistory(c *gin.Context) {
	bookings, err := h.Bookings.ListWorkHistory(c.Request.Context(), middleware.CurrentUserID(c))
	respondList(c, bookings, err)
}

func respondList(c *gin.Context, bookings []models.Booking, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
}

// getBooking returns the booking with its timeline, plus the diagnosis or
// feedback when the booking's status shows them.
func (h *Handler) getBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.Bookings.GetBookingView(c.Request.Context(), middleware.CurrentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (h *Handler) getDiagnosis(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	diagnosis, err := h.Bookings.DiagnosisFor(c.Request.Context(), middleware.CurrentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": diagnosis})
}

func (h *Handler) listProgress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	entries, err := h.Bookings.ListProgress(c.Request.Context(), middleware.CurrentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}

func (h *Handler) listStatusEvents(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	events, err := h.Bookings.ListStatusEvents(c.Request.Context(), middleware.CurrentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events, "count": len(events)})
}

func (h *Handler) approveDiagnosis(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.Bookings.ApproveDiagnosis(c.Request.Context(), middleware.CurrentUserID(c), id)
	respondResult(c, "Diagnosis approved", result, err)
}

func (h *Handler) processPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.Bookings.ProcessPayment(c.Request.Context(), middleware.CurrentUserID(c), id)
	respondResult(c, "Payment recorded", result, err)
}

func (h *Handler) submitFeedback(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in models.FeedbackCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	result, err := h.Bookings.SubmitFeedback(c.Request.Context(), middleware.CurrentUserID(c), id, in)
	respondResult(c, "Thank you for your feedback", result, err)
}
