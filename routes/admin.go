package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vehicle-service-server/middleware"
	"vehicle-service-server/models"
)

func (h *Handler) adminListBookings(c *gin.Context) {
	statuses, ok := statusQuery(c)
	if !ok {
		return
	}
	bookings, err := h.Bookings.ListAllBookings(c.Request.Context(), middleware.CurrentUserID(c), statuses...)
	respondList(c, bookings, err)
}

func (h *Handler) adminListServicers(c *gin.Context) {
	servicers, err := h.Accounts.ListServicers(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": servicers, "count": len(servicers)})
}

// adminCreateServicer creates a servicer account together with its
// directory entry
func (h *Handler) adminCreateServicer(c *gin.Context) {
	var req models.ServicerCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	servicer, err := h.Accounts.CreateServicerAccount(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Servicer created successfully",
		"data":    servicer,
	})
}

func (h *Handler) adminListUsers(c *gin.Context) {
	role := models.UserRole(c.Query("role"))
	if role != "" && !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role", "message": "role must be user, servicer or admin"})
		return
	}
	users, err := h.Accounts.ListUsers(c.Request.Context(), middleware.CurrentUserID(c), role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "count": len(users)})
}

func (h *Handler) adminDeactivateUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.Accounts.DeactivateUser(c.Request.Context(), middleware.CurrentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deactivated", "data": user})
}

func (h *Handler) adminListFeedback(c *gin.Context) {
	var servicerID uint
	if raw := c.Query("servicer_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "Invalid servicer_id", err)
			return
		}
		servicerID = uint(id)
	}
	feedback, err := h.Accounts.ListFeedback(c.Request.Context(), middleware.CurrentUserID(c), servicerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": feedback, "count": len(feedback)})
}
