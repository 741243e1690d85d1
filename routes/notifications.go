package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vehicle-service-server/middleware"
)

// listNotifications returns the caller's notifications, newest first.
// ?unread=true limits the list to unread ones.
func (h *Handler) listNotifications(c *gin.Context) {
	list, err := h.Accounts.ListNotifications(c.Request.Context(), middleware.CurrentUserID(c), c.Query("unread") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "count": len(list), "unread_count": unread})
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Accounts.MarkNotificationRead(c.Request.Context(), middleware.CurrentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
