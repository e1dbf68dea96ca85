package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"likes-hub/internal/api/sanitize"
	"likes-hub/internal/service"
)

const apiVersion = "1.0.0"

type PlayerHandler struct {
	players *service.PlayerService
}

func NewPlayerHandler(players *service.PlayerService) *PlayerHandler {
	return &PlayerHandler{players: players}
}

func (h *PlayerHandler) Info(c *gin.Context) {
	player, err := h.players.Lookup(sanitize.Text(c.Query("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid account id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "player": player})
}

func (h *PlayerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"updating":  false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   apiVersion,
	})
}
