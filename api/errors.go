package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qianlnk/werewolf-session/services"
)

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{services.ErrInvalidPhase, http.StatusConflict, "invalid_phase"},
	{services.ErrFull, http.StatusConflict, "full"},
	{services.ErrAlreadyStarted, http.StatusConflict, "already_started"},
	{services.ErrAlreadyJoined, http.StatusConflict, "already_joined"},
	{services.ErrConflict, http.StatusConflict, "conflict"},
	{services.ErrInsufficientPlayers, http.StatusUnprocessableEntity, "insufficient_players"},
	{services.ErrInvalidTarget, http.StatusUnprocessableEntity, "invalid_target"},
	{services.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{services.ErrChatUnavailable, http.StatusServiceUnavailable, "chat_unavailable"},
}

func writeError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": err.Error(), "code": e.code})
			return
		}
	}
	log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_argument"})
}
