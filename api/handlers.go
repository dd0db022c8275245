package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qianlnk/werewolf-session/models"
	"github.com/qianlnk/werewolf-session/services"
)

type targetRequest struct {
	Target string `json:"target" binding:"required"`
}

// respond 按调用者身份返回对局视图
func (h *Handler) respond(c *gin.Context, status int, s *models.Session) {
	c.JSON(status, services.NewSessionView(s, caller(c)))
}

func (h *Handler) createSession(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Capacity int    `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.games.CreateSession(c.Request.Context(), caller(c), c.GetString(ctxParticipantName), req.Name, req.Capacity)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, s)
}

func (h *Handler) getSession(c *gin.Context) {
	view, err := h.games.View(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	// 视图已按调用者脱敏
	c.JSON(http.StatusOK, view)
}

func (h *Handler) joinByCode(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.games.JoinByCode(c.Request.Context(), req.Code, caller(c), c.GetString(ctxParticipantName))
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) joinSession(c *gin.Context) {
	s, err := h.games.JoinSession(c.Request.Context(), c.Param("id"), caller(c), c.GetString(ctxParticipantName))
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

// leaveSession 法官离开时对局被删除
func (h *Handler) leaveSession(c *gin.Context) {
	deleted, err := h.games.LeaveSession(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) startSession(c *gin.Context) {
	s, err := h.games.StartSession(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) changePhase(c *gin.Context) {
	var req struct {
		Phase models.Phase `json:"phase" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.games.ChangePhase(c.Request.Context(), c.Param("id"), caller(c), req.Phase)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) advancePhase(c *gin.Context) {
	s, err := h.games.AdvancePhase(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) castNightVote(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tally, err := h.games.CastNightVote(c.Request.Context(), c.Param("id"), caller(c), req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tally": tally})
}

func (h *Handler) castDayVote(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tally, err := h.games.CastDayVote(c.Request.Context(), c.Param("id"), caller(c), req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tally": tally})
}

func (h *Handler) applyNightKill(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.games.ApplyNightKill(c.Request.Context(), c.Param("id"), caller(c), req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) applyDayElimination(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.games.ApplyDayElimination(c.Request.Context(), c.Param("id"), caller(c), req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) announceDeath(c *gin.Context) {
	s, err := h.games.AnnounceDeath(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) announceElimination(c *gin.Context) {
	s, err := h.games.AnnounceElimination(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) seerReveal(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.games.SeerReveal(c.Request.Context(), c.Param("id"), caller(c), req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": req.Target, "role": role})
}

func (h *Handler) witchAction(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required,oneof=save kill"`
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var (
		s   *models.Session
		err error
	)
	switch req.Action {
	case "save":
		s, err = h.games.WitchSave(c.Request.Context(), c.Param("id"), caller(c), req.Target)
	case "kill":
		s, err = h.games.WitchKill(c.Request.Context(), c.Param("id"), caller(c), req.Target)
	default:
		badRequest(c, fmt.Errorf("unknown witch action %q", req.Action))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) hunterSelect(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.games.HunterSelect(c.Request.Context(), c.Param("id"), caller(c), req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) confirmHunterReprisal(c *gin.Context) {
	s, err := h.games.ConfirmHunterReprisal(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) endSession(c *gin.Context) {
	var req struct {
		Winner models.Faction `json:"winner"`
	}
	// 请求体可选；分块传输时 ContentLength 为 -1，只能靠 io.EOF 判断
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	s, err := h.games.EndSession(c.Request.Context(), c.Param("id"), caller(c), req.Winner)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h *Handler) factionCounts(c *gin.Context) {
	s, err := h.games.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !s.IsNarrator(caller(c)) && s.Status != models.StatusFinished {
		writeError(c, fmt.Errorf("%w: faction counts are for the narrator", services.ErrForbidden))
		return
	}
	c.JSON(http.StatusOK, services.CountFactions(s))
}

func (h *Handler) postMessage(c *gin.Context) {
	var req struct {
		Text    string         `json:"text" binding:"required"`
		Channel models.Channel `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.games.PostMessage(c.Request.Context(), c.Param("id"), caller(c), req.Text, req.Channel)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
