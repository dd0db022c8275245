package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/qianlnk/werewolf-session/services"
)

const (
	headerParticipantID   = "X-Participant-ID"
	headerParticipantName = "X-Participant-Name"

	ctxParticipantID   = "participant_id"
	ctxParticipantName = "participant_name"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有跨域请求，生产环境中应该更严格
	},
}

// Handler 持有HTTP层依赖
type Handler struct {
	games   *services.GameManager
	sockets *services.WebSocketManager
}

// NewRouter 注册所有路由
func NewRouter(games *services.GameManager, sockets *services.WebSocketManager) *gin.Engine {
	h := &Handler{games: games, sockets: sockets}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", h.serveWS)

	api := r.Group("/api", identity())
	{
		api.POST("/sessions", h.createSession)
		api.POST("/sessions/join", h.joinByCode)
		api.GET("/sessions/:id", h.getSession)
		api.POST("/sessions/:id/join", h.joinSession)
		api.POST("/sessions/:id/leave", h.leaveSession)
		api.POST("/sessions/:id/start", h.startSession)
		api.POST("/sessions/:id/phase", h.changePhase)
		api.POST("/sessions/:id/advance", h.advancePhase)
		api.POST("/sessions/:id/night-votes", h.castNightVote)
		api.POST("/sessions/:id/day-votes", h.castDayVote)
		api.POST("/sessions/:id/night-kill", h.applyNightKill)
		api.POST("/sessions/:id/day-elimination", h.applyDayElimination)
		api.POST("/sessions/:id/announce-death", h.announceDeath)
		api.POST("/sessions/:id/announce-elimination", h.announceElimination)
		api.POST("/sessions/:id/seer", h.seerReveal)
		api.POST("/sessions/:id/witch", h.witchAction)
		api.POST("/sessions/:id/hunter", h.hunterSelect)
		api.POST("/sessions/:id/hunter/confirm", h.confirmHunterReprisal)
		api.POST("/sessions/:id/end", h.endSession)
		api.GET("/sessions/:id/factions", h.factionCounts)
		api.POST("/sessions/:id/messages", h.postMessage)
	}
	return r
}

// 设置跨域中间件
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, "+headerParticipantID+", "+headerParticipantName)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// identity 从请求头读取玩家身份，鉴权由上游完成
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerParticipantID)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少请求头 " + headerParticipantID, "code": "unauthenticated"})
			return
		}
		c.Set(ctxParticipantID, id)
		c.Set(ctxParticipantName, c.GetHeader(headerParticipantName))
		c.Next()
	}
}

func caller(c *gin.Context) string {
	return c.GetString(ctxParticipantID)
}

// serveWS 校验对局成员后升级为WebSocket连接
func (h *Handler) serveWS(c *gin.Context) {
	sessionID := c.Query("session")
	participantID := c.Query("participant")
	if sessionID == "" || participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 session 或 participant 参数", "code": "invalid_argument"})
		return
	}

	s, err := h.games.Session(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if s.Participant(participantID) == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "不是该对局的玩家", "code": "forbidden"})
		return
	}

	// 升级成功后由连接管理器接管读写
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[ws] 升级WebSocket失败: %v", err)
		return
	}
	h.sockets.RegisterConnection(sessionID, participantID, ws)
}
