package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"canvasServer/backend/internal/collab"
)

// CanvasHandler 只读的调试/运维接口，不提供任何写操作（写操作只走 WebSocket）
type CanvasHandler struct {
	svc collab.Service
	// 当前 WebSocket 连接数
	conns func() int
}

func NewCanvasHandler(svc collab.Service, conns func() int) *CanvasHandler {
	if conns == nil {
		conns = func() int { return 0 }
	}
	return &CanvasHandler{svc: svc, conns: conns}
}

func (h *CanvasHandler) Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	}
}

func (h *CanvasHandler) State() gin.HandlerFunc {
	return func(c *gin.Context) {
		st := h.svc.Stats()
		c.JSON(http.StatusOK, gin.H{
			"canvas":        st.CanvasID,
			"historyLength": st.HistoryLen,
			"redoLength":    st.RedoLen,
			"participants":  h.svc.Participants(),
			"connections":   h.conns(),
		})
	}
}

func (h *CanvasHandler) History() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"history": h.svc.History()})
	}
}

func (h *CanvasHandler) Presence() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := h.svc.Presence(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		c.JSON(http.StatusOK, gin.H{"participants": members, "count": len(members)})
	}
}

func (h *CanvasHandler) Canvases() gin.HandlerFunc {
	return func(c *gin.Context) {
		canvases, err := h.svc.Canvases(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"canvases": canvases})
	}
}
