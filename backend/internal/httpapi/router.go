package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"canvasServer/backend/internal/collab"
	"canvasServer/backend/internal/httpapi/handlers"
	"canvasServer/backend/internal/ws"
)

type Deps struct {
	Svc     collab.Service
	Hub     *ws.Hub
	Manager *ws.Manager
	// 允许的 Origin 前缀；为空时允许任意来源
	AllowOrigins []string
	// 静态资源目录，为空时不托管
	StaticDir string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		// 与 WebSocket 握手的 Origin 校验保持一致
		AllowOriginFunc: func(origin string) bool {
			return ws.OriginAllowed(d.AllowOrigins, origin)
		},
		AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	var conns func() int
	if d.Hub != nil {
		conns = d.Hub.ConnCount
	}
	h := handlers.NewCanvasHandler(d.Svc, conns)

	wsHandler := func(c *gin.Context) { d.Manager.WebSocketConnect(c) }
	r.GET("/ws", wsHandler)

	canvas := r.Group("/canvas")
	{
		canvas.GET("/ws", wsHandler)
		canvas.GET("/healthz", h.Health())
		canvas.GET("/state", h.State())
		canvas.GET("/history", h.History())
		canvas.GET("/presence", h.Presence())
		canvas.GET("/canvases", h.Canvases())
	}

	if d.StaticDir != "" {
		// 用 NoRoute 托管，避免和 /ws 等路由冲突
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(d.StaticDir))))
	}
	return r
}
