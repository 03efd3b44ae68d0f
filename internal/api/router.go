package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/vidchat_go_server/config"
	"github.com/qs3c/vidchat_go_server/internal/api/handler"
	"github.com/qs3c/vidchat_go_server/internal/api/middleware"
	"github.com/qs3c/vidchat_go_server/internal/service"
)

type Router struct {
	authHandler      *handler.AuthHandler
	chatHandler      *handler.ChatHandler
	websocketHandler *handler.WebSocketHandler
	authService      *service.AuthService
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	chatHandler *handler.ChatHandler,
	websocketHandler *handler.WebSocketHandler,
	authService *service.AuthService,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		chatHandler:      chatHandler,
		websocketHandler: websocketHandler,
		authService:      authService,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket（token 在 query string 里）
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/google-login", r.authHandler.GoogleLogin)
			auth.GET("/google", r.authHandler.GoogleAuth)
			auth.GET("/google/callback", r.authHandler.GoogleCallback)
		}

		// 对话接口需要认证且账号处于激活状态
		chat := api.Group("/chat")
		chat.Use(middleware.Auth(r.cfg.JWT.Secret))
		chat.Use(middleware.RequireActiveUser(r.authService))
		{
			chat.POST("/start", r.chatHandler.Start)
			chat.GET("/history", r.chatHandler.ListJobs)
			chat.GET("/history/:job_id", r.chatHandler.GetMessages)
			chat.GET("/job/:job_id", r.chatHandler.GetJob)
			chat.POST("/:job_id", r.chatHandler.Continue)
			chat.DELETE("/:job_id", r.chatHandler.DeleteJob)
		}
	}

	return engine
}
