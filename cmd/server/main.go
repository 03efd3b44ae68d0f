package main

import (
	"context"
	"fmt"
	"log"

	"github.com/qs3c/vidchat_go_server/config"
	"github.com/qs3c/vidchat_go_server/internal/agent"
	"github.com/qs3c/vidchat_go_server/internal/api"
	"github.com/qs3c/vidchat_go_server/internal/api/handler"
	"github.com/qs3c/vidchat_go_server/internal/database"
	"github.com/qs3c/vidchat_go_server/internal/pkg/history"
	"github.com/qs3c/vidchat_go_server/internal/pkg/oauth"
	"github.com/qs3c/vidchat_go_server/internal/pkg/oss"
	"github.com/qs3c/vidchat_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vidchat_go_server/internal/pkg/queue"
	"github.com/qs3c/vidchat_go_server/internal/pkg/ws"
	"github.com/qs3c/vidchat_go_server/internal/repository"
	"github.com/qs3c/vidchat_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// OSS 仅用于前端回放,初始化失败不阻塞启动
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("OSS unavailable, display video upload disabled: %v", err)
			ossClient = nil
		}
	}

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run()
	log.Println("WebSocket hub started")

	// 订阅 worker 发布的任务状态,推送给在线用户
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.StatusMessage) {
			_ = wsHub.SendToUser(msg.UserID, &ws.Message{
				Type: msg.Type,
				Data: msg,
			})
		})
		if err != nil {
			log.Printf("Status subscription stopped: %v", err)
		}
	}()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewJobRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	// 初始化 Service
	buffer := history.NewStore(rdb)
	jobQueue := queue.NewQueue(rdb, cfg.Queue.JobQueue)
	fileStore := agent.NewRuntimeFileStore(&cfg.Agent)

	authService := service.NewAuthService(userRepo, cfg)
	chatService := service.NewChatService(jobRepo, msgRepo, buffer, jobQueue, fileStore, ossClient, cfg)

	// 初始化 Handler
	stateStore := oauth.NewStateStore(rdb)
	authHandler := handler.NewAuthHandler(authService, stateStore)
	chatHandler := handler.NewChatHandler(chatService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		chatHandler,
		websocketHandler,
		authService,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
