// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"amara-go/internal/config"
	"amara-go/internal/handler"
	"amara-go/internal/middleware"
	"amara-go/internal/relay"
	"amara-go/internal/repository"
	"amara-go/internal/scheduler"
	"amara-go/internal/service"
	"amara-go/pkg/database"
	"amara-go/pkg/kafka"
	"amara-go/pkg/llm"
	"amara-go/pkg/log"
	"amara-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	producer := kafka.NewProducer(cfg.Kafka)

	// 4. 初始化 Repository
	chatRepo := repository.NewChatRepository(database.DB, database.RDB)
	messageRepo := repository.NewMessageRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret)
	llmClient := llm.NewClient(cfg.LLM)
	hub := relay.NewHub()
	companionService := service.NewCompanionService(messageRepo, llmClient, cfg.Nudge.CompanionWindow)
	messageService := service.NewMessageService(messageRepo, companionService, hub, producer)
	nudgeService := service.NewNudgeService(chatRepo, messageRepo, llmClient, hub, producer, cfg.Nudge.HistoryWindow)

	// 6. 启动 Nudge 分析调度器
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	sched := scheduler.New(time.Duration(cfg.Nudge.IntervalMinutes)*time.Minute, nudgeService.RunAll)
	sched.Start(schedCtx)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	r.GET("/", handler.Health)
	r.GET("/ws/:token", handler.NewChatHandler(hub, messageService, jwtManager).Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停调度器，避免停机期间再发起新一轮分析
	cancelSched()

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
