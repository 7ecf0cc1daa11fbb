package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course_chat_server/internal/config"
	"course_chat_server/internal/handler"
	"course_chat_server/internal/https_server"
	"course_chat_server/internal/infrastructure/logger"
	"course_chat_server/internal/infrastructure/scheduler"
	"course_chat_server/internal/infrastructure/workerpool"
	"course_chat_server/internal/service"
	"course_chat_server/internal/service/chat"
	"course_chat_server/internal/service/identity"
	"course_chat_server/pkg/constants"
	"course_chat_server/pkg/util/jwt"
	"course_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("日志初始化成功", zap.String("mode", conf.Mode))

	// 3. 初始化 ID 生成与 JWT
	machineID, derived, err := conf.NodeMachineID()
	if err != nil {
		zap.L().Fatal("雪花机器号配置错误", zap.Error(err))
	}
	if derived && conf.MessageMode == "kafka" {
		zap.L().Warn("雪花机器号由主机名派生，多节点部署请通过配置或环境变量为每个节点指定唯一值",
			zap.Int64("machine_id", machineID), zap.String("env", config.MachineIDEnv))
	}
	snowflake.Init(machineID)
	jwt.Init(conf.JWTConfig.Secret, conf.AccessTokenExpiry)
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("初始化校验翻译失败", zap.Error(err))
	}
	nodeID := nodeName(machineID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. 存储、未读计数与扇出总线
	store, closeStore, err := openStore(ctx, conf)
	if err != nil {
		zap.L().Fatal("存储初始化失败", zap.String("driver", conf.StoreDriver), zap.Error(err))
	}
	defer closeStore()
	zap.L().Info("存储初始化成功", zap.String("driver", conf.StoreDriver))

	unreadStore, closeUnread, err := openUnread(ctx, conf)
	if err != nil {
		zap.L().Fatal("未读计数初始化失败", zap.String("driver", conf.UnreadDriver), zap.Error(err))
	}
	defer closeUnread()
	zap.L().Info("未读计数初始化成功", zap.String("driver", conf.UnreadDriver))

	registry := chat.NewRegistry()
	broker, err := openBroker(conf, registry, nodeID)
	if err != nil {
		zap.L().Fatal("扇出总线初始化失败", zap.Error(err))
	}
	go func() {
		if err := broker.Run(ctx); err != nil {
			zap.L().Error("扇出总线退出", zap.Error(err))
		}
	}()
	zap.L().Info("扇出总线初始化成功", zap.String("mode", conf.MessageMode), zap.String("node_id", nodeID))

	// 5. 聊天核心与 Service 层
	pool := workerpool.New(constants.WORKER_NUM, constants.WORKER_QUEUE_SIZE)
	unread := chat.NewUnreadAggregator(unreadStore)
	chatServer := chat.NewServer(store, unread, registry, broker, pool, chat.Options{
		TypingQuiet:      conf.TypingQuiet(),
		HistoryPageSize:  conf.HistoryPageSize,
		MaxContentLength: conf.MaxContentLength,
	})
	svc := service.NewServices(store, unread, chatServer)
	auth := identity.NewAuthenticator()
	handlers := handler.NewHandlers(svc, chatServer, auth, conf.SendBufferSize)

	// 6. 定时统计
	sched := scheduler.NewScheduler(chatServer, nodeID)
	if err := sched.Start(conf.StatsCron); err != nil {
		zap.L().Fatal("定时任务注册失败", zap.String("cron", conf.StatsCron), zap.Error(err))
	}

	// 7. 启动 HTTP 服务
	engine := https_server.Init(conf, handlers, auth)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 等待信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("关闭服务器...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP 服务关闭失败", zap.Error(err))
	}
	// 已升级的 WebSocket 连接不受 http.Server 管理，需要单独关闭
	chatServer.Shutdown()
	cancel()
	sched.Stop()
	pool.Close()

	zap.L().Info("服务器已关闭")
}

// nodeName 节点标识，用于 Kafka 消费组和统计日志
func nodeName(machineID int64) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return fmt.Sprintf("%s-%d", host, machineID)
}
