package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime-pollchat-backend/cache"
	"realtime-pollchat-backend/database"
	"realtime-pollchat-backend/handlers"
	"realtime-pollchat-backend/mq"
	"realtime-pollchat-backend/routes"

	"github.com/joho/godotenv"
)

func main() {
	// 加载.env（不存在时忽略）
	if err := godotenv.Load(); err == nil {
		log.Println("已加载.env配置")
	}

	// 初始化数据库连接
	if err := database.InitDB(); err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("数据库连接初始化成功")

	// 初始化Redis连接（失败时自动进入模拟模式）
	if err := cache.InitRedis(); err != nil {
		log.Printf("警告: Redis初始化失败: %v", err)
	}

	// 初始化分布式锁（依赖Redis，模拟模式下跳过）
	if !cache.IsMockMode() {
		cache.InitDistLock()
	}

	// 初始化投票事件队列（Redis不可用时退化为内存模式）
	voteQueue := mq.NewVoteQueue()
	redisClient, _ := cache.GetClient()
	if err := voteQueue.Initialize(redisClient); err != nil {
		log.Printf("警告: 投票事件队列初始化失败: %v", err)
	}

	// 创建并启动广播Hub
	handlers.InitHub()

	// 配置投票模式并注入事件队列
	handlers.SetVoteMode(os.Getenv("VOTE_MODE"))
	handlers.InitVoteQueue(voteQueue)

	// 注册投票事件消费函数：同步票数缓存并广播updatePoll
	if err := voteQueue.RegisterHandler(handlers.OnVoteRecorded); err != nil {
		log.Printf("警告: 注册投票事件处理函数失败: %v", err)
	}

	// 设置路由并启动服务器
	router := routes.SetupRouter()
	srv := routes.StartServer(router)
	log.Println("服务器启动成功")

	log.Printf("投票事件队列状态: %v", voteQueue.GetQueueStats())

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("关闭服务器...")

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 不接受新请求并等待现有请求完成
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器强制关闭: %v", err)
	}

	// 关闭队列、数据库和Redis连接
	voteQueue.Close()
	database.CloseDB()
	cache.CloseRedis()

	log.Println("服务器优雅关闭")
}
