package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"realtime-pollchat-backend/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是全局数据库连接
var DB *gorm.DB

// InitDB 初始化数据库连接
func InitDB() error {
	// 配置GORM
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // 慢SQL阈值
			LogLevel:                  logger.Warn, // 日志级别
			IgnoreRecordNotFoundError: true,        // 忽略ErrRecordNotFound错误
			Colorful:                  true,        // 启用彩色打印
		},
	)

	var err error

	// 从环境变量获取MySQL数据库配置
	dbUser := getEnv("DB_USER", "pollchat")
	dbPassword := getEnv("DB_PASSWORD", "pollchat")
	dbHost := getEnv("DB_HOST", "mysql")
	dbPort := getEnv("DB_PORT", "3306")
	dbName := getEnv("DB_NAME", "pollchatdb")

	// 构建DSN
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbUser, dbPassword, dbHost, dbPort, dbName)

	log.Println("使用MySQL数据库")
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true, // 将驱动错误翻译为gorm错误（重复键检测依赖它）
	})

	if err != nil {
		return fmt.Errorf("连接数据库失败: %v", err)
	}

	// 自动迁移模型
	if err := Migrate(DB); err != nil {
		return fmt.Errorf("迁移模型失败: %v", err)
	}

	// 添加一些示例数据（仅在开发模式下）
	if getEnv("ENVIRONMENT", "development") == "development" {
		createSampleData()
	}

	log.Println("数据库连接和迁移成功")
	return nil
}

// Migrate 迁移全部模型，UserVote上的(user_id, poll_id)唯一索引在这里建立
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserVote{},
		&models.Poll{},
		&models.PollOption{},
		&models.Message{},
	)
}

// createSampleData 创建示例数据
func createSampleData() {
	// 检查是否已有数据
	var count int64
	DB.Model(&models.Poll{}).Count(&count)
	if count > 0 {
		log.Println("数据库已有数据，跳过示例数据创建")
		return
	}

	log.Println("创建示例数据...")

	poll := models.Poll{
		Question: "Which investment would you prefer?",
		Options: []models.PollOption{
			{Text: "Stocks"},
			{Text: "Bonds"},
			{Text: "Real Estate"},
			{Text: "Crypto"},
		},
	}

	if err := DB.Create(&poll).Error; err != nil {
		log.Printf("创建示例投票失败: %v", err)
		return
	}

	log.Println("示例数据创建成功")
}

// CloseDB 关闭数据库连接
func CloseDB() {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("获取数据库连接失败: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("关闭数据库连接失败: %v", err)
		return
	}

	log.Println("数据库连接已关闭")
}

// getEnv 获取环境变量值或使用默认值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
