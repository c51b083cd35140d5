package handlers

import (
	"errors"
	"log"
	"net/http"

	"realtime-pollchat-backend/apperr"
	"realtime-pollchat-backend/auth"
	"realtime-pollchat-backend/database"
	"realtime-pollchat-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterInput defines the expected input structure for registration
type RegisterInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Mobile   string `json:"mobile" binding:"required,len=10,numeric"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginInput defines the expected input structure for login
type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 处理用户注册，密码先哈希再入库
func Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	taken, err := database.UsernameExists(ctx, input.Username)
	if err != nil {
		log.Printf("注册时检查用户名失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error registering"})
		return
	}
	if taken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Username is already taken"})
		return
	}

	exists, err := database.EmailOrMobileExists(ctx, input.Email, input.Mobile)
	if err != nil {
		log.Printf("注册时检查邮箱和手机号失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error registering"})
		return
	}
	if exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User email or mobile already exists"})
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		log.Printf("密码哈希失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error registering"})
		return
	}

	user := models.User{
		PublicID:     uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		Mobile:       input.Mobile,
		PasswordHash: hash,
	}

	if err := database.CreateUser(ctx, &user); err != nil {
		// 并发注册可能越过上面的检查，唯一索引兜底
		if errors.Is(err, apperr.ErrConflictingWrite) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Username is already taken"})
			return
		}
		log.Printf("创建用户失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error registering"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":   user.PublicID,
		"username": user.Username,
		"id":       user.ID,
	})
}

// Login 校验凭据并签发带过期时间的HS256令牌
func Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := database.GetUserByUsername(c.Request.Context(), input.Username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		log.Printf("登录时查询用户失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error logging in"})
		return
	}

	if !auth.CheckPassword(user.PasswordHash, input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		log.Printf("签发令牌失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error logging in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":   user.PublicID,
		"username": user.Username,
		"id":       user.ID,
		"token":    token,
	})
}
