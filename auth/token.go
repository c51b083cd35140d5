package auth

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken 令牌格式错误或签名无效
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired 令牌已过期
	ErrTokenExpired = errors.New("token expired")
)

// tokenTTL 与登录响应中承诺的有效期保持一致（24小时）
const tokenTTL = 24 * time.Hour

// Claims 登录令牌的声明结构
type Claims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

// secretKey 从环境变量读取签名密钥
func secretKey() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		// 本地开发默认值，生产环境必须设置JWT_SECRET
		secret = "pollchat-dev-secret"
	}
	return []byte(secret)
}

// GenerateToken 为指定用户签发HS256令牌，过期时间由嵌入的exp声明强制
func GenerateToken(userID uint) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

// ParseToken 校验令牌签名和有效期，返回其中的用户ID。
// 校验是无状态的，服务端不保存任何会话记录。
func ParseToken(tokenString string) (uint, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(token *jwt.Token) (interface{}, error) {
			return secretKey(), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrInvalidToken
	}

	if claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
