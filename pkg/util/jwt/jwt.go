package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SubjectAccess 访问令牌的 Subject
const SubjectAccess = "access_token"

// Config JWT 配置
type Config struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

var jwtConfig *Config

// ErrNotInitialized 未调用 Init 就解析令牌
var ErrNotInitialized = errors.New("jwt: not initialized")

// Init 初始化 JWT 配置
func Init(secret string, accessExpiryMinutes int) {
	jwtConfig = &Config{
		Secret:            secret,
		Issuer:            "course_chat",
		AccessTokenExpiry: time.Duration(accessExpiryMinutes) * time.Minute,
	}
}

// Claims 令牌中携带的身份信息
// 令牌由账号服务签发，这里只负责校验和解析
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateAccessToken 签发访问令牌
// 仅供本地联调和测试使用
func GenerateAccessToken(userID, role, name string) (string, error) {
	if jwtConfig == nil {
		return "", ErrNotInitialized
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtConfig.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtConfig.Issuer,
			Subject:   SubjectAccess,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtConfig.Secret))
}

// ParseToken 解析并验证令牌
func ParseToken(tokenString string) (*Claims, error) {
	if jwtConfig == nil {
		return nil, ErrNotInitialized
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtConfig.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
