// Package jwt 提供设备令牌的生成和验证功能
// 注册成功后返回给设备，设备可在后续请求中携带
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 定义错误类型
var (
	ErrInvalidToken = errors.New("invalid token")     // Token 无效
	ErrExpiredToken = errors.New("token has expired") // Token 已过期
)

const issuer = "signage-server"

// DeviceClaims 设备令牌的声明（Payload）
type DeviceClaims struct {
	DeviceID string `json:"device_id"` // 设备标识
	jwt.RegisteredClaims
}

// JWTService 设备令牌服务
type JWTService struct {
	secret []byte        // 签名密钥
	expire time.Duration // 令牌有效期
}

// NewJWTService 创建 JWTService 实例
// 参数:
//   - secret: 签名密钥
//   - expire: 设备令牌有效期
func NewJWTService(secret string, expire time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		expire: expire,
	}
}

// GenerateDeviceToken 为设备签发令牌
func (s *JWTService) GenerateDeviceToken(deviceID string, now time.Time) (string, error) {
	claims := DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expire)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   "device",
		},
	}

	// HMAC SHA256 签名
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateDeviceToken 验证设备令牌
// 返回:
//   - *DeviceClaims: 令牌中的声明信息
//   - error: 无效或已过期
func (s *JWTService) ValidateDeviceToken(tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名，防止算法替换攻击
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid || claims.Subject != "device" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
