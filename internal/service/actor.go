package service

import (
	"errors"
	"strings"
	"time"

	"github.com/specsflow-next/internal/config"
	"github.com/specsflow-next/internal/constants"

	"github.com/golang-jwt/jwt/v5"
)

// Actor 当前操作人，由鉴权中间件解析后显式传入各工作流操作
type Actor struct {
	ID   uint   `json:"id"`
	Role string `json:"role"`
}

var knownRoles = map[string]bool{
	constants.RoleDoctor:  true,
	constants.RoleStore:   true,
	constants.RoleFitter:  true,
	constants.RoleCourier: true,
	constants.RoleAdmin:   true,
	constants.RolePatient: true,
}

// IsKnownRole 判断角色是否受支持
func IsKnownRole(role string) bool {
	return knownRoles[strings.TrimSpace(role)]
}

// Valid 判断操作人是否完整
func (a Actor) Valid() bool {
	return a.ID != 0 && IsKnownRole(a.Role)
}

// Is 判断操作人角色
func (a Actor) Is(role string) bool {
	return a.Role == role
}

func (a Actor) idPtr() *uint {
	if a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

// ActorClaims 操作人令牌声明
type ActorClaims struct {
	ActorID uint   `json:"actor_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// ErrInvalidActorToken 令牌无效
var ErrInvalidActorToken = errors.New("invalid actor token")

// IssueActorToken 签发操作人令牌
func IssueActorToken(cfg config.JWTConfig, actor Actor, now time.Time) (string, time.Time, error) {
	if !actor.Valid() {
		return "", time.Time{}, ErrActorRequired
	}
	hours := cfg.ExpireHours
	if hours <= 0 {
		hours = 24
	}
	expiresAt := now.Add(time.Duration(hours) * time.Hour)
	claims := ActorClaims{
		ActorID: actor.ID,
		Role:    actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseActorToken 解析操作人令牌
func ParseActorToken(cfg config.JWTConfig, tokenString string) (Actor, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.SecretKey), nil
	})
	if err != nil {
		return Actor{}, err
	}
	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return Actor{}, ErrInvalidActorToken
	}
	actor := Actor{ID: claims.ActorID, Role: claims.Role}
	if !actor.Valid() {
		return Actor{}, ErrInvalidActorToken
	}
	return actor, nil
}
