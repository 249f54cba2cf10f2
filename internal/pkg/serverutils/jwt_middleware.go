package serverutils

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// Identity is what a verified token tells us about the caller.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// IssueToken signs an HS256 token carrying user_id and role.
func IssueToken(secret string, userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies tokenStr and extracts the identity claims.
func ParseToken(secret, tokenStr string) (*Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	userIDStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("token missing user_id")
	}
	role, _ := claims["role"].(string)

	return &Identity{UserID: userID, Role: role}, nil
}

// BearerToken reads the Authorization header, falling back to ?token=
// (browsers cannot set headers on websocket upgrades).
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

// NewJwtMiddleware rejects requests without a valid bearer token and stores
// the caller's id and role in ctx.Locals.
func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			return Unauthorized("Missing token")
		}

		identity, err := ParseToken(secret, tokenStr)
		if err != nil {
			return Unauthorized("Invalid token")
		}

		ctx.Locals(LocalUserID, identity.UserID.String())
		ctx.Locals(LocalRole, identity.Role)
		return ctx.Next()
	}
}

// RequireRoles must run after the JWT middleware.
func RequireRoles(roles ...string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		role, _ := ctx.Locals(LocalRole).(string)
		for _, r := range roles {
			if r == role {
				return ctx.Next()
			}
		}
		return Forbidden("Insufficient role")
	}
}

// CurrentIdentity reads what the JWT middleware stored.
func CurrentIdentity(ctx *fiber.Ctx) (Identity, error) {
	userIDStr, _ := ctx.Locals(LocalUserID).(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return Identity{}, Unauthorized("Unauthorized")
	}
	role, _ := ctx.Locals(LocalRole).(string)
	return Identity{UserID: userID, Role: role}, nil
}
