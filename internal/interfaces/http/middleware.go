package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/auth"
)

const actorKey = "actor"

// TokenValidator validates bearer tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthMiddleware resolves the actor of a request from its bearer token
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		if authorization == "" {
			abortUnauthorized(c, "missing authorization")
			return
		}
		parts := strings.SplitN(authorization, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization")
			return
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			abortUnauthorized(c, "empty token")
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// actorFrom returns the actor resolved by AuthMiddleware
func actorFrom(c *gin.Context) workflow.Actor {
	actor, _ := c.Get(actorKey)
	a, _ := actor.(workflow.Actor)
	return a
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Success: false,
		Error:   msg,
		Code:    "unauthenticated",
	})
}
