package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/structprep/quizd/internal/domain"
)

const identityKey = "quizd.identity"

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// identityMiddleware resolves the caller from a bearer token. A missing or
// invalid token degrades to the anonymous identity rather than rejecting
// the request: signed-out learners can still take quizzes, they just have
// no archive history of their own.
func identityMiddleware(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))

	return func(c *gin.Context) {
		c.Set(identityKey, parseIdentity(parser, secret, c.GetHeader("Authorization")))
		c.Next()
	}
}

func parseIdentity(parser *jwt.Parser, secret, header string) domain.Identity {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return domain.Anonymous
	}

	claims := &tokenClaims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.Email == "" {
		return domain.Anonymous
	}

	return domain.Identity{
		Email: claims.Email,
		Role:  claims.Role,
	}
}

func callerIdentity(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(domain.Identity); ok {
			return id
		}
	}

	return domain.Anonymous
}
