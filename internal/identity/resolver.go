package identity

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/log"
)

// Claims are the JWT claims issued by the account layer.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Resolver verifies connection credentials. Viewers are allowed to
// connect without authenticating, so resolution never fails: any
// missing, malformed or expired token maps to an anonymous identity.
type Resolver struct {
	secret []byte
}

// NewResolver creates a resolver validating HS256 tokens with the
// given shared secret.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// Resolve turns an optional credential into an identity.
func (r *Resolver) Resolve(tokenString string) domain.Identity {
	if tokenString == "" {
		return domain.Identity{}
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		l := log.L()
		l.Debug().Err(err).Msg("credential rejected, connection proceeds anonymous")
		return domain.Identity{}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return domain.Identity{}
	}

	return domain.Identity{
		UserID:        claims.UserID,
		Username:      claims.Username,
		Authenticated: true,
	}
}
