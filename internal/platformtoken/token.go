// Package platformtoken reads and writes the identity tokens issued by the
// host platform. The host signs them with a shared HMAC secret; the store
// verifies them and the client only reads the claims.
package platformtoken

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrNoUser is returned for a well-formed token that carries no positive user id.
var ErrNoUser = errors.New("token has no verified user")

// Claims is the token payload.
type Claims struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	jwtlib.RegisteredClaims
}

// Sign creates an HS256 token for the given claims valid for ttl.
func Sign(secret []byte, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwtlib.NewNumericDate(now)
	claims.ExpiresAt = jwtlib.NewNumericDate(now.Add(ttl))
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse validates a token string and returns the claims.
func Parse(secret []byte, tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.FID <= 0 {
		return nil, ErrNoUser
	}
	return claims, nil
}

// ReadClaims decodes the claims without checking the signature. The client
// uses it to learn who the host says the user is; the store still verifies
// the token on every write.
func ReadClaims(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.FID <= 0 {
		return nil, ErrNoUser
	}
	return claims, nil
}
