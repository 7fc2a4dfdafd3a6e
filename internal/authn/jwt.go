package authn

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

// Claims is the JWT payload issued on login, mirroring the original
// service's sub/username/role/exp claim set.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ErrMissingToken and ErrInvalidToken are the two failure modes
// ExtractClaims reports; internal/httpapi maps both to 401.
var (
	ErrMissingToken = errors.New("authn: authorization token missing")
	ErrInvalidToken = errors.New("authn: authorization token invalid or expired")
)

// Issuer signs and verifies JWTs with a single HMAC secret, held for the
// lifetime of the process.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer constructs an Issuer. ttl is the lifetime stamped into every
// token this Issuer signs.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given user identity.
func (is *Issuer) Issue(userID, username, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(is.ttl).Unix(),
		},
		Username: username,
		Role:     role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(is.secret)
}

// Verify parses and validates a signed token, returning its claims.
func (is *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return is.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractClaims reads the Authorization: Bearer <token> header from r and
// verifies it against is.
func (is *Issuer) ExtractClaims(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, ErrMissingToken
	}
	return is.Verify(strings.TrimPrefix(header, prefix))
}
