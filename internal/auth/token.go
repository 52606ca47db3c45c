package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/inkwell-blog/apiserver/types"
)

// ErrInvalidToken covers every verification failure: missing token,
// malformed token, bad signature, expired token. Callers must not
// distinguish between them.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified subject of a request, extracted from a
// session token and threaded through the request context.
type Identity struct {
	UserID   int        `json:"id"`
	Username string     `json:"username"`
	Role     types.Role `json:"role"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == types.RoleAdmin
}

// Claims is the JWT payload carried by a session token.
type Claims struct {
	Username string     `json:"username"`
	Role     types.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer creates and verifies signed session tokens. The signing
// secret is injected once at construction, never read from ambient state.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer with the given secret and token lifetime.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token embedding the user's id, username and role,
// expiring at issuance + TTL.
func (i *Issuer) Issue(user types.User) (string, error) {
	now := i.now()
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses and validates a token and returns the identity it
// carries. Any failure yields ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (Identity, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return i.secret, nil
		},
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID < 1 {
		return Identity{}, ErrInvalidToken
	}
	if claims.Username == "" || !claims.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID:   userID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}
