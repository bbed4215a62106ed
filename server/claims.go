package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/topi314/gosign/internal/flags"
)

var (
	ErrMissingToken      = errors.New("missing bearer token")
	ErrMissingSubject    = errors.New("token has no subject")
	ErrUnknownPermission = func(p string) error {
		return fmt.Errorf("unknown permission: %s", p)
	}
	ErrPermissionDenied = func(p Permissions) error {
		return fmt.Errorf("permission denied: %s", p)
	}
)

type Permissions int

const (
	PermissionSign Permissions = 1 << iota
	PermissionAdmin
)

var AllPermissions = []Permissions{
	PermissionSign,
	PermissionAdmin,
}

func (p Permissions) String() string {
	var names []string
	for _, permission := range AllPermissions {
		if flags.Has(p, permission) {
			names = append(names, permission.name())
		}
	}
	return strings.Join(names, ",")
}

func (p Permissions) name() string {
	switch p {
	case PermissionSign:
		return "sign"
	case PermissionAdmin:
		return "admin"
	}
	return "unknown"
}

func ParsePermissions(names []string) (Permissions, error) {
	var permissions Permissions
outer:
	for _, name := range names {
		for _, permission := range AllPermissions {
			if permission.name() == name {
				permissions = flags.Add(permissions, permission)
				continue outer
			}
		}
		return 0, ErrUnknownPermission(name)
	}
	return permissions, nil
}

// Claims identify the caller. The subject is the user id, tokens are issued by
// the identity provider in front of gosign or by the token command.
type Claims struct {
	jwt.Claims
	Name        string      `json:"name,omitempty"`
	Permissions Permissions `json:"permissions"`
}

func (c Claims) UserID() string {
	return c.Subject
}

// DisplayName is printed below a signature.
func (c Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Subject
}

type claimsKey struct{}

func GetClaims(r *http.Request) Claims {
	claims, _ := r.Context().Value(claimsKey{}).(Claims)
	return claims
}

func SetClaims(r *http.Request, claims Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims))
}

func NewSigner(secret string) (jose.Signer, error) {
	return jose.NewSigner(jose.SigningKey{
		Algorithm: jose.HS512,
		Key:       []byte(secret),
	}, nil)
}

// NewToken issues a token for userID. A zero expiry issues a token which does not expire.
func NewToken(signer jose.Signer, userID string, name string, permissions Permissions, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Claims: jwt.Claims{
			IssuedAt: jwt.NewNumericDate(now),
			Subject:  userID,
		},
		Name:        name,
		Permissions: permissions,
	}
	if expiry > 0 {
		claims.Expiry = jwt.NewNumericDate(now.Add(expiry))
	}
	return jwt.Signed(signer).Claims(claims).CompactSerialize()
}
