package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	redisclient "github.com/brightdent/appointment-actions/internal/redis"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the resolved caller of a portal request.
type Identity struct {
	PatientID   string
	ProdentisID string
	Phone       string
	Staff       bool
}

// Claims is the payload of the signed stateless portal token.
type Claims struct {
	jwt.RegisteredClaims
	PatientID   string `json:"patient_id"`
	ProdentisID string `json:"prodentis_id"`
	Phone       string `json:"phone"`
	Staff       bool   `json:"staff,omitempty"`
}

// SessionResolver resolves an opaque session token to its stored identity.
type SessionResolver interface {
	Get(ctx context.Context, token string) (*redisclient.Session, error)
}

// Verifier accepts both portal credential formats: a signed HS256 token and
// an opaque session token held by the auth provider. Both resolve to the same
// Identity shape.
type Verifier struct {
	secret   []byte
	issuer   string
	sessions SessionResolver
}

func NewVerifier(secret []byte, issuer string, sessions SessionResolver) *Verifier {
	return &Verifier{
		secret:   secret,
		issuer:   issuer,
		sessions: sessions,
	}
}

// Verify resolves a bearer credential to an Identity. Verification has no
// side effects beyond the session TTL refresh performed by the store.
func (v *Verifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	// Signed tokens are three dot-separated segments; everything else is
	// treated as an opaque session token.
	if strings.Count(credential, ".") == 2 {
		return v.verifyJWT(credential)
	}

	return v.verifySession(ctx, credential)
}

func (v *Verifier) verifyJWT(credential string) (*Identity, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if claims.PatientID == "" {
		return nil, fmt.Errorf("%w: token has no patient_id", ErrUnauthenticated)
	}

	return &Identity{
		PatientID:   claims.PatientID,
		ProdentisID: claims.ProdentisID,
		Phone:       claims.Phone,
		Staff:       claims.Staff,
	}, nil
}

func (v *Verifier) verifySession(ctx context.Context, token string) (*Identity, error) {
	sess, err := v.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, redisclient.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	if sess.PatientID == "" {
		return nil, fmt.Errorf("%w: session has no patient_id", ErrUnauthenticated)
	}

	return &Identity{
		PatientID:   sess.PatientID,
		ProdentisID: sess.ProdentisID,
		Phone:       sess.Phone,
		Staff:       sess.Staff,
	}, nil
}
