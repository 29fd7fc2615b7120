package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	redisclient "github.com/brightdent/appointment-actions/internal/redis"
)

const (
	testSecret = "test-secret"
	testIssuer = "brightdent-portal"
)

type fakeSessions struct {
	sessions map[string]*redisclient.Session
}

func (f *fakeSessions) Get(ctx context.Context, token string) (*redisclient.Session, error) {
	sess, ok := f.sessions[token]
	if !ok {
		return nil, redisclient.ErrSessionNotFound
	}
	return sess, nil
}

func newTestVerifier() *Verifier {
	return NewVerifier([]byte(testSecret), testIssuer, &fakeSessions{
		sessions: map[string]*redisclient.Session{
			"opaque-ok": {
				PatientID:   "patient-7",
				ProdentisID: "PRD-000007",
				Phone:       "+48600700700",
			},
			"opaque-empty": {},
		},
	})
}

func mintToken(t *testing.T, secret string, mutate func(jwt.MapClaims)) string {
	t.Helper()

	claims := jwt.MapClaims{
		"iss":          testIssuer,
		"sub":          "patient-1",
		"patient_id":   "patient-1",
		"prodentis_id": "PRD-000001",
		"phone":        "+48600100200",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"iat":          time.Now().Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestVerify_SignedToken(t *testing.T) {
	v := newTestVerifier()

	ident, err := v.Verify(context.Background(), mintToken(t, testSecret, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if ident.PatientID != "patient-1" || ident.ProdentisID != "PRD-000001" || ident.Phone != "+48600100200" {
		t.Errorf("identity = %+v", ident)
	}
	if ident.Staff {
		t.Error("Staff = true without a staff claim")
	}
}

func TestVerify_StaffClaim(t *testing.T) {
	v := newTestVerifier()

	ident, err := v.Verify(context.Background(), mintToken(t, testSecret, func(c jwt.MapClaims) {
		c["staff"] = true
	}))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ident.Staff {
		t.Error("Staff = false with staff claim set")
	}
}

func TestVerify_RejectsBadSignedTokens(t *testing.T) {
	v := newTestVerifier()
	ctx := context.Background()

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage with dots", "a.b.c"},
		{"wrong secret", mintToken(t, "other-secret", nil)},
		{"expired", mintToken(t, testSecret, func(c jwt.MapClaims) {
			c["exp"] = time.Now().Add(-time.Hour).Unix()
		})},
		{"wrong issuer", mintToken(t, testSecret, func(c jwt.MapClaims) {
			c["iss"] = "someone-else"
		})},
		{"no patient_id", mintToken(t, testSecret, func(c jwt.MapClaims) {
			delete(c, "patient_id")
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(ctx, tc.token)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("err = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestVerify_OpaqueSession(t *testing.T) {
	v := newTestVerifier()

	ident, err := v.Verify(context.Background(), "opaque-ok")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.PatientID != "patient-7" || ident.Phone != "+48600700700" {
		t.Errorf("identity = %+v", ident)
	}
}

func TestVerify_OpaqueSessionFailures(t *testing.T) {
	v := newTestVerifier()
	ctx := context.Background()

	if _, err := v.Verify(ctx, "opaque-unknown"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("unknown session err = %v, want ErrUnauthenticated", err)
	}
	if _, err := v.Verify(ctx, "opaque-empty"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("empty session err = %v, want ErrUnauthenticated", err)
	}
}
