package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"studioboard/board"
)

const testSecret = "test-secret"

func testAuth(t *testing.T, managers []string) *Auth {
	t.Helper()
	t.Setenv(envAuth0TestMode, "1")
	t.Setenv(envTestJWTSecret, testSecret)
	return NewAuth(nil, "", "", managers)
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestSessionFromAuthHeader(t *testing.T) {
	a := testAuth(t, []string{"lead@studio.test"})
	token := signedToken(t, jwt.MapClaims{
		"sub":     "auth0|123",
		"email":   "dana@studio.test",
		"name":    "Dana",
		"picture": "https://img/dana.png",
	})

	sess, err := a.SessionFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	if sess.Email != "dana@studio.test" || sess.Name != "Dana" || sess.Avatar != "https://img/dana.png" {
		t.Fatalf("session: %#v", sess)
	}
	if sess.Role != board.RoleDesigner {
		t.Fatalf("role = %s, want designer", sess.Role)
	}
}

func TestSessionManagerAllowList(t *testing.T) {
	a := testAuth(t, []string{"Lead@Studio.Test"})
	token := signedToken(t, jwt.MapClaims{"sub": "auth0|1", "email": "lead@studio.test", "name": "Lead"})

	sess, err := a.SessionFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	if sess.Role != board.RoleManager {
		t.Fatalf("role = %s, want manager", sess.Role)
	}
}

func TestSessionFallsBackToSub(t *testing.T) {
	a := testAuth(t, nil)
	token := signedToken(t, jwt.MapClaims{"sub": "auth0|123"})

	sess, err := a.SessionFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	if sess.Email != "auth0|123" || sess.Name != "auth0|123" {
		t.Fatalf("session: %#v", sess)
	}
}

func TestSessionRejectsBadHeaders(t *testing.T) {
	a := testAuth(t, nil)
	for _, h := range []string{
		"",
		"Bearer ",
		"Basic abc",
		"Bearer not-a-jwt",
		"Bearer one.part",
	} {
		if _, err := a.SessionFromAuthHeader(h); err == nil {
			t.Fatalf("header %q must be rejected", h)
		}
	}
}

func TestSessionRejectsExpiredToken(t *testing.T) {
	a := testAuth(t, nil)
	token := signedToken(t, jwt.MapClaims{
		"sub": "auth0|123",
		"exp": time.Now().Add(-2 * time.Hour).Unix(),
	})
	if _, err := a.SessionFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestBearerToken(t *testing.T) {
	if _, err := bearerToken("  Bearer a.b.c  "); err != nil {
		t.Fatalf("padded header: %v", err)
	}
	if _, err := bearerToken("Bearer a.b.c.d"); err == nil {
		t.Fatal("wrong segment count must be rejected")
	}
}
