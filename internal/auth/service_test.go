package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestService(t *testing.T, c *clock, admins ...string) Service {
	t.Helper()
	svc, err := NewService(Config{Secret: "test-secret", PrimaryAdmins: admins, Now: c.Now})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestToken_ExpiresAfterTTL(t *testing.T) {
	issuedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	c := &clock{t: issuedAt}
	svc := newTestService(t, c, "777777777")

	tok, err := svc.Issue("777777777")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c.t = issuedAt.Add(299 * time.Second)
	id, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify at T+299: %v", err)
	}
	if id != "777777777" {
		t.Errorf("identity = %q, want 777777777", id)
	}

	c.t = issuedAt.Add(301 * time.Second)
	if _, err := svc.Verify(tok); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify at T+301: got %v, want ErrTokenExpired", err)
	}
}

func TestToken_IssueRefusesNonAdmin(t *testing.T) {
	svc := newTestService(t, &clock{t: time.Now()}, "@RapiHappy")

	if _, err := svc.Issue("someone"); !errors.Is(err, ErrNotPrimaryAdmin) {
		t.Errorf("got %v, want ErrNotPrimaryAdmin", err)
	}
	if _, err := svc.Issue("rapihappy"); err != nil {
		t.Errorf("handle match should ignore case and @: %v", err)
	}
}

func TestToken_AllowlistCheckedAtVerify(t *testing.T) {
	c := &clock{t: time.Now()}
	issuer := newTestService(t, c, "1", "2")
	verifier := newTestService(t, c, "1")

	tok, err := issuer.Issue("2")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("got %v, want ErrTokenInvalid after removal from allowlist", err)
	}
}

func TestToken_Invalid(t *testing.T) {
	c := &clock{t: time.Now()}
	svc := newTestService(t, c, "1")
	tok, err := svc.Issue("1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := NewService(Config{Secret: "other-secret", PrimaryAdmins: []string{"1"}, Now: c.Now})
	if err != nil {
		t.Fatal(err)
	}
	forged, _ := other.Issue("1")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Minute)),
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tampered := []byte(tok)
	i := strings.LastIndex(tok, ".") + 1
	if tampered[i] == 'A' {
		tampered[i] = 'B'
	} else {
		tampered[i] = 'A'
	}

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"tampered", string(tampered)},
		{"wrong key", forged},
		{"alg none", unsigned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Verify(tc.token); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("got %v, want ErrTokenInvalid", err)
			}
		})
	}

	if _, err := svc.Verify(""); !errors.Is(err, ErrTokenMissing) {
		t.Errorf("empty token: got %v, want ErrTokenMissing", err)
	}
}
