package boardd

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

// clockSkew is the leeway granted on time-based claims, so a client
// whose clock runs slightly ahead is not bounced mid-session.
const clockSkew = time.Minute

// Auth validates incoming JWT bearer tokens.
type Auth struct {
	JWKS       *keyfunc.JWKS
	Audience   string
	Issuer     string
	TestMode   bool
	TestSecret []byte
}

// NewAuth creates a new Auth instance. With BOARD_AUTH_TEST_MODE=1 tokens
// are verified with an HS256 shared secret instead of the JWKS.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	a := &Auth{JWKS: jwks, Audience: audience, Issuer: issuer}
	if os.Getenv("BOARD_AUTH_TEST_MODE") == "1" {
		secret := os.Getenv("TEST_JWT_SECRET")
		if secret == "" {
			panic("TEST_JWT_SECRET must be set when BOARD_AUTH_TEST_MODE=1")
		}
		a.TestMode = true
		a.TestSecret = []byte(secret)
	}
	return a
}

// NewTestAuth creates an HS256 Auth for in-process integration tests.
func NewTestAuth(secret string) *Auth {
	return &Auth{TestMode: true, TestSecret: []byte(secret)}
}

// UserIDFromAuthHeader extracts the user identifier from the Authorization header.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	raw, err := bearerToken(h)
	if err != nil {
		return "", err
	}
	if a.TestMode {
		return a.verifyTestToken(raw)
	}
	return a.verifySignedToken(raw)
}

// bearerToken strips the Bearer scheme and rejects anything that is not
// shaped like a JWT before signature verification runs.
func bearerToken(h string) (string, error) {
	if h == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || scheme != "Bearer" {
		return "", errors.New("bad auth header")
	}
	if strings.Count(raw, ".") != 2 {
		return "", errors.New("bad auth header")
	}
	return raw, nil
}

func (a *Auth) verifyTestToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.TestSecret, nil
	})
	if err != nil {
		return "", err
	}
	return subject(token)
}

func (a *Auth) verifySignedToken(raw string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	token, err := parser.Parse(raw, a.JWKS.Keyfunc)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := time.Now().Add(clockSkew).Unix()
	switch {
	case !claims.VerifyExpiresAt(now, true):
		return "", errors.New("token expired")
	case !claims.VerifyNotBefore(now, false):
		return "", errors.New("token not valid yet")
	case !claims.VerifyAudience(a.Audience, false):
		return "", errors.New("token not meant for the board api")
	case !claims.VerifyIssuer(a.Issuer, false):
		return "", errors.New("token from an unknown issuer")
	}
	return subject(token)
}

// subject pulls the user id out of a verified token.
func subject(token *jwt.Token) (string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// SignTestToken mints an HS256 token for the given user, for tests and
// the local demo.
func SignTestToken(secret, userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}
