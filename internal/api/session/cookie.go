// Package session encodes the session id into the signed "sid" cookie.
package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "sid"

var errEmptySID = errors.New("session: empty sid claim")

type claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Codec signs session ids with HS256 and builds the cookies that carry them.
// Expiry is enforced by the session store, not by the token.
type Codec struct {
	secret   []byte
	ttl      time.Duration
	secure   bool
	sameSite http.SameSite
}

func NewCodec(secret string, ttl time.Duration, secure bool, sameSite string) *Codec {
	return &Codec{
		secret:   []byte(secret),
		ttl:      ttl,
		secure:   secure,
		sameSite: parseSameSite(sameSite),
	}
}

// Encode returns the signed cookie value for sid.
func (c *Codec) Encode(sid string) (string, error) {
	if sid == "" {
		return "", errEmptySID
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{SID: sid})
	return tok.SignedString(c.secret)
}

// Decode verifies value and returns the session id it carries. Any
// malformed or mis-signed value is reported as absent.
func (c *Codec) Decode(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	var cl claims
	tok, err := jwt.ParseWithClaims(value, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid || cl.SID == "" {
		return "", false
	}
	return cl.SID, true
}

// Read returns the verified session id from the request cookie, if any.
func (c *Codec) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	return c.Decode(ck.Value)
}

// Cookie builds the session cookie for sid. Max-Age is reset to the full TTL
// every time it is issued.
func (c *Codec) Cookie(sid string) (*http.Cookie, error) {
	v, err := c.Encode(sid)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    v,
		Path:     "/",
		MaxAge:   int(c.ttl / time.Second),
		Expires:  time.Now().Add(c.ttl),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	}, nil
}

// Clear builds a cookie that removes the session cookie from the client.
func (c *Codec) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	}
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteNoneMode
	}
}
