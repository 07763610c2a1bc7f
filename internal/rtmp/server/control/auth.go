package control

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints the bearer token a WebsocketAuthorizer presents when
// connecting to the coordinator.
type TokenIssuer interface {
	IssueControlToken() (string, error)
}

// HMACTokenIssuer signs a fixed-subject HS256 JWT with a shared secret, the
// same scheme the coordinator's websocket handshake expects.
type HMACTokenIssuer struct {
	secret []byte
}

// NewHMACTokenIssuer returns a TokenIssuer using secret as the HMAC key. An
// empty secret disables signing: IssueControlToken then returns an empty
// token, which WebsocketAuthorizer sends no Authorization header for.
func NewHMACTokenIssuer(secret string) *HMACTokenIssuer {
	return &HMACTokenIssuer{secret: []byte(secret)}
}

// IssueControlToken returns a freshly signed token carrying a fixed
// "rtmp-control" subject claim; the coordinator doesn't need per-connection
// claims, only proof the caller holds the shared secret.
func (h *HMACTokenIssuer) IssueControlToken() (string, error) {
	if len(h.secret) == 0 {
		return "", nil
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "rtmp-control",
	})
	signed, err := token.SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("control: sign token: %w", err)
	}
	return signed, nil
}

var _ TokenIssuer = (*HMACTokenIssuer)(nil)
