// Package identity verifies bearer tokens issued by the identity provider
// and turns them into a stable owner id plus profile claims.
package identity

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/julianstephens/streakd/internal/errors"
	"github.com/julianstephens/streakd/internal/models"
)

var (
	ErrMissingToken = stderrors.New("missing bearer token")
	ErrMissingOwner = stderrors.New("token has no subject")
	ErrNoSecret     = stderrors.New("jwt secret is not configured")
)

// Claims are the token claims streakd reads. The subject is the owner id.
type Claims struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	jwt.RegisteredClaims
}

// Identity is a verified caller
type Identity struct {
	OwnerID string
	Claims  *Claims
}

// User returns the profile carried by the token
func (id Identity) User() models.User {
	u := models.User{OwnerID: id.OwnerID}
	if id.Claims != nil {
		u.Email = id.Claims.Email
		u.FirstName = id.Claims.FirstName
		u.LastName = id.Claims.LastName
		u.Username = id.Claims.Username
		u.ImageURL = id.Claims.ImageURL
	}
	return u
}

// Verifier checks HS256 tokens signed with a shared secret
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewVerifier returns a verifier for secret. A non-empty issuer is enforced.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}, nil
}

// Verify parses and validates a raw token
func (v *Verifier) Verify(raw string) (Identity, error) {
	const op = "identity.Verify"

	if raw == "" {
		return Identity{}, unauthorized(op, ErrMissingToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, unauthorized(op, err)
	}
	if !token.Valid {
		return Identity{}, unauthorized(op, nil)
	}
	if claims.Subject == "" {
		return Identity{}, unauthorized(op, ErrMissingOwner)
	}

	return Identity{OwnerID: claims.Subject, Claims: claims}, nil
}

func unauthorized(op string, err error) error {
	return &errors.Error{Kind: errors.Unauthenticated, Op: op, Msg: "Unauthorized", Err: err}
}

// VerifyHeader verifies the token in an Authorization header value
func (v *Verifier) VerifyHeader(header string) (Identity, error) {
	return v.Verify(BearerToken(header))
}

// BearerToken extracts the token from "Bearer <token>". Anything else yields "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Sign issues an HS256 token for ownerID. It is used by the CLI to mint
// development tokens and by tests.
func (v *Verifier) Sign(ownerID string, ttl time.Duration, profile Claims) (string, error) {
	if ownerID == "" {
		return "", ErrMissingOwner
	}
	now := time.Now()
	claims := profile
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   ownerID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
