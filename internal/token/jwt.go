package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/dtroode/cardbook-server/internal/clock"
	"github.com/dtroode/cardbook-server/internal/model"
)

var _ model.TokenCodec = (*JWT)(nil)

// ErrUnsupportedAlgorithm is returned for signing algorithms other than HMAC SHA-2.
var ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

var signingMethods = map[string]*jwt.SigningMethodHMAC{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// Claims is the wire form of the token payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	RealName string `json:"real_name"`
}

// Options configures the JWT codec.
type Options struct {
	Secret    string
	Algorithm string
	Lifetime  time.Duration
	Issuer    string
	Audience  string
	Subject   string
}

// JWT implements TokenCodec backed by symmetric HMAC.
type JWT struct {
	secretKey []byte
	method    *jwt.SigningMethodHMAC
	lifetime  time.Duration
	issuer    string
	audience  string
	subject   string
	clock     clock.Clock
	parser    *jwt.Parser
}

// NewJWT creates a JWT codec. The algorithm must be one of HS256, HS384 or HS512.
func NewJWT(opts Options, clk clock.Clock) (*JWT, error) {
	method, ok := signingMethods[opts.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, opts.Algorithm)
	}
	if opts.Secret == "" {
		return nil, errors.New("signing secret is empty")
	}
	if opts.Lifetime < time.Second {
		return nil, fmt.Errorf("token lifetime %s is shorter than one second", opts.Lifetime)
	}
	if clk == nil {
		clk = clock.Real()
	}

	j := &JWT{
		secretKey: []byte(opts.Secret),
		method:    method,
		lifetime:  opts.Lifetime,
		issuer:    opts.Issuer,
		audience:  opts.Audience,
		subject:   opts.Subject,
		clock:     clk,
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithTimeFunc(clk.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	if opts.Subject != "" {
		parserOpts = append(parserOpts, jwt.WithSubject(opts.Subject))
	}
	j.parser = jwt.NewParser(parserOpts...)

	return j, nil
}

// Lifetime returns the configured token lifetime.
func (j *JWT) Lifetime() time.Duration {
	return j.lifetime
}

// Encode signs a fresh token for identity with new iat, nbf, exp and jti.
func (j *JWT) Encode(identity model.Identity) (string, model.Claims, error) {
	// NumericDate carries whole seconds only.
	now := j.clock.Now().Truncate(time.Second)

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", model.Claims{}, fmt.Errorf("failed to generate token id: %w", err)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    j.issuer,
			Subject:   j.subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.lifetime)),
		},
		UserID:   identity.UserID,
		Username: identity.Username,
		RealName: identity.RealName,
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}

	tokenString, err := jwt.NewWithClaims(j.method, claims).SignedString(j.secretKey)
	if err != nil {
		return "", model.Claims{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, toModel(claims), nil
}

// Decode verifies the signature and the temporal window of tokenString.
// Every failure wraps model.ErrInvalidToken.
func (j *JWT) Decode(tokenString string) (model.Claims, error) {
	claims := &Claims{}
	token, err := j.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return model.Claims{}, fmt.Errorf("%w: %w", model.ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.Claims{}, model.ErrInvalidToken
	}
	if claims.ID == "" || claims.NotBefore == nil || claims.IssuedAt == nil {
		return model.Claims{}, fmt.Errorf("%w: missing standard claims", model.ErrInvalidToken)
	}

	return toModel(*claims), nil
}

func toModel(c Claims) model.Claims {
	out := model.Claims{
		Identity: model.Identity{
			UserID:   c.UserID,
			Username: c.Username,
			RealName: c.RealName,
		},
		ID:      c.ID,
		Issuer:  c.Issuer,
		Subject: c.Subject,
	}
	if len(c.Audience) > 0 {
		out.Audience = c.Audience[0]
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.NotBefore != nil {
		out.NotBefore = c.NotBefore.Time.UTC()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return out
}
