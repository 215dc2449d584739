package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// leeway absorbs clock skew between us and the identity provider.
const leeway = 30 * time.Second

// Errors returned by verifiers.
var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSubject = errors.New("token has no subject")
)

// Verifier checks a raw bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Options are the claim checks applied on top of signature and expiry.
// Empty values skip the check.
type Options struct {
	Issuer   string
	Audience string
}

// JWTVerifier verifies RS256/ES256 tokens against keys from a key source.
type JWTVerifier struct {
	keys   jwt.Keyfunc
	parser *jwt.Parser
	cancel context.CancelFunc
	logger *slog.Logger
}

var _ Verifier = (*JWTVerifier)(nil)

// NewJWTVerifier builds a verifier over an existing key source.
func NewJWTVerifier(keys keyfunc.Keyfunc, opts Options, logger *slog.Logger) *JWTVerifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	return &JWTVerifier{
		keys:   keys.Keyfunc,
		parser: jwt.NewParser(parserOpts...),
		logger: logger,
	}
}

// NewJWKSVerifier fetches signing keys from jwksURL and keeps them
// refreshed in the background until Close is called.
func NewJWKSVerifier(ctx context.Context, jwksURL string, opts Options, logger *slog.Logger) (*JWTVerifier, error) {
	refreshCtx, cancel := context.WithCancel(ctx)

	keys, err := keyfunc.NewDefaultCtx(refreshCtx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load JWKS from %s: %w", jwksURL, err)
	}

	v := NewJWTVerifier(keys, opts, logger)
	v.cancel = cancel
	v.logger.Info("JWKS key source ready", "url", jwksURL)
	return v, nil
}

// Verify parses token and checks its signature and claims.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	var claims Claims
	if _, err := v.parser.ParseWithClaims(token, &claims, v.keys); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return &claims, nil
}

// Close stops the background key refresh.
func (v *JWTVerifier) Close() error {
	if v.cancel != nil {
		v.cancel()
	}
	return nil
}

// StaticVerifier accepts every request as one fixed subject. It is meant for
// local development with authentication disabled.
type StaticVerifier struct {
	Subject string
}

var _ Verifier = StaticVerifier{}

// Verify ignores token and returns the configured subject.
func (s StaticVerifier) Verify(ctx context.Context, _ string) (*Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: s.Subject}}, nil
}
