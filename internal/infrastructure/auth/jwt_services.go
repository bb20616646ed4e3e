package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
)

// TokenClaims is the payload of a credential token. Subject carries the
// user id; Login is the email or username the token was issued for.
type TokenClaims struct {
	Login string `json:"login"`
	jwt.RegisteredClaims
}

// UserID decodes the subject claim.
func (c *TokenClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q is not a user id", pkgerrors.ErrInvalidToken, c.Subject)
	}
	return id, nil
}

// Token timestamps carry milliseconds. They are written with microsecond
// fractions so the float64 decoding of NumericDate can be rounded back to the
// exact millisecond.
const timestampPrecision = time.Millisecond

func init() {
	jwt.TimePrecision = time.Microsecond
}

type Option func(*JWTService)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

// JWTService issues and verifies HS512 credential tokens. It holds no
// mutable state and is safe for concurrent use.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewJWTService(secret string, ttl time.Duration, opts ...Option) (*JWTService, error) {
	if secret == "" {
		return nil, pkgerrors.ErrMissingSecret
	}
	if ttl < timestampPrecision {
		return nil, pkgerrors.ErrInvalidTTL
	}

	s := &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Expiry is checked in Verify against the rounded timestamp.
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	return s, nil
}

// TTL reports how long issued tokens stay valid.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

func (s *JWTService) Issue(login string, userID int64) (string, error) {
	// The lifetime is exactly ttl from the recorded iat.
	issuedAt := s.now().Truncate(timestampPrecision)
	claims := TokenClaims{
		Login: login,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify parses the token and checks its signature and expiry. The boolean
// is false for malformed, tampered or expired tokens, in which case the
// claims are nil.
func (s *JWTService) Verify(tokenString string) (*TokenClaims, bool) {
	claims := &TokenClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.ExpiresAt == nil {
		return nil, false
	}

	claims.ExpiresAt = roundDate(claims.ExpiresAt)
	if claims.IssuedAt != nil {
		claims.IssuedAt = roundDate(claims.IssuedAt)
	}
	if claims.NotBefore != nil {
		claims.NotBefore = roundDate(claims.NotBefore)
	}

	now := s.now()
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, false
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return nil, false
	}
	return claims, true
}

func roundDate(d *jwt.NumericDate) *jwt.NumericDate {
	return &jwt.NumericDate{Time: d.Round(timestampPrecision)}
}

func (s *JWTService) Valid(tokenString string) bool {
	_, ok := s.Verify(tokenString)
	return ok
}

func (s *JWTService) ExtractSubject(tokenString string) (int64, error) {
	claims, ok := s.Verify(tokenString)
	if !ok {
		return 0, fmt.Errorf("extract subject: %w", pkgerrors.ErrInvalidToken)
	}
	return claims.UserID()
}

func (s *JWTService) ExtractLogin(tokenString string) (string, error) {
	claims, ok := s.Verify(tokenString)
	if !ok {
		return "", fmt.Errorf("extract login: %w", pkgerrors.ErrInvalidToken)
	}
	return claims.Login, nil
}
