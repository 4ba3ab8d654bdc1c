package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mind-engage/examroom/internal/exam"
)

const issuer = "examroom"

var ErrInvalidToken = errors.New("invalid token")

// AuthService signs and verifies HS256 access tokens.
type AuthService struct {
	hmac []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (a *AuthService) TTL() time.Duration { return a.ttl }

type Claims struct {
	Sub   string `json:"sub"`
	Role  string `json:"role"`
	Group string `json:"group,omitempty"`
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(p exam.Participant) (string, error) {
	issued := a.now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Sub:   p.ID,
		Role:  string(p.Role),
		Group: p.GroupID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(a.ttl)),
		},
	}).SignedString(a.hmac)
}

func (a *AuthService) key(*jwt.Token) (any, error) { return a.hmac, nil }

// Parse verifies signature, algorithm and expiry. A token without a subject
// is rejected as well.
func (a *AuthService) Parse(raw string) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, a.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if c.Sub == "" {
		return nil, ErrInvalidToken
	}
	return &c, nil
}
