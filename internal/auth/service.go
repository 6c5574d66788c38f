package auth

import (
	"context"
	"errors"
	"time"

	"github.com/biancann/footfolio/internal/db"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var ErrInvalidAddress = errors.New("address must be a 0x-prefixed 20 byte hex string")

// Service issues and validates bearer tokens whose subject is a wallet
// address. Refresh tokens are persisted so they can be revoked.
type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
	}
}

// NormalizeAddress validates a hex address and returns its checksummed form.
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(address).Hex(), nil
}

func (s *Service) GenerateTokens(ctx context.Context, address string) (TokenResponse, error) {
	address, err := NormalizeAddress(address)
	if err != nil {
		return TokenResponse{}, err
	}

	access, err := signTokenFn(s, address, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, address, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, address, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		Address:      address,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	address, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || address != claims.Address || time.Now().After(expiresAt) {
		return "", errors.New("refresh token invalid")
	}
	return claims.Address, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.Address, nil
}

var signTokenFn = (*Service).signToken

func (s *Service) signToken(address string, ttl time.Duration) (string, error) {
	claims := Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

var parseWithClaimsFn = jwt.ParseWithClaims

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Address == "" {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, address string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, address, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), address, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT address, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var address string
	var expiresAt time.Time
	if err := row.Scan(&address, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return address, expiresAt, nil
}
