package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const challengeTTL = 5 * time.Minute

var (
	ErrNoChallenge      = errors.New("no pending sign-in challenge for address")
	ErrInvalidSignature = errors.New("signature does not match address")
)

// SignInMessage is the text a wallet signs to open a session.
func SignInMessage(address, nonce string) string {
	return "Sign in to FootFolio\n\nAddress: " + address + "\nNonce: " + nonce
}

// IssueChallenge stores a fresh nonce for address, replacing any pending one.
func (s *Service) IssueChallenge(ctx context.Context, address string) (Challenge, error) {
	address, err := NormalizeAddress(address)
	if err != nil {
		return Challenge{}, err
	}

	nonce := uuid.NewString()
	expiresAt := time.Now().Add(challengeTTL).UTC()
	if _, err := s.db.Exec(ctx, `
		INSERT INTO auth_nonces (address, nonce, expires_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (address) DO UPDATE SET nonce = EXCLUDED.nonce, expires_at = EXCLUDED.expires_at
	`, address, nonce, expiresAt); err != nil {
		return Challenge{}, err
	}

	return Challenge{
		Address:   address,
		Nonce:     nonce,
		Message:   SignInMessage(address, nonce),
		ExpiresAt: expiresAt,
	}, nil
}

// SignIn consumes the pending challenge for address and issues tokens when
// signature recovers to address. A challenge is single use even when the
// signature is wrong.
func (s *Service) SignIn(ctx context.Context, address, signature string) (TokenResponse, error) {
	address, err := NormalizeAddress(address)
	if err != nil {
		return TokenResponse{}, err
	}

	var nonce string
	var expiresAt time.Time
	err = s.db.QueryRow(ctx, `
		DELETE FROM auth_nonces
		WHERE address = $1
		RETURNING nonce, expires_at
	`, address).Scan(&nonce, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenResponse{}, ErrNoChallenge
	}
	if err != nil {
		return TokenResponse{}, err
	}
	if time.Now().After(expiresAt) {
		return TokenResponse{}, ErrNoChallenge
	}

	signer, err := recoverSigner(SignInMessage(address, nonce), signature)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != address {
		return TokenResponse{}, ErrInvalidSignature
	}
	return s.GenerateTokens(ctx, address)
}

// recoverSigner returns the checksummed address that produced an EIP-191
// personal_sign signature over message. V may be 0/1 or 27/28.
func recoverSigner(message, signature string) (string, error) {
	if !strings.HasPrefix(signature, "0x") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", err
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("signature is %d bytes, want %d", len(sig), crypto.SignatureLength)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
