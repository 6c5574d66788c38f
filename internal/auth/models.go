package auth

import "time"

type ChallengeRequest struct {
	Address string `json:"address"`
}

// Challenge is the message a wallet signs (personal_sign) to prove it holds
// Address.
type Challenge struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionRequest exchanges a signed challenge for a token pair. Signature is
// the 65 byte hex signature over the challenge message.
type SessionRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	Address      string `json:"address"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
