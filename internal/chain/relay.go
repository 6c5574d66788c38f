package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Transaction is an unsigned call handed to the wallet for signing.
type Transaction struct {
	From string `json:"from"`
	To   string `json:"to"`
	Data string `json:"data"`
}

// Signer signs and broadcasts a transaction on behalf of From.
type Signer interface {
	SendTransaction(ctx context.Context, tx Transaction) (string, error)
}

type relayResponse struct {
	TxID   string `json:"tx_id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Relay forwards transactions to a wallet relay which owns the user's keys.
type Relay struct {
	client *resty.Client
}

func NewRelay(baseURL string) *Relay {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second)
	return &Relay{client: client}
}

func (r *Relay) SendTransaction(ctx context.Context, tx Transaction) (string, error) {
	var out relayResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(tx).
		SetResult(&out).
		SetError(&out).
		Post("/transactions")
	if err != nil {
		return "", fmt.Errorf("wallet relay: %w", err)
	}

	switch out.Status {
	case "rejected", "reverted":
		return "", fmt.Errorf("%w: %s %s", ErrMintRejected, out.Status, out.Error)
	}
	if resp.IsError() {
		return "", fmt.Errorf("wallet relay status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if out.TxID == "" {
		return "", fmt.Errorf("wallet relay returned no transaction id")
	}
	return out.TxID, nil
}
