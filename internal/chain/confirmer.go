package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultPollInterval = 2 * time.Second

// ReceiptFetcher is the receipt half of an RPC client. *ethclient.Client
// satisfies it.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Confirmer struct {
	client   ReceiptFetcher
	timeout  time.Duration
	interval time.Duration
}

func NewConfirmer(client ReceiptFetcher, timeout time.Duration) *Confirmer {
	return &Confirmer{client: client, timeout: timeout, interval: defaultPollInterval}
}

// Await polls for the receipt of txID until it lands, the timeout passes or
// ctx is cancelled.
func (c *Confirmer) Await(ctx context.Context, txID string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	hash := common.HexToHash(txID)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return fmt.Errorf("%w: transaction %s reverted", ErrMintRejected, txID)
			}
			return nil
		case err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil:
			return fmt.Errorf("%w: %v", ErrMintUnconfirmed, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrMintUnconfirmed, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Dial opens an RPC client usable as both Caller and ReceiptFetcher.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

// Offline stands in for an RPC client that could not be created. Every call
// fails with Err.
type Offline struct {
	Err error
}

func (o Offline) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, o.Err
}

func (o Offline) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, o.Err
}
