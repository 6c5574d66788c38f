package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrMintRejected    = errors.New("mint rejected")
	ErrMintUnconfirmed = errors.New("mint unconfirmed")
)

// Submitter builds mint calls for the collection contract. Nonce, gas and
// broadcast are the Signer's business.
type Submitter struct {
	signer    Signer
	contract  common.Address
	authToken string
}

func NewSubmitter(signer Signer, contract common.Address, authToken string) *Submitter {
	return &Submitter{signer: signer, contract: contract, authToken: authToken}
}

// Submit asks the signer to send mint(authToken, metadataURI) from the given
// wallet and returns the transaction id.
func (s *Submitter) Submit(ctx context.Context, from, metadataURI string) (string, error) {
	if !common.IsHexAddress(from) {
		return "", fmt.Errorf("invalid sender address %q", from)
	}
	data, err := collection.Pack("mint", s.authToken, metadataURI)
	if err != nil {
		return "", fmt.Errorf("pack mint: %w", err)
	}
	return s.signer.SendTransaction(ctx, Transaction{
		From: common.HexToAddress(from).Hex(),
		To:   s.contract.Hex(),
		Data: hexutil.Encode(data),
	})
}
