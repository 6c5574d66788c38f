package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var ErrChainRead = errors.New("chain read failed")

// Caller is the read half of an RPC client. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader performs view calls against the collection contract.
type Reader struct {
	caller   Caller
	contract common.Address
}

func NewReader(caller Caller, contract common.Address) *Reader {
	return &Reader{caller: caller, contract: contract}
}

func (r *Reader) NextTokenID(ctx context.Context) (uint64, error) {
	out, err := r.call(ctx, "nextTokenIdToMint")
	if err != nil {
		return 0, err
	}
	id, ok := out[0].(*big.Int)
	if !ok || !id.IsUint64() {
		return 0, fmt.Errorf("%w: nextTokenIdToMint returned %v", ErrChainRead, out[0])
	}
	return id.Uint64(), nil
}

func (r *Reader) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	out, err := r.call(ctx, "tokenURI", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return "", err
	}
	uri, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: tokenURI returned %T", ErrChainRead, out[0])
	}
	return uri, nil
}

func (r *Reader) OwnerOf(ctx context.Context, tokenID uint64) (string, error) {
	out, err := r.call(ctx, "ownerOf", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return "", err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("%w: ownerOf returned %T", ErrChainRead, out[0])
	}
	return owner.Hex(), nil
}

func (r *Reader) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := collection.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrChainRead, method, err)
	}
	out, err := collection.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", ErrChainRead, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s returned nothing", ErrChainRead, method)
	}
	return out, nil
}
