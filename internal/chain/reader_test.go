package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var testContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")

type fakeCaller struct {
	outputs map[string][]byte
	err     error
	calls   []ethereum.CallMsg
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return nil, f.err
	}
	method, err := collection.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	return f.outputs[method.Name], nil
}

func packOutput(t *testing.T, method string, values ...any) []byte {
	t.Helper()
	out, err := collection.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return out
}

func TestReaderCalls(t *testing.T) {
	owner := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	caller := &fakeCaller{outputs: map[string][]byte{
		"nextTokenIdToMint": packOutput(t, "nextTokenIdToMint", big.NewInt(6)),
		"tokenURI":          packOutput(t, "tokenURI", "ipfs://QmMeta"),
		"ownerOf":           packOutput(t, "ownerOf", owner),
	}}
	r := NewReader(caller, testContract)
	ctx := context.Background()

	next, err := r.NextTokenID(ctx)
	if err != nil || next != 6 {
		t.Fatalf("next token id: %d %v", next, err)
	}
	uri, err := r.TokenURI(ctx, 2)
	if err != nil || uri != "ipfs://QmMeta" {
		t.Fatalf("token uri: %q %v", uri, err)
	}
	got, err := r.OwnerOf(ctx, 2)
	if err != nil || got != owner.Hex() {
		t.Fatalf("owner: %q %v", got, err)
	}

	if *caller.calls[1].To != testContract {
		t.Fatalf("call sent to wrong contract")
	}
	args, err := collection.Methods["tokenURI"].Inputs.Unpack(caller.calls[1].Data[4:])
	if err != nil || args[0].(*big.Int).Uint64() != 2 {
		t.Fatalf("unexpected tokenURI args %v %v", args, err)
	}
}

func TestReaderCallError(t *testing.T) {
	r := NewReader(&fakeCaller{err: errors.New("connection refused")}, testContract)
	if _, err := r.NextTokenID(context.Background()); !errors.Is(err, ErrChainRead) {
		t.Fatalf("expected chain read error, got %v", err)
	}
}

func TestReaderEmptyOutput(t *testing.T) {
	r := NewReader(&fakeCaller{outputs: map[string][]byte{}}, testContract)
	if _, err := r.TokenURI(context.Background(), 1); !errors.Is(err, ErrChainRead) {
		t.Fatalf("expected chain read error, got %v", err)
	}
}
