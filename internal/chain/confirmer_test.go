package chain

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeReceipts struct {
	pending int32
	calls   atomic.Int32
	receipt *types.Receipt
	err     error
}

func (f *fakeReceipts) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	n := f.calls.Add(1)
	if n <= f.pending {
		return nil, ethereum.NotFound
	}
	return f.receipt, f.err
}

func newTestConfirmer(f *fakeReceipts, timeout time.Duration) *Confirmer {
	c := NewConfirmer(f, timeout)
	c.interval = 5 * time.Millisecond
	return c
}

func TestAwaitSuccessAfterPending(t *testing.T) {
	f := &fakeReceipts{pending: 2, receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful}}
	if err := newTestConfirmer(f, time.Second).Await(context.Background(), "0x01"); err != nil {
		t.Fatalf("await: %v", err)
	}
	if f.calls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", f.calls.Load())
	}
}

func TestAwaitReverted(t *testing.T) {
	f := &fakeReceipts{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	err := newTestConfirmer(f, time.Second).Await(context.Background(), "0x01")
	if !errors.Is(err, ErrMintRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
}

func TestAwaitTimeout(t *testing.T) {
	f := &fakeReceipts{pending: 1 << 30}
	err := newTestConfirmer(f, 30*time.Millisecond).Await(context.Background(), "0x01")
	if !errors.Is(err, ErrMintUnconfirmed) {
		t.Fatalf("expected unconfirmed, got %v", err)
	}
}

func TestAwaitRPCError(t *testing.T) {
	f := &fakeReceipts{err: errors.New("rpc down")}
	err := newTestConfirmer(f, time.Second).Await(context.Background(), "0x01")
	if !errors.Is(err, ErrMintUnconfirmed) {
		t.Fatalf("expected unconfirmed, got %v", err)
	}
}

func TestOfflineClient(t *testing.T) {
	offline := Offline{Err: errors.New("bad rpc url")}
	if _, err := NewReader(offline, testContract).NextTokenID(context.Background()); !errors.Is(err, ErrChainRead) {
		t.Fatalf("expected chain read error, got %v", err)
	}
	if err := newTestConfirmer(&fakeReceipts{err: offline.Err}, time.Second).Await(context.Background(), "0x01"); !errors.Is(err, ErrMintUnconfirmed) {
		t.Fatalf("expected unconfirmed, got %v", err)
	}
	if err := NewConfirmer(offline, time.Second).Await(context.Background(), "0x01"); !errors.Is(err, ErrMintUnconfirmed) {
		t.Fatalf("expected unconfirmed, got %v", err)
	}
}
