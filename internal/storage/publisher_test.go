package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
)

type pinataStub struct {
	fileStatus int
	jsonStatus int
	fileCalls  atomic.Int32
	jsonCalls  atomic.Int32
	lastJSON   atomic.Value
}

func (s *pinataStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pinning/pinFileToIPFS", func(w http.ResponseWriter, r *http.Request) {
		s.fileCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer jwt-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		if header.Filename != "FootFolio-3.png" || string(body) != "png-bytes" {
			t.Errorf("unexpected file %q %q", header.Filename, body)
		}
		if s.fileStatus != 0 {
			w.WriteHeader(s.fileStatus)
			_, _ = w.Write([]byte(`{"error":"file rejected"}`))
			return
		}
		_, _ = w.Write([]byte(`{"IpfsHash":"QmImage","PinSize":9}`))
	})
	mux.HandleFunc("/pinning/pinJSONToIPFS", func(w http.ResponseWriter, r *http.Request) {
		s.jsonCalls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		s.lastJSON.Store(string(raw))
		if s.jsonStatus != 0 {
			w.WriteHeader(s.jsonStatus)
			_, _ = w.Write([]byte("pinning backend exploded"))
			return
		}
		_, _ = w.Write([]byte(`{"IpfsHash":"QmMeta"}`))
	})
	return mux
}

func newStubPublisher(t *testing.T, stub *pinataStub, pins *Service) *Publisher {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)
	return NewPublisher(srv.URL, "jwt-1", pins, nil)
}

func TestPublishImageAndMetadata(t *testing.T) {
	stub := &pinataStub{}
	p := newStubPublisher(t, stub, nil)

	uri, err := p.PublishImage(context.Background(), "FootFolio #3", []byte("png-bytes"))
	if err != nil || uri != "ipfs://QmImage" {
		t.Fatalf("publish image: %q %v", uri, err)
	}

	doc := map[string]string{"name": "FootFolio #3", "image": uri}
	uri, err = p.PublishMetadata(context.Background(), "FootFolio #3", doc)
	if err != nil || uri != "ipfs://QmMeta" {
		t.Fatalf("publish metadata: %q %v", uri, err)
	}

	var sent pinJSONRequest
	if err := json.Unmarshal([]byte(stub.lastJSON.Load().(string)), &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.PinataMetadata.Name != "FootFolio-3.json" {
		t.Fatalf("unexpected pin name %q", sent.PinataMetadata.Name)
	}
	content, _ := sent.PinataContent.(map[string]any)
	if content["image"] != "ipfs://QmImage" {
		t.Fatalf("unexpected pinned content %v", sent.PinataContent)
	}
}

func TestPublishMetadataHTTPError(t *testing.T) {
	stub := &pinataStub{jsonStatus: http.StatusInternalServerError}
	p := newStubPublisher(t, stub, nil)

	_, err := p.PublishMetadata(context.Background(), "FootFolio #3", map[string]string{})
	var perr *PublishError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if perr.Step != StepMetadata || perr.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected error fields %+v", perr)
	}
	if !strings.Contains(perr.Body, "exploded") || !strings.Contains(perr.Error(), "500") {
		t.Fatalf("expected body in diagnostics, got %q", perr.Error())
	}
	if stub.jsonCalls.Load() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", stub.jsonCalls.Load())
	}
}

func TestPublishImageHTTPError(t *testing.T) {
	stub := &pinataStub{fileStatus: http.StatusForbidden}
	p := newStubPublisher(t, stub, nil)
	_, err := p.PublishImage(context.Background(), "FootFolio #3", []byte("png-bytes"))
	var perr *PublishError
	if !errors.As(err, &perr) || perr.Step != StepImage || perr.HTTPStatus != http.StatusForbidden {
		t.Fatalf("expected image publish error, got %v", err)
	}
}

func TestPublishWithoutCredential(t *testing.T) {
	p := NewPublisher("http://127.0.0.1:1", "", nil, nil)
	_, err := p.PublishImage(context.Background(), "FootFolio #1", nil)
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
}

func TestPublishTransportError(t *testing.T) {
	p := NewPublisher("http://127.0.0.1:1", "jwt-1", nil, nil)
	_, err := p.PublishMetadata(context.Background(), "FootFolio #1", map[string]string{})
	var perr *PublishError
	if !errors.As(err, &perr) || perr.HTTPStatus != 0 || perr.Err == nil {
		t.Fatalf("expected transport publish error, got %v", err)
	}
}

func TestPublishRecordsPins(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO pinned_objects`).
		WithArgs(pgxmock.AnyArg(), "ipfs://QmImage", "image", "FootFolio-3.png").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO pinned_objects`).
		WithArgs(pgxmock.AnyArg(), "ipfs://QmMeta", "metadata", "FootFolio-3.json").
		WillReturnError(errSave)

	p := newStubPublisher(t, &pinataStub{}, NewService(mock))
	if _, err := p.PublishImage(context.Background(), "FootFolio #3", []byte("png-bytes")); err != nil {
		t.Fatalf("publish image: %v", err)
	}
	if _, err := p.PublishMetadata(context.Background(), "FootFolio #3", map[string]string{}); err != nil {
		t.Fatalf("pin log failure must not fail the publish: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGatewayURL(t *testing.T) {
	if got := GatewayURL("https://gw.example/", "ipfs://QmX"); got != "https://gw.example/ipfs/QmX" {
		t.Fatalf("unexpected gateway url %q", got)
	}
	if got := GatewayURL("https://gw.example", "https://other/x"); got != "https://other/x" {
		t.Fatalf("non-ipfs uri should pass through, got %q", got)
	}
}
