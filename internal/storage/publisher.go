package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biancann/footfolio/internal/metrics"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type Step string

const (
	StepImage    Step = "image"
	StepMetadata Step = "metadata"
)

var ErrNoCredential = errors.New("pinning credential is not configured")

// PublishError reports a failed pin. HTTPStatus is zero when the request never
// got a response.
type PublishError struct {
	Step       Step
	HTTPStatus int
	Body       string
	Err        error
}

func (e *PublishError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("publish %s failed: status %d: %s", e.Step, e.HTTPStatus, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("publish %s failed: %v", e.Step, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinJSONRequest struct {
	PinataContent  any         `json:"pinataContent"`
	PinataMetadata pinMetadata `json:"pinataMetadata"`
}

// Publisher pins artifacts to IPFS through the Pinata API. Every call is one
// round trip with no retry.
type Publisher struct {
	client *resty.Client
	jwt    string
	log    *zap.Logger
	pins   *Service
}

func NewPublisher(apiURL, jwt string, pins *Service, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(60*time.Second).
		SetHeader("Accept", "application/json")
	return &Publisher{client: client, jwt: jwt, log: log, pins: pins}
}

// FileName turns a token name like "FootFolio #7" into "FootFolio-7".
func FileName(name string) string {
	return strings.ReplaceAll(name, " #", "-")
}

func (p *Publisher) PublishImage(ctx context.Context, name string, png []byte) (string, error) {
	if p.jwt == "" {
		return "", p.fail(StepImage, &PublishError{Step: StepImage, Err: ErrNoCredential})
	}
	fileName := FileName(name) + ".png"
	var out pinResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.jwt).
		SetMultipartField("file", fileName, "image/png", bytes.NewReader(png)).
		SetMultipartFormData(map[string]string{"pinataMetadata": fmt.Sprintf(`{"name":%q}`, fileName)}).
		SetResult(&out).
		Post("/pinning/pinFileToIPFS")
	return p.finish(ctx, StepImage, fileName, resp, err, out)
}

func (p *Publisher) PublishMetadata(ctx context.Context, name string, doc any) (string, error) {
	if p.jwt == "" {
		return "", p.fail(StepMetadata, &PublishError{Step: StepMetadata, Err: ErrNoCredential})
	}
	fileName := FileName(name) + ".json"
	var out pinResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.jwt).
		SetHeader("Content-Type", "application/json").
		SetBody(pinJSONRequest{PinataContent: doc, PinataMetadata: pinMetadata{Name: fileName}}).
		SetResult(&out).
		Post("/pinning/pinJSONToIPFS")
	return p.finish(ctx, StepMetadata, fileName, resp, err, out)
}

func (p *Publisher) finish(ctx context.Context, step Step, fileName string, resp *resty.Response, err error, out pinResponse) (string, error) {
	if err != nil {
		return "", p.fail(step, &PublishError{Step: step, Err: err})
	}
	if resp.IsError() {
		return "", p.fail(step, &PublishError{Step: step, HTTPStatus: resp.StatusCode(), Body: resp.String()})
	}
	if out.IpfsHash == "" {
		return "", p.fail(step, &PublishError{Step: step, HTTPStatus: resp.StatusCode(), Body: resp.String(), Err: errors.New("response carried no IpfsHash")})
	}

	uri := "ipfs://" + out.IpfsHash
	metrics.RecordPublish(string(step), nil)
	if p.pins != nil {
		if _, err := p.pins.SaveObject(ctx, uri, string(step), fileName); err != nil {
			p.log.Warn("pin log write failed", zap.String("uri", uri), zap.Error(err))
		}
	}
	return uri, nil
}

func (p *Publisher) fail(step Step, err *PublishError) error {
	metrics.RecordPublish(string(step), err)
	p.log.Error("publish failed",
		zap.String("step", string(step)),
		zap.Int("status", err.HTTPStatus),
		zap.String("body", err.Body),
		zap.Error(err.Err),
	)
	return err
}

// GatewayURL rewrites an ipfs:// URI onto an HTTP gateway.
func GatewayURL(gateway, uri string) string {
	if !strings.HasPrefix(uri, "ipfs://") {
		return uri
	}
	return strings.TrimRight(gateway, "/") + "/ipfs/" + strings.TrimPrefix(uri, "ipfs://")
}
