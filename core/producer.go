package core

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// record is one element of the produce request envelope. The gateway
// accepts key-less records with a plain string value.
type record struct {
	Value string `json:"value"`
}

type recordEnvelope struct {
	Records []record `json:"records"`
}

// HTTPError is a non-2xx response from the gateway. It carries the
// status code and the response body so the operator can diagnose the
// failure without re-running.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway returned %s", e.Status)
}

// Producer sends records to a topic through the REST ingestion
// gateway, one record per request.
type Producer struct {
	config Config
	url    string
	client *http.Client
}

// NewProducer builds a Producer with its own http.Client. The client
// applies the per-request timeout and honors the InsecureSkipVerify
// flag from the config.
func NewProducer(config Config) *Producer {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}
	return &Producer{
		config: config,
		url:    fmt.Sprintf("%s/topics/%s/records", config.RestAPIURL, config.Topic),
		client: &http.Client{Transport: transport, Timeout: config.Timeout},
	}
}

// WithClient replaces the HTTP client, keeping the configured timeout
// if the replacement has none.
func (p *Producer) WithClient(client *http.Client) *Producer {
	if client.Timeout == 0 {
		client.Timeout = p.config.Timeout
	}
	p.client = client
	return p
}

// URL is the fully resolved produce endpoint.
func (p *Producer) URL() string {
	return p.url
}

// Send publishes one record and returns the parsed delivery result.
// A transport failure or a non-2xx status is an error; the caller is
// expected to stop producing.
func (p *Producer) Send(ctx context.Context, text string) (DeliveryResult, error) {
	payload, err := json.Marshal(recordEnvelope{Records: []record{{Value: text}}})
	if err != nil {
		return DeliveryResult{}, errors.Wrap(err, "encoding record")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return DeliveryResult{}, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.config.Username, p.config.Password.Reveal())

	resp, err := p.client.Do(req)
	if err != nil {
		return DeliveryResult{}, errors.Wrapf(err, "sending to %s", p.url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return DeliveryResult{}, errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DeliveryResult{}, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return ParseDeliveryResult(body), nil
}
