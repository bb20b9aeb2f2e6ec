package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spacemeshos/auditor/shared"
	"github.com/spacemeshos/auditor/signing"
)

var (
	ErrNoIdentity           = errors.New("client has no signing identity")
	ErrUnexpectedStatus     = errors.New("unexpected response status")
	ErrBadResponseSignature = errors.New("response signature is invalid")
	ErrHostNotFound         = errors.New("host not found")
)

const defaultRequestTimeout = 30 * time.Second

// StatusError carries the HTTP status of a rejected request.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d", ErrUnexpectedStatus, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Client talks to an auditor server over HTTP.
type Client struct {
	baseURL  string
	client   *http.Client
	identity *signing.Identity
	hostID   string
	version  string
}

type Option func(*Client)

// WithIdentity sets the identity used to sign submitted statistics.
func WithIdentity(identity *signing.Identity, hostID string) Option {
	return func(c *Client) {
		c.identity = identity
		c.hostID = hostID
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithVersion(version string) Option {
	return func(c *Client) {
		c.version = version
	}
}

func New(endpoint string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	c := &Client{
		baseURL: strings.TrimSuffix(endpoint, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
		version: "unknown",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) HostID() string {
	return c.hostID
}

// PostStatistics signs and submits a report. The server's response must be
// a 201 carrying a valid signature under the public key it declares.
func (c *Client) PostStatistics(ctx context.Context, report shared.Report) (*shared.StatisticsResponse, error) {
	if c.identity == nil {
		return nil, ErrNoIdentity
	}
	report.HostID = c.hostID
	report.PublicKey = c.identity.PublicKeyText()

	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	signature, err := c.identity.Sign(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+shared.StatisticsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set(shared.SignatureHeader, signature)

	resp := &shared.StatisticsResponse{}
	if err := c.do(req, resp, func() string { return resp.PublicKey }); err != nil {
		return nil, err
	}
	return resp, nil
}

// ProofOfComputation queries the proof of computation of hostID.
func (c *Client) ProofOfComputation(ctx context.Context, hostID string) (*shared.ProofResponse, error) {
	target := c.baseURL + shared.ProofOfComputationPath + "/" + url.PathEscape(hostID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp := &shared.ProofResponse{}
	err = c.do(req, resp, func() string { return resp.PublicKey })
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrHostNotFound, hostID)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// do sends req, decodes a 201 body into v and verifies the body signature
// against the public key returned by publicKey once v is decoded.
func (c *Client) do(req *http.Request, v any, publicKey func() string) error {
	req.Header.Set(shared.ContentTypeHeader, shared.ContentTypeJSON)
	req.Header.Set(shared.UserAgentHeader, shared.UserAgent(c.version))

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		_, _ = io.Copy(io.Discard, res.Body)
		return &StatusError{StatusCode: res.StatusCode}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	ok, err := signing.Verify(body, publicKey(), res.Header.Get(shared.SignatureHeader))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponseSignature, err)
	}
	if !ok {
		return ErrBadResponseSignature
	}
	return nil
}
