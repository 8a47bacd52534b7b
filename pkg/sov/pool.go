package sov

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxReplySize bounds a ledger reply body.
const maxReplySize = 1 << 20

// Pool submits read requests to one ledger network and returns the raw
// ledger reply.
type Pool interface {
	GetNym(ctx context.Context, did string) ([]byte, error)
	GetAttrib(ctx context.Context, did, raw string) ([]byte, error)
	Close() error
}

// HTTPPool talks to an indy-vdr-proxy style HTTP gateway in front of a
// ledger pool.
type HTTPPool struct {
	baseURL string
	client  *http.Client
	limiter chan struct{}
}

// NewHTTPPool creates a pool client for the gateway at baseURL.
func NewHTTPPool(baseURL string, timeout time.Duration, maxConcurrent int) *HTTPPool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &HTTPPool{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: make(chan struct{}, maxConcurrent),
	}
}

func (p *HTTPPool) GetNym(ctx context.Context, did string) ([]byte, error) {
	return p.get(ctx, "/nym/"+url.PathEscape(did))
}

func (p *HTTPPool) GetAttrib(ctx context.Context, did, raw string) ([]byte, error) {
	return p.get(ctx, "/attrib/"+url.PathEscape(did)+"/"+url.PathEscape(raw))
}

func (p *HTTPPool) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *HTTPPool) get(ctx context.Context, path string) ([]byte, error) {
	select {
	case p.limiter <- struct{}{}:
		defer func() { <-p.limiter }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http-err-%d", resp.StatusCode)
	}
	return body, nil
}
