package btcr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/b-open-io/did-resolver/pkg/driver"
)

// maxContinuationSize bounds the continuation document body.
const maxContinuationSize = 1 << 20

// fetchContinuation loads the continuation document referenced by the tip
// transaction. A body wrapping a non-empty "didDocument" is unwrapped, with
// the outer @context copied down when the inner object has none. Any other
// body yields an empty document carrying only the identifier.
func (d *Driver) fetchContinuation(ctx context.Context, identifier, uri string) (*did.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, driver.Fail(driver.ErrContinuationFetch, identifier, fmt.Errorf("%s: %w", uri, err))
	}
	req.Header.Set("Accept", "application/ld+json, application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, driver.Fail(driver.ErrContinuationFetch, identifier, fmt.Errorf("%s: %w", uri, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, driver.Failf(driver.ErrContinuationFetch, identifier, "http-err-%d from %s", resp.StatusCode, uri)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContinuationSize))
	if err != nil {
		return nil, driver.Fail(driver.ErrContinuationFetch, identifier, fmt.Errorf("%s: %w", uri, err))
	}

	var outer map[string]json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, driver.Fail(driver.ErrContinuationFetch, identifier, fmt.Errorf("%s: invalid json: %w", uri, err))
	}

	var inner map[string]json.RawMessage
	if raw, ok := outer["didDocument"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, driver.Fail(driver.ErrContinuationFetch, identifier, fmt.Errorf("%s: invalid didDocument: %w", uri, err))
		}
	}
	if len(inner) == 0 {
		return &did.Document{ID: identifier}, nil
	}

	if _, ok := inner["@context"]; !ok {
		if ctxValue, ok := outer["@context"]; ok {
			inner["@context"] = ctxValue
		}
	}

	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, driver.Fail(driver.ErrContinuationFetch, identifier, err)
	}
	doc := &did.Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, driver.Fail(driver.ErrContinuationFetch, identifier, fmt.Errorf("%s: invalid didDocument: %w", uri, err))
	}
	return doc, nil
}
