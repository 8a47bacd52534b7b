package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/b-open-io/did-resolver/pkg/btcr"
	"github.com/b-open-io/did-resolver/pkg/store"
)

var (
	txidA = strings.Repeat("a", 64)
	txidB = strings.Repeat("b", 64)
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	s, err := store.NewBadgerStoreFromConfig(&store.BadgerConfig{InMemory: true, LogLevel: "error"}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := &Config{Mode: ModeEnabled, Routes: RoutesConfig{Enabled: true, Prefix: "/admin"}}
	svc, err := cfg.Initialize(context.Background(), nil, &InitializeDeps{Index: btcr.NewAnchorIndex(s, nil)})
	if err != nil || svc.Routes == nil {
		t.Fatalf("initialize: %v", err)
	}

	app := fiber.New()
	svc.Routes.Register(app.Group(cfg.Routes.Prefix))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestAnchorRoutes(t *testing.T) {
	app := newTestApp(t)

	body := `[
		{"chain": "testnet", "blockHeight": 1201739, "transactionPosition": 2, "txid": "` + txidA + `", "inputScriptPubKey": "02aa", "spentIn": "` + txidB + `"},
		{"chain": "TESTNET", "blockHeight": 1201800, "transactionPosition": 5, "txid": "` + txidB + `", "inputScriptPubKey": "02bb", "continuationUri": "https://example.com/ddo"}
	]`
	status, out := do(t, app, http.MethodPost, "/admin/anchors", body)
	if status != http.StatusOK || !strings.Contains(out, `"written":2`) {
		t.Fatalf("post = %d %s", status, out)
	}

	status, out = do(t, app, http.MethodGet, "/admin/anchors/testnet/"+txidB, "")
	if status != http.StatusOK {
		t.Fatalf("get = %d %s", status, out)
	}
	var entry btcr.AnchorEntry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if entry.ContinuationURI != "https://example.com/ddo" || entry.BlockHeight != 1201800 {
		t.Errorf("unexpected entry %+v", entry)
	}

	status, out = do(t, app, http.MethodGet, "/admin/anchors?chain=testnet", "")
	var entries []btcr.AnchorEntry
	if status != http.StatusOK || json.Unmarshal([]byte(out), &entries) != nil || len(entries) != 2 {
		t.Errorf("list = %d %s", status, out)
	}

	status, _ = do(t, app, http.MethodDelete, "/admin/anchors/TESTNET/"+txidA, "")
	if status != http.StatusOK {
		t.Errorf("delete = %d", status)
	}
	status, _ = do(t, app, http.MethodGet, "/admin/anchors/TESTNET/"+txidA, "")
	if status != http.StatusNotFound {
		t.Errorf("get after delete = %d", status)
	}
}

func TestAnchorRoutesRejectBadInput(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid json", http.MethodPost, "/admin/anchors", `{`, http.StatusBadRequest},
		{"invalid entry", http.MethodPost, "/admin/anchors", `[{"chain": "TESTNET", "txid": "zz"}]`, http.StatusBadRequest},
		{"invalid chain", http.MethodGet, "/admin/anchors/regtest/" + txidA, "", http.StatusBadRequest},
		{"invalid list chain", http.MethodGet, "/admin/anchors?chain=signet", "", http.StatusBadRequest},
		{"missing", http.MethodDelete, "/admin/anchors/MAINNET/" + txidA, "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := do(t, app, tt.method, tt.path, tt.body)
			if status != tt.want {
				t.Errorf("status = %d, want %d: %s", status, tt.want, out)
			}
		})
	}
}

func TestInitializeWithoutIndex(t *testing.T) {
	svc, err := (&Config{Mode: ModeEnabled, Routes: RoutesConfig{Enabled: true}}).Initialize(context.Background(), nil, &InitializeDeps{})
	if err != nil || svc == nil || svc.Routes != nil {
		t.Errorf("expected services without routes, got %+v, %v", svc, err)
	}
	svc, err = (&Config{Mode: ModeDisabled}).Initialize(context.Background(), nil, nil)
	if err != nil || svc != nil {
		t.Errorf("disabled admin must return nil services")
	}
}
