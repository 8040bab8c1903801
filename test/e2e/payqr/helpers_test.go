package payqr_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	httpapi "github.com/tabletap/payqr/internal/payqr/http"
	"github.com/tabletap/payqr/internal/payqr/notify"
	"github.com/tabletap/payqr/internal/payqr/service"
	"github.com/tabletap/payqr/internal/payqr/store/drivers/sqlite"
	"github.com/tabletap/payqr/pkg/cryptox"
	"github.com/tabletap/payqr/pkg/jwtx"
	"github.com/tabletap/payqr/pkg/slogx"
)

const (
	terminalAPIKey = "e2e-terminal-key"
	tokenTTL       = 5 * time.Minute
)

// testEnv is a fully wired service behind an httptest server, with the
// clock injectable so expiry scenarios do not sleep.
type testEnv struct {
	Server *httptest.Server
	Now    func() time.Time

	issuer    *service.IssuerService
	validator *service.ValidatorService
	confirmer *service.ConfirmerService
}

// advance shifts the injected clock forward for every service at once.
func (e *testEnv) advance(d time.Duration) {
	base := time.Now().UTC().Add(d)
	now := func() time.Time { return base }
	e.issuer.Now = now
	e.validator.Now = now
	e.confirmer.Now = now
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "payqr.db") + "?_pragma=busy_timeout(5000)"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, err := jwtx.NewHS256(
		[]byte("e2e-signing-secret-that-is-32-bytes!"),
		"payqr-e2e",
		[]string{"payqr-terminal"},
	)
	require.NoError(t, err)

	logger := slogx.New(slogx.Config{Service: "payqr-e2e", Level: "error", Format: "text"})
	audit := &service.AuditRecorder{Store: st}
	hub := notify.NewHub()

	env := &testEnv{
		issuer: &service.IssuerService{
			Store:    st,
			Signer:   signer,
			TTL:      tokenTTL,
			Audience: []string{"payqr-terminal"},
		},
		validator: &service.ValidatorService{Store: st, Signer: signer, Audit: audit},
		confirmer: &service.ConfirmerService{Store: st, Audit: audit, Notifier: hub},
	}

	keyHash, err := cryptox.HashAPIKey(terminalAPIKey)
	require.NoError(t, err)

	router := httpapi.NewRouter("e2e", st, logger)
	router.TerminalAPIKeyHash = keyHash
	router.OrderService = &service.OrderService{Store: st}
	router.IssuerService = env.issuer
	router.Validator = env.validator
	router.Confirmer = env.confirmer
	router.AuditRecorder = audit
	router.Hub = hub
	router.ApplyRoutes()

	env.Server = httptest.NewServer(router)
	t.Cleanup(env.Server.Close)

	return env
}

// postJSON sends a JSON request and decodes the JSON response into out
// (when out is non-nil). withKey attaches the terminal API key.
func postJSON(t *testing.T, url string, body any, out any, withKey bool) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", "e2e-device")
	if withKey {
		req.Header.Set("X-API-Key", terminalAPIKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out), "body: %s", data)
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any, withKey bool) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if withKey {
		req.Header.Set("X-API-Key", terminalAPIKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
