//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	httpapi "github.com/dealdesk/dealdesk/internal/api/http"
	"github.com/dealdesk/dealdesk/internal/application/eligibility"
	"github.com/dealdesk/dealdesk/internal/application/engine"
	"github.com/dealdesk/dealdesk/internal/config"
	"github.com/dealdesk/dealdesk/internal/infrastructure/nlu"
	"github.com/dealdesk/dealdesk/internal/infrastructure/postgres"
	"github.com/dealdesk/dealdesk/internal/infrastructure/relay"
	"github.com/dealdesk/dealdesk/internal/infrastructure/sse"
	"github.com/dealdesk/dealdesk/internal/infrastructure/storage"
	"github.com/dealdesk/dealdesk/internal/migrations"
)

const testUsername = "operator"
const testPassword = "S3cure!Passw0rd"
const testRelayToken = "relay-secret"

// relayStub records everything dealdesk would have sent through the
// chat relay.
type relayStub struct {
	mu       sync.Mutex
	requests []relayRequest
}

type relayRequest struct {
	path string
	body map[string]interface{}
}

func (rs *relayStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		rs.mu.Lock()
		rs.requests = append(rs.requests, relayRequest{path: r.URL.Path, body: body})
		rs.mu.Unlock()
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"attachments": [][]byte{}})
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func (rs *relayStub) operatorMessageContaining(substr string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, req := range rs.requests {
		if req.path != "/v1/operator/messages" {
			continue
		}
		if text, _ := req.body["text"].(string); strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

func TestHappyPathOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	// A channel offer naming the mess opens a negotiation.
	resp := env.postInbound(t, map[string]interface{}{
		"sender_id":   "seller-int",
		"sender_name": "Ravi",
		"text":        "Selling lunch coupon from north mess, dm me",
	})
	if resp["handled"] != "offer" {
		t.Fatalf("offer not accepted: %v", resp)
	}
	conversationID, _ := resp["conversation_id"].(string)
	if conversationID == "" {
		t.Fatalf("missing conversation_id: %v", resp)
	}

	env.postInbound(t, map[string]interface{}{
		"sender_id": "seller-int",
		"text":      "yes, still available",
	})
	env.postInbound(t, map[string]interface{}{
		"sender_id": "seller-int",
		"text":      "you can pay me at ravi@okaxis",
	})

	env.waitForState(t, conversationID, "PAYMENT_PENDING")
	if !env.relay.operatorMessageContaining("Purchase approval needed") {
		t.Fatalf("purchase checkpoint was not announced to the operator")
	}

	env.decideCheckpoint(t, conversationID, "purchase", true)
	env.waitFor(t, func() bool {
		return env.relay.operatorMessageContaining("then confirm the payment")
	}, "payment instruction not sent to operator")

	env.decideCheckpoint(t, conversationID, "payment", true)
	env.waitForState(t, conversationID, "AWAITING_COUPON")

	env.postInbound(t, map[string]interface{}{
		"sender_id":  "seller-int",
		"text":       "",
		"attachment": base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
	})
	env.waitForState(t, conversationID, "COMPLETED")

	var out struct {
		Outcomes []map[string]interface{} `json:"outcomes"`
	}
	env.getJSON(t, "/v1/outcomes", &out)
	if len(out.Outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(out.Outcomes))
	}
}

func TestOperatorDeclineOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	resp := env.postInbound(t, map[string]interface{}{
		"sender_id":   "seller-dec",
		"sender_name": "Asha",
		"text":        "anyone wants a lunch coupon? north mess",
	})
	conversationID, _ := resp["conversation_id"].(string)
	if conversationID == "" {
		t.Fatalf("offer not accepted: %v", resp)
	}

	env.postInbound(t, map[string]interface{}{
		"sender_id": "seller-dec",
		"text":      "yes",
	})
	env.postInbound(t, map[string]interface{}{
		"sender_id": "seller-dec",
		"text":      "asha@oksbi",
	})
	env.waitForState(t, conversationID, "PAYMENT_PENDING")

	env.decideCheckpoint(t, conversationID, "purchase", false)
	env.waitForState(t, conversationID, "FAILED")
}

func TestInboundRejectsBadRelayToken(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	body, _ := json.Marshal(map[string]interface{}{"sender_id": "x", "text": "hi"})
	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/v1/inbound", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Relay-Token", "wrong")
	resp, err := env.httpClient.Do(req)
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

type testEnv struct {
	server     *httptest.Server
	relay      *relayStub
	token      string
	httpClient *http.Client
	cleanup    func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := testDatabaseURL(t)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("db pool: %v", err)
	}
	if err := postgres.RunMigrations(ctx, pool, migrations.FS); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	if err := resetDatabase(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("reset db: %v", err)
	}

	logger := zerolog.Nop()
	stub := &relayStub{}
	relaySrv := httptest.NewServer(stub.handler())

	settings := config.Settings{
		Categories: map[string]config.CategorySettings{
			"LUNCH":  {TargetPrice: 60, Messes: []string{"north mess"}, Window: "hour >= 0"},
			"DINNER": {TargetPrice: 70, Window: "hour >= 0"},
		},
	}

	convRepo := postgres.NewConversationRepository(pool)
	outcomeRepo := postgres.NewOutcomeRepository(pool)
	sseHub := sse.NewHub(logger)
	transport := relay.NewClient(relaySrv.URL, "token", logger)
	classifier := nlu.NewKeywordClassifier(logger)
	oracle := eligibility.NewService(settings, logger)
	store := storage.NewLocalStore(t.TempDir(), logger)

	eng := engine.New(convRepo, outcomeRepo, transport, classifier, oracle, store, sseHub, engine.DefaultConfig(), logger)

	passHash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	apiServer := httpapi.NewServer(eng, oracle, outcomeRepo, sseHub, testUsername, string(passHash), testRelayToken, time.Hour, logger)
	server := httptest.NewServer(apiServer.Router())

	env := &testEnv{
		server:     server,
		relay:      stub,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cleanup: func() {
			server.Close()
			eng.Shutdown()
			sseHub.Stop()
			relaySrv.Close()
			pool.Close()
		},
	}
	env.token = env.login(t)
	return env
}

func (env *testEnv) login(t *testing.T) string {
	t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	env.postJSON(t, "/v1/auth/login", map[string]string{
		"username": testUsername,
		"password": testPassword,
	}, &out, "")
	if out.Token == "" {
		t.Fatalf("login returned no token")
	}
	return out.Token
}

func (env *testEnv) postInbound(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/v1/inbound", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("inbound request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Relay-Token", testRelayToken)
	resp, err := env.httpClient.Do(req)
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("inbound status %d: %s", resp.StatusCode, string(raw))
	}
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode inbound response: %v", err)
	}
	return out
}

func (env *testEnv) decideCheckpoint(t *testing.T, conversationID, kind string, approved bool) {
	t.Helper()
	env.postJSON(t, "/v1/negotiations/"+conversationID+"/checkpoints/"+kind,
		map[string]bool{"approved": approved}, nil, env.token)
}

func (env *testEnv) postJSON(t *testing.T, path string, body, out interface{}, token string) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, env.server.URL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.httpClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("post %s status %d: %s", path, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func (env *testEnv) getJSON(t *testing.T, path string, out interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, env.server.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+env.token)
	resp, err := env.httpClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("get %s status %d: %s", path, resp.StatusCode, string(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (env *testEnv) waitForState(t *testing.T, conversationID, state string) {
	t.Helper()
	env.waitFor(t, func() bool {
		var out struct {
			Negotiations []struct {
				ID    string `json:"id"`
				State string `json:"state"`
			} `json:"negotiations"`
		}
		env.getJSON(t, "/v1/negotiations", &out)
		for _, n := range out.Negotiations {
			if n.ID == conversationID && n.State == state {
				return true
			}
		}
		return false
	}, "conversation "+conversationID+" never reached "+state)
}

func (env *testEnv) waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	t.Skip("TEST_DATABASE_URL not set; skipping integration tests")
	return ""
}

func resetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `TRUNCATE TABLE outcomes, conversations RESTART IDENTITY CASCADE`)
	return err
}
