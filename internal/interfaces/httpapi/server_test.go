package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ringminter/internal/domain"
)

const testHash = "0x1111111111111111111111111111111111111111111111111111111111111111"

type mockStore struct {
	submissions []domain.Submission
	lastFilter  domain.SubmissionFilter
	pingErr     error
}

func (m *mockStore) QuerySubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	m.lastFilter = filter
	return m.submissions, nil
}

func (m *mockStore) GetSubmission(ctx context.Context, txHash string) (domain.Submission, bool, error) {
	for _, s := range m.submissions {
		if s.TxHash == txHash {
			return s, true, nil
		}
	}
	return domain.Submission{}, false, nil
}

func (m *mockStore) CountByStatus(ctx context.Context) (map[domain.SubmissionStatus]uint64, error) {
	counts := make(map[domain.SubmissionStatus]uint64)
	for _, s := range m.submissions {
		counts[s.Status]++
	}
	return counts, nil
}

func (m *mockStore) Ping(ctx context.Context) error { return m.pingErr }

type mockRPC struct {
	err error
}

func (m mockRPC) LatestBlockNumber(ctx context.Context) (uint64, error) { return 100, m.err }

func newTestServer(t *testing.T, store *mockStore, rpc RPCStatus) *Server {
	t.Helper()
	server, err := NewServer(store, rpc, nil, BuildInfo{Version: "1.2.3", Commit: "abc"})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func serve(server *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSubmissionsFilter(t *testing.T) {
	store := &mockStore{submissions: []domain.Submission{{
		ID:        "a",
		TxHash:    testHash,
		Function:  domain.FnMint,
		Status:    domain.StatusConfirmed,
		CreatedAt: time.Unix(1_700_000_000, 0),
	}}}
	server := newTestServer(t, store, nil)

	rec := serve(server, "/submissions?chain_id=11155111&function=mint&status=CONFIRMED&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.lastFilter.ChainID == nil || *store.lastFilter.ChainID != 11155111 {
		t.Fatalf("chain filter not applied: %+v", store.lastFilter)
	}
	if store.lastFilter.Status != domain.StatusConfirmed || store.lastFilter.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", store.lastFilter)
	}

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0]["tx_hash"] != testHash || body[0]["created_at"] != "2023-11-14T22:13:20Z" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestSubmissionsRejectsBadParams(t *testing.T) {
	server := newTestServer(t, &mockStore{}, nil)
	for _, target := range []string{
		"/submissions?status=pending",
		"/submissions?chain_id=x",
		"/submissions?from=0x123",
		"/submissions?tx_hash=0xzz",
		"/submissions?limit=-1",
	} {
		if rec := serve(server, target); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestSubmissionByHash(t *testing.T) {
	store := &mockStore{submissions: []domain.Submission{{ID: "a", TxHash: testHash, Status: domain.StatusReverted}}}
	server := newTestServer(t, store, nil)

	if rec := serve(server, "/submissions/"+testHash); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"reverted"`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	missing := "0x" + strings.Repeat("2", 64)
	if rec := serve(server, "/submissions/"+missing); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := serve(server, "/submissions/nothex"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	if rec := serve(newTestServer(t, &mockStore{}, nil), "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("expected ready without rpc, got %d", rec.Code)
	}
	if rec := serve(newTestServer(t, &mockStore{pingErr: errors.New("down")}, nil), "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on db failure, got %d", rec.Code)
	}
	if rec := serve(newTestServer(t, &mockStore{}, mockRPC{err: errors.New("down")}), "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on rpc failure, got %d", rec.Code)
	}
}

func TestMetricsAndVersion(t *testing.T) {
	store := &mockStore{submissions: []domain.Submission{
		{ID: "a", Status: domain.StatusConfirmed},
		{ID: "b", Status: domain.StatusFailed},
	}}
	server := newTestServer(t, store, nil)
	server.MetricsObserver().OnSubmissionEvent("broadcast")
	server.MetricsObserver().OnSubmissionEvent("broadcast")
	server.MetricsObserver().IncKafkaDecodeErr()
	server.MetricsObserver().ObserveKafkaMessage("ringminter-submissions", 0, 41, time.Now())

	body := serve(server, "/metrics").Body.String()
	for _, want := range []string{
		`ringminter_submission_events_total{type="broadcast"} 2`,
		"ringminter_kafka_decode_errors_total 1",
		"ringminter_kafka_messages_total 1",
		`ringminter_kafka_last_offset{topic="ringminter-submissions",partition="0"} 41`,
		`ringminter_journal_submissions{status="confirmed"} 1`,
		`ringminter_journal_submissions{status="failed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}

	rec := serve(server, "/version")
	if !strings.Contains(rec.Body.String(), `"version":"1.2.3"`) {
		t.Fatalf("unexpected version body: %s", rec.Body.String())
	}
}

func TestNewServerRequiresStore(t *testing.T) {
	if _, err := NewServer(nil, nil, nil, BuildInfo{}); err == nil {
		t.Fatalf("expected error")
	}
}
