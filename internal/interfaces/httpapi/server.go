package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"ringminter/internal/application"
	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RPCStatus is optional; readiness checks the node only when one is set.
type RPCStatus interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	store     application.JournalStore
	rpc       RPCStatus
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(store application.JournalStore, rpc RPCStatus, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if store == nil {
		return nil, errors.New("journal store is required")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{store: store, rpc: rpc, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /submissions", s.handleSubmissions)
	mux.HandleFunc("GET /submissions/{hash}", s.handleSubmission)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db not ready")
		return
	}
	if s.rpc != nil {
		if _, err := s.rpc.LatestBlockNumber(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "rpc not ready")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSubmissionFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	submissions, err := s.store.QuerySubmissions(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	views := make([]submissionView, 0, len(submissions))
	for _, submission := range submissions {
		views = append(views, toView(submission))
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if !isTxHash(hash) {
		respondError(w, http.StatusBadRequest, "invalid tx hash")
		return
	}
	submission, ok, err := s.store.GetSubmission(r.Context(), hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "submission not found")
		return
	}
	respondJSON(w, http.StatusOK, toView(submission))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	snap := s.metrics.Snapshot()

	fmt.Fprintf(w, "ringminter_uptime_seconds %.0f\n", time.Since(snap.StartTime).Seconds())
	types := make([]string, 0, len(snap.Events))
	for msgType := range snap.Events {
		types = append(types, msgType)
	}
	slices.Sort(types)
	for _, msgType := range types {
		fmt.Fprintf(w, "ringminter_submission_events_total{type=%q} %d\n", msgType, snap.Events[msgType])
	}
	fmt.Fprintf(w, "ringminter_kafka_messages_total %d\n", snap.KafkaMessages)
	fmt.Fprintf(w, "ringminter_kafka_decode_errors_total %d\n", snap.KafkaDecodeErrs)
	fmt.Fprintf(w, "ringminter_kafka_fetch_errors_total %d\n", snap.KafkaFetchErrs)
	fmt.Fprintf(w, "ringminter_journal_flush_errors_total %d\n", snap.FlushErrs)
	if snap.KafkaLastTopic != "" {
		fmt.Fprintf(w, "ringminter_kafka_last_offset{topic=%q,partition=\"%d\"} %d\n", snap.KafkaLastTopic, snap.KafkaLastPart, snap.KafkaLastOffset)
	}
	fmt.Fprintf(w, "ringminter_kafka_lag_seconds %.3f\n", snap.KafkaLastLag.Seconds())
	fmt.Fprintf(w, "ringminter_kafka_max_lag_seconds %.3f\n", snap.KafkaMaxLag.Seconds())

	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		return
	}
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, string(status))
	}
	slices.Sort(statuses)
	for _, status := range statuses {
		fmt.Fprintf(w, "ringminter_journal_submissions{status=%q} %d\n", status, counts[domain.SubmissionStatus(status)])
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

type submissionView struct {
	ID          string `json:"id"`
	ChainID     uint64 `json:"chain_id"`
	TxHash      string `json:"tx_hash,omitempty"`
	Function    string `json:"function"`
	Category    string `json:"category"`
	From        string `json:"from"`
	To          string `json:"to"`
	Nonce       uint64 `json:"nonce"`
	Value       string `json:"value"`
	Gas         uint64 `json:"gas"`
	GasPrice    string `json:"gas_price"`
	Status      string `json:"status"`
	Stage       string `json:"stage,omitempty"`
	Error       string `json:"error,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toView(s domain.Submission) submissionView {
	return submissionView{
		ID:          s.ID,
		ChainID:     s.ChainID,
		TxHash:      s.TxHash,
		Function:    s.Function,
		Category:    string(s.Category),
		From:        s.From,
		To:          s.To,
		Nonce:       s.Nonce,
		Value:       s.Value,
		Gas:         s.Gas,
		GasPrice:    s.GasPrice,
		Status:      string(s.Status),
		Stage:       s.Stage,
		Error:       s.Error,
		BlockNumber: s.BlockNumber,
		GasUsed:     s.GasUsed,
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSubmissionFilter(r *http.Request) (domain.SubmissionFilter, error) {
	query := r.URL.Query()
	limit, err := parseLimit(r)
	if err != nil {
		return domain.SubmissionFilter{}, err
	}
	filter := domain.SubmissionFilter{
		Function: query.Get("function"),
		Limit:    limit,
	}
	if raw := query.Get("chain_id"); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return domain.SubmissionFilter{}, errors.New("invalid chain_id")
		}
		filter.ChainID = &value
	}
	if raw := query.Get("status"); raw != "" {
		status := domain.SubmissionStatus(strings.ToLower(raw))
		if !status.Valid() {
			return domain.SubmissionFilter{}, errors.New("invalid status")
		}
		filter.Status = status
	}
	if raw := query.Get("from"); raw != "" {
		if !common.IsHexAddress(raw) {
			return domain.SubmissionFilter{}, errors.New("invalid from address")
		}
		filter.From = strings.ToLower(raw)
	}
	if raw := query.Get("tx_hash"); raw != "" {
		if !isTxHash(raw) {
			return domain.SubmissionFilter{}, errors.New("invalid tx_hash")
		}
		filter.TxHash = strings.ToLower(raw)
	}
	return filter, nil
}

func isTxHash(raw string) bool {
	decoded, err := hexutil.Decode(raw)
	return err == nil && len(decoded) == common.HashLength
}

func parseLimit(r *http.Request) (int, error) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, errors.New("invalid limit")
		}
		return value, nil
	}
	return 100, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
