package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"CoVault/internal/core"
	"CoVault/internal/ingestion"
	"CoVault/internal/ledger"
	"CoVault/internal/observability"
	"CoVault/internal/persistence"
	"CoVault/internal/projection"
	"CoVault/internal/query"
	"CoVault/internal/vault"
)

// HTTPServer serves the JSON read API from projection tables, the
// operator deposit injection path, and the admin endpoints. Writes of
// domain commands normally arrive over NATS; the HTTP surface is the
// synchronous low-volume path.
type HTTPServer struct {
	httpServer    *http.Server
	db            *sql.DB
	queryService  *query.QueryService
	submitter     *ingestion.Submitter
	snapshotMgr   *persistence.SnapshotManager
	healthChecker *observability.HealthChecker
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// HTTPDeps holds the dependencies wired in by the orchestrator.
type HTTPDeps struct {
	DB            *sql.DB
	QueryService  *query.QueryService
	Submitter     *ingestion.Submitter
	SnapshotMgr   *persistence.SnapshotManager
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
}

func NewHTTPServer(addr string, deps *HTTPDeps) *HTTPServer {
	s := &HTTPServer{
		db:            deps.DB,
		queryService:  deps.QueryService,
		submitter:     deps.Submitter,
		snapshotMgr:   deps.SnapshotMgr,
		healthChecker: deps.HealthChecker,
		metrics:       deps.Metrics,
		logger:        observability.NewLogger("http"),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/vaults", s.handleListVaults)
	mux.HandleFunc("GET /v1/vaults/{vault_id}", s.handleGetVault)
	mux.HandleFunc("GET /v1/vaults/{vault_id}/contributions", s.handleListContributions)
	mux.HandleFunc("GET /v1/vaults/{vault_id}/contributions/{participant}", s.handleGetContribution)

	mux.HandleFunc("GET /v1/wallets/{participant}", s.handleGetWallet)
	mux.HandleFunc("GET /v1/wallets/{participant}/journal", s.handleGetJournal)
	mux.HandleFunc("GET /v1/wallets/{participant}/settlements", s.handleGetSettlements)
	mux.HandleFunc("POST /v1/wallets/{participant}/deposits", s.handleWalletDeposit)

	mux.HandleFunc("POST /v1/admin/projections/rebuild", s.handleRebuildProjections)
	mux.HandleFunc("GET /v1/admin/integrity", s.handleVerifyIntegrity)
	mux.HandleFunc("GET /v1/admin/eventlog", s.handleEventLogInfo)

	mux.Handle("GET /metrics", promhttp.Handler())
	if s.healthChecker != nil {
		mux.HandleFunc("GET /healthz", s.healthChecker.LivenessHandler)
		mux.HandleFunc("GET /readyz", s.healthChecker.ReadinessHandler)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start runs the HTTP server (blocking) until ctx is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// --- vault queries ---

func (s *HTTPServer) handleListVaults(w http.ResponseWriter, r *http.Request) {
	defer s.observeQuery("list_vaults", time.Now())

	var state *string
	if v := r.URL.Query().Get("state"); v != "" {
		state = &v
	}
	var after *string
	if v := r.URL.Query().Get("after"); v != "" {
		after = &v
	}
	limit := parseLimit(r, 50, 200)

	vaults, err := s.queryService.ListVaults(r.Context(), state, limit, after)
	if err != nil {
		s.writeError(w, "list_vaults", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vaults": vaults})
}

func (s *HTTPServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	defer s.observeQuery("get_vault", time.Now())

	v, err := s.queryService.GetVault(r.Context(), r.PathValue("vault_id"))
	if err != nil {
		s.writeError(w, "get_vault", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *HTTPServer) handleListContributions(w http.ResponseWriter, r *http.Request) {
	defer s.observeQuery("list_contributions", time.Now())

	contributions, err := s.queryService.ListContributions(r.Context(), r.PathValue("vault_id"))
	if err != nil {
		s.writeError(w, "list_contributions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contributions": contributions})
}

func (s *HTTPServer) handleGetContribution(w http.ResponseWriter, r *http.Request) {
	defer s.observeQuery("get_contribution", time.Now())

	participant, err := uuid.Parse(r.PathValue("participant"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid participant id"))
		return
	}

	c, err := s.queryService.GetContribution(r.Context(), r.PathValue("vault_id"), participant)
	if err != nil {
		s.writeError(w, "get_contribution", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- wallet queries and deposit injection ---

func (s *HTTPServer) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	defer s.observeQuery("get_wallet", time.Now())

	participant, err := uuid.Parse(r.PathValue("participant"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid participant id"))
		return
	}

	bal, err := s.queryService.GetWalletBalance(r.Context(), participant)
	if err != nil {
		s.writeError(w, "get_wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (s *HTTPServer) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	defer s.observeQuery("get_journal", time.Now())

	participant, err := uuid.Parse(r.PathValue("participant"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid participant id"))
		return
	}

	limit := parseLimit(r, 100, 500)
	after := parseAfterSequence(r)

	entries, err := s.queryService.GetJournalHistory(r.Context(), participant, limit, after)
	if err != nil {
		s.writeError(w, "get_journal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"journals": entries})
}

func (s *HTTPServer) handleGetSettlements(w http.ResponseWriter, r *http.Request) {
	defer s.observeQuery("get_settlements", time.Now())

	participant, err := uuid.Parse(r.PathValue("participant"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid participant id"))
		return
	}

	var vaultID *string
	if v := r.URL.Query().Get("vault_id"); v != "" {
		vaultID = &v
	}
	limit := parseLimit(r, 50, 200)
	after := parseAfterSequence(r)

	settlements, err := s.queryService.GetSettlementHistory(r.Context(), participant, vaultID, limit, after)
	if err != nil {
		s.writeError(w, "get_settlements", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"settlements": settlements})
}

type walletDepositRequest struct {
	Amount int64 `json:"amount"`
}

func (s *HTTPServer) handleWalletDeposit(w http.ResponseWriter, r *http.Request) {
	participant, err := uuid.Parse(r.PathValue("participant"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid participant id"))
		return
	}

	var req walletDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("amount must be positive"))
		return
	}

	if err := s.submitter.InjectWalletDeposit(r.Context(), participant, req.Amount); err != nil {
		s.writeError(w, "wallet_deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": true})
}

// --- admin ---

func (s *HTTPServer) handleRebuildProjections(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := projection.RebuildProjections(r.Context(), s.db); err != nil {
		s.writeError(w, "rebuild_projections", err)
		return
	}
	s.logger.Info().Dur("took", time.Since(start)).Msg("projection rebuild complete")
	writeJSON(w, http.StatusOK, map[string]interface{}{"rebuilt": true})
}

func (s *HTTPServer) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queryService.VerifyIntegrity(r.Context())
	if err != nil {
		s.writeError(w, "verify_integrity", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleEventLogInfo(w http.ResponseWriter, r *http.Request) {
	latestSeq, err := s.snapshotMgr.GetLatestSequence(r.Context())
	if err != nil {
		s.writeError(w, "eventlog_info", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"last_sequence": latestSeq})
}

// --- helpers ---

func (s *HTTPServer) observeQuery(name string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueryRequests.WithLabelValues(name).Inc()
	s.metrics.QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// writeError maps domain errors to HTTP statuses: missing entities are
// 404, authorization failures 403, precondition failures 409, everything
// else 500.
func (s *HTTPServer) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, query.ErrNotFound),
		errors.Is(err, vault.ErrVaultNotFound),
		errors.Is(err, vault.ErrNoContributionRecorded):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))

	case errors.Is(err, core.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errorBody(err.Error()))

	case errors.Is(err, vault.ErrVaultAlreadyExists),
		errors.Is(err, vault.ErrVaultNotInFundingProcess),
		errors.Is(err, vault.ErrVaultCannotBeFinished),
		errors.Is(err, vault.ErrInsufficientContributionInVault),
		errors.Is(err, vault.ErrDivisionByZero),
		errors.Is(err, ledger.ErrInsufficientSpendingWalletBalance):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))

	case errors.Is(err, vault.ErrInvalidScheduleRange),
		errors.Is(err, ledger.ErrInvalidMoneyTransfer):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))

	default:
		s.logger.Error().Err(err).Str("op", op).Msg("request failed")
		if s.metrics != nil {
			s.metrics.QueryErrors.WithLabelValues(op).Inc()
		}
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func parseLimit(r *http.Request, def, max int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}

func parseAfterSequence(r *http.Request) *int64 {
	v := r.URL.Query().Get("after_sequence")
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
