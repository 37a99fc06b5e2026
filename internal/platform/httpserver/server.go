package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	ballotoffice "ballotbox/contexts/governance/ballot-office"
	balloterrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	ballothttp "ballotbox/contexts/governance/ballot-office/transport/http"
	electionengine "ballotbox/contexts/governance/election-engine"
	electionerrors "ballotbox/contexts/governance/election-engine/domain/errors"
	electionhttp "ballotbox/contexts/governance/election-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "ballotbox/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	ballots   ballotoffice.Module
	elections electionengine.Module
}

func New(
	ballots ballotoffice.Module,
	elections electionengine.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		ballots:   ballots,
		elections: elections,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/v1/elections", s.handleCreateElection)
	s.mux.HandleFunc("GET /api/v1/elections", s.handleListElections)
	s.mux.HandleFunc("GET /api/v1/elections/{election_id}", s.handleElectionDetail)
	s.mux.HandleFunc("PATCH /api/v1/elections/{election_id}", s.handleUpdateElection)
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/open", s.handleOpenElection)
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/close", s.handleCloseElection)
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/cancel", s.handleCancelElection)
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/finalize", s.handleFinalizeElection)
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/rollback", s.handleRollbackElection)
	s.mux.HandleFunc("GET /api/v1/elections/{election_id}/results", s.handleResults)
	s.mux.HandleFunc("GET /api/v1/elections/{election_id}/rollback-history", s.handleRollbackHistory)
	s.mux.HandleFunc("GET /api/v1/elections/{election_id}/runoff-chain", s.handleRunoffChain)

	s.mux.HandleFunc("GET /api/v1/ballots/{token}", s.handleBallotView)
	s.mux.HandleFunc("POST /api/v1/ballots/{token}/votes", s.handleCastAnonymousVote)
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /api/v1/votes/{vote_id}/retract", s.handleRetractVote)
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/tokens", s.handleIssueTokens)
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/overrides", s.handleApplyOverride)
	s.mux.HandleFunc("POST /api/v1/elections/{election_id}/proxies", s.handleRegisterProxy)
	s.mux.HandleFunc("GET /api/v1/elections/{election_id}/audit", s.handleAuditTrail)
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if strings.TrimSpace(userID) == "" {
		writeElectionError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	var req electionhttp.CreateElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.elections.Handler.CreateElectionHandler(r.Context(), userID, req)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	resp, err := s.elections.Handler.ElectionListHandler(r.Context(), orgID)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleElectionDetail(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.ElectionDetailHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateElection(w http.ResponseWriter, r *http.Request) {
	var req electionhttp.UpdateElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.elections.Handler.UpdateElectionHandler(r.Context(), r.PathValue("election_id"), req)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.OpenElectionHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.CloseElectionHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.CancelElectionHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFinalizeElection(w http.ResponseWriter, r *http.Request) {
	officerID := r.Header.Get("X-User-Id")
	var req electionhttp.FinalizeElectionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}
	resp, err := s.elections.Handler.FinalizeElectionHandler(r.Context(), r.PathValue("election_id"), officerID, req)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRollbackElection(w http.ResponseWriter, r *http.Request) {
	officerID := r.Header.Get("X-User-Id")
	if strings.TrimSpace(officerID) == "" {
		writeElectionError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	var req electionhttp.RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.elections.Handler.RollbackElectionHandler(r.Context(), r.PathValue("election_id"), officerID, req)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.ResultsHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRollbackHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.RollbackHistoryHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunoffChain(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.RunoffChainHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBallotView(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.BallotViewHandler(r.Context(), r.PathValue("token"))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastAnonymousVote(w http.ResponseWriter, r *http.Request) {
	var req ballothttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballots.Handler.CastAnonymousVoteHandler(r.Context(), r.PathValue("token"), req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if strings.TrimSpace(userID) == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	var req ballothttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballots.Handler.CastVoteHandler(r.Context(), r.PathValue("election_id"), userID, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRetractVote(w http.ResponseWriter, r *http.Request) {
	officerID := r.Header.Get("X-User-Id")
	if strings.TrimSpace(officerID) == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	var req ballothttp.RetractVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.ballots.Handler.RetractVoteHandler(r.Context(), r.PathValue("vote_id"), officerID, req); err != nil {
		writeBallotDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIssueTokens(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.IssueTokensHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApplyOverride(w http.ResponseWriter, r *http.Request) {
	officerID := r.Header.Get("X-User-Id")
	if strings.TrimSpace(officerID) == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	var req ballothttp.OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballots.Handler.ApplyOverrideHandler(r.Context(), r.PathValue("election_id"), officerID, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegisterProxy(w http.ResponseWriter, r *http.Request) {
	var req ballothttp.RegisterProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballots.Handler.RegisterProxyHandler(r.Context(), r.PathValue("election_id"), req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.AuditTrailHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeBallotDomainError keeps voter-facing messages plain: a duplicate cast
// or an exhausted token reads as an explanation, not a storage detail.
func writeBallotDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, balloterrors.ErrElectionNotFound),
		errors.Is(err, balloterrors.ErrVoteNotFound),
		errors.Is(err, balloterrors.ErrTokenNotFound):
		writeBallotError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, balloterrors.ErrPositionNotFound),
		errors.Is(err, balloterrors.ErrInvalidCandidate),
		errors.Is(err, balloterrors.ErrInvalidRank),
		errors.Is(err, balloterrors.ErrInvalidVoteInput):
		writeBallotError(w, http.StatusBadRequest, "invalid_vote", err.Error())
	case errors.Is(err, balloterrors.ErrElectionNotOpen):
		writeBallotError(w, http.StatusConflict, "election_not_open", "this election is not accepting votes")
	case errors.Is(err, balloterrors.ErrBallotModeMismatch):
		writeBallotError(w, http.StatusConflict, "ballot_mode_mismatch", "this election does not accept that kind of ballot")
	case errors.Is(err, balloterrors.ErrDuplicateVote):
		writeBallotError(w, http.StatusConflict, "duplicate_vote", "a vote was already recorded for this position")
	case errors.Is(err, balloterrors.ErrRevoteBlocked):
		writeBallotError(w, http.StatusConflict, "revote_blocked", "re-voting requires an officer grant")
	case errors.Is(err, balloterrors.ErrAlreadyRetracted):
		writeBallotError(w, http.StatusConflict, "already_retracted", err.Error())
	case errors.Is(err, balloterrors.ErrNotEligible):
		writeBallotError(w, http.StatusForbidden, "not_eligible", "you are not eligible to vote for this position")
	case errors.Is(err, balloterrors.ErrTokenExpired):
		writeBallotError(w, http.StatusGone, "token_expired", "this voting link has expired")
	case errors.Is(err, balloterrors.ErrTokenPositionUsed):
		writeBallotError(w, http.StatusConflict, "token_used", "this voting link was already used for that position")
	case errors.Is(err, balloterrors.ErrUnresolvableRule):
		writeBallotError(w, http.StatusUnprocessableEntity, "unresolvable_rule", err.Error())
	case errors.Is(err, balloterrors.ErrUnknownOverrideTarget),
		errors.Is(err, balloterrors.ErrOverrideReasonMissing):
		writeBallotError(w, http.StatusBadRequest, "invalid_override", err.Error())
	case errors.Is(err, balloterrors.ErrProxyNotAuthorized),
		errors.Is(err, balloterrors.ErrProxySelfDelegation),
		errors.Is(err, balloterrors.ErrDelegatorAlreadyVoted),
		errors.Is(err, balloterrors.ErrProxyAlreadyExercised):
		writeBallotError(w, http.StatusForbidden, "proxy_rejected", err.Error())
	case errors.Is(err, balloterrors.ErrConflict):
		writeBallotError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeBallotError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeElectionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, electionerrors.ErrElectionNotFound),
		errors.Is(err, electionerrors.ErrPositionNotFound):
		writeElectionError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, electionerrors.ErrInvalidConfig):
		writeElectionError(w, http.StatusUnprocessableEntity, "invalid_config", err.Error())
	case errors.Is(err, electionerrors.ErrInvalidInput):
		writeElectionError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, electionerrors.ErrInvalidTransition):
		writeElectionError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, electionerrors.ErrCandidatesPending):
		writeElectionError(w, http.StatusConflict, "candidates_pending", err.Error())
	case errors.Is(err, electionerrors.ErrQuorumNotMet):
		writeElectionError(w, http.StatusConflict, "quorum_not_met", err.Error())
	case errors.Is(err, electionerrors.ErrResultsNotAvailable):
		writeElectionError(w, http.StatusConflict, "results_not_available", err.Error())
	case errors.Is(err, electionerrors.ErrInvalidRollback):
		writeElectionError(w, http.StatusConflict, "invalid_rollback", err.Error())
	case errors.Is(err, electionerrors.ErrConflict):
		writeElectionError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeElectionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeBallotError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ballothttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeElectionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, electionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
