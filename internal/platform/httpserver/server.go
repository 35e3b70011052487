package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	settlementengine "backlot/contexts/finance-core/settlement-engine"
	settlementerrors "backlot/contexts/finance-core/settlement-engine/domain/errors"
	settlementhttp "backlot/contexts/finance-core/settlement-engine/transport/http"
	periodscheduler "backlot/contexts/studio-content/period-scheduler"
	schedulererrors "backlot/contexts/studio-content/period-scheduler/domain/errors"
	schedulerhttp "backlot/contexts/studio-content/period-scheduler/transport/http"
	productionpipeline "backlot/contexts/studio-content/production-pipeline"
	pipelineerrors "backlot/contexts/studio-content/production-pipeline/domain/errors"
	pipelinehttp "backlot/contexts/studio-content/production-pipeline/transport/http"
	_ "backlot/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

const paymentHeader = "X-PAYMENT"

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	scheduler  periodscheduler.Module
	pipeline   productionpipeline.Module
	settlement settlementengine.Module
}

func New(
	scheduler periodscheduler.Module,
	pipeline productionpipeline.Module,
	settlement settlementengine.Module,
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
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		scheduler:  scheduler,
		pipeline:   pipeline,
		settlement: settlement,
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

	s.mux.HandleFunc("POST /v1/scheduler/tick", s.handleSchedulerTick)
	s.mux.HandleFunc("GET /v1/scheduler/periods/{period_type}/active", s.handleGetActivePeriod)

	s.mux.HandleFunc("GET /v1/series/{series_id}/works", s.handleGetSeriesWorks)

	s.mux.HandleFunc("POST /v1/clips/{work_id}/vote", s.handleClipVote)
	s.mux.HandleFunc("GET /v1/clips/{work_id}/votes/count", s.handleVoteCount)
	s.mux.HandleFunc("POST /v1/series/{series_id}/tip", s.handleSeriesTip)
}

// handleSchedulerTick runs one tick. The external trigger fires at-least-once
// and the tick is idempotent, so retried deliveries are harmless.
func (s *Server) handleSchedulerTick(w http.ResponseWriter, r *http.Request) {
	resp, err := s.scheduler.Handler.TickHandler(r.Context())
	if err != nil {
		writeSchedulerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetActivePeriod(w http.ResponseWriter, r *http.Request) {
	periodType := r.PathValue("period_type")
	resp, err := s.scheduler.Handler.GetActivePeriodHandler(r.Context(), periodType)
	if err != nil {
		writeSchedulerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSeriesWorks(w http.ResponseWriter, r *http.Request) {
	seriesID := r.PathValue("series_id")
	resp, err := s.pipeline.Handler.GetSeriesWorksHandler(r.Context(), seriesID)
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClipVote(w http.ResponseWriter, r *http.Request) {
	workID := r.PathValue("work_id")

	var req settlementhttp.ClipVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, rejected, err := s.settlement.Handler.RecordClipVoteHandler(
		r.Context(),
		workID,
		r.Header.Get(paymentHeader),
		req,
	)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	if rejected != nil {
		writeJSON(w, http.StatusPaymentRequired, rejected)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSeriesTip(w http.ResponseWriter, r *http.Request) {
	seriesID := r.PathValue("series_id")

	var req settlementhttp.SeriesTipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, rejected, err := s.settlement.Handler.RecordSeriesTipHandler(
		r.Context(),
		seriesID,
		r.Header.Get(paymentHeader),
		req,
	)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	if rejected != nil {
		writeJSON(w, http.StatusPaymentRequired, rejected)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleVoteCount(w http.ResponseWriter, r *http.Request) {
	workID := r.PathValue("work_id")
	resp, err := s.settlement.Handler.GetVoteCountHandler(r.Context(), workID)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeSchedulerDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedulererrors.ErrPeriodNotFound):
		writeSchedulerError(w, http.StatusNotFound, "period_not_found", err.Error())
	case errors.Is(err, schedulererrors.ErrSubmissionNotFound):
		writeSchedulerError(w, http.StatusNotFound, "submission_not_found", err.Error())
	case errors.Is(err, schedulererrors.ErrInvalidInput):
		writeSchedulerError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, schedulererrors.ErrInvalidTransition),
		errors.Is(err, schedulererrors.ErrAlreadyProcessed),
		errors.Is(err, schedulererrors.ErrConflict):
		writeSchedulerError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeSchedulerError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePipelineDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipelineerrors.ErrSeriesNotFound):
		writePipelineError(w, http.StatusNotFound, "series_not_found", err.Error())
	case errors.Is(err, pipelineerrors.ErrWorkNotFound):
		writePipelineError(w, http.StatusNotFound, "work_not_found", err.Error())
	case errors.Is(err, pipelineerrors.ErrInvalidInput),
		errors.Is(err, pipelineerrors.ErrUnknownKind):
		writePipelineError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, pipelineerrors.ErrConflict):
		writePipelineError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writePipelineError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSettlementDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlementerrors.ErrInvalidInput):
		writeSettlementError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, settlementerrors.ErrWalletNotConfigured):
		writeSettlementError(w, http.StatusUnprocessableEntity, "wallet_not_configured", err.Error())
	case errors.Is(err, settlementerrors.ErrInvalidSplit):
		writeSettlementError(w, http.StatusUnprocessableEntity, "invalid_split", err.Error())
	case errors.Is(err, settlementerrors.ErrVoteNotFound),
		errors.Is(err, settlementerrors.ErrTipNotFound),
		errors.Is(err, settlementerrors.ErrPayoutNotFound):
		writeSettlementError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, settlementerrors.ErrNonceReplayed),
		errors.Is(err, settlementerrors.ErrRefundExists):
		writeSettlementError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeSettlementError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSchedulerError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, schedulerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writePipelineError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pipelinehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeSettlementError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, settlementhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
