package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fabline/internal/api"
	"fabline/internal/config"
	"fabline/internal/logging"
	"fabline/internal/workflow"
)

type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	daemon  *Daemon
	service *api.WorkflowService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}

	srv := &apiServer{
		bind:    bind,
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		logger:  logger,
		daemon:  d,
		service: d.service,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.auth(srv.handleStatus))
	mux.HandleFunc("/api/orders", srv.auth(srv.handleOrders))
	mux.HandleFunc("/api/orders/", srv.auth(srv.handleOrderSubtree))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) auth(next http.HandlerFunc) http.HandlerFunc {
	return authMiddleware(s.token, next)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		OrderStats:   status.OrderStats,
		Health:       api.FromHealthSummary(status.Health),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var statuses []string
		for _, value := range r.URL.Query()["status"] {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				statuses = append(statuses, trimmed)
			}
		}
		list, err := s.service.List(r.Context(), statuses...)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OrderListResponse{Orders: list})
	case http.MethodPost:
		var req api.CreateOrderRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		order, err := s.service.CreateOrder(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.OrderResponse{Order: *order})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleOrderSubtree routes /api/orders/{id}[/workflow|/steps/{key}[/reopen]|/withdrawals|/stock].
func (s *apiServer) handleOrderSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	orderID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	switch {
	case len(parts) == 1:
		s.handleOrderDetail(w, r, orderID)
	case len(parts) == 2 && parts[1] == "workflow":
		s.handleWorkflow(w, r, orderID)
	case len(parts) == 2 && parts[1] == "stock":
		s.handleStock(w, r, orderID)
	case len(parts) == 2 && parts[1] == "withdrawals":
		s.handleWithdrawals(w, r, orderID)
	case len(parts) == 3 && parts[1] == "steps":
		s.handleStepUpdate(w, r, orderID, parts[2])
	case len(parts) == 4 && parts[1] == "steps" && parts[3] == "reopen":
		s.handleStepReopen(w, r, orderID, parts[2])
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleOrderDetail(w http.ResponseWriter, r *http.Request, orderID int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	order, err := s.service.Describe(r.Context(), orderID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if order == nil {
		s.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.OrderResponse{Order: *order})
}

func (s *apiServer) handleWorkflow(w http.ResponseWriter, r *http.Request, orderID int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	view, err := s.service.Workflow(r.Context(), orderID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleStepUpdate(w http.ResponseWriter, r *http.Request, orderID int64, stepKey string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.StepUpdateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	step, err := s.service.UpdateStep(r.Context(), orderID, stepKey, req, actorFromRequest(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StepResponse{Step: *step})
}

func (s *apiServer) handleStepReopen(w http.ResponseWriter, r *http.Request, orderID int64, stepKey string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	step, err := s.service.ReopenStep(r.Context(), orderID, stepKey, actorFromRequest(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StepResponse{Step: *step})
}

func (s *apiServer) handleStock(w http.ResponseWriter, r *http.Request, orderID int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	lines, err := s.service.Stock(r.Context(), orderID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StockResponse{Lines: lines})
}

func (s *apiServer) handleWithdrawals(w http.ResponseWriter, r *http.Request, orderID int64) {
	switch r.Method {
	case http.MethodGet:
		history, err := s.service.Withdrawals(r.Context(), orderID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.WithdrawalListResponse{Withdrawals: history})
	case http.MethodPost:
		var req api.WithdrawRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		receipt, err := s.service.Withdraw(r.Context(), orderID, req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.WithdrawalResponse{Withdrawal: *receipt})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// actorFromRequest reads caller identity from headers. Identity provisioning
// is out of scope; the API trusts what the dashboard forwards.
func actorFromRequest(r *http.Request) workflow.Actor {
	return workflow.Actor{
		ID:   strings.TrimSpace(r.Header.Get("X-Actor-ID")),
		Role: strings.TrimSpace(r.Header.Get("X-Actor-Role")),
	}
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps the workflow error taxonomy onto HTTP statuses:
// validation 400, not found 404, persistence 503 with a retryable flag.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	var validation *workflow.ValidationError
	if errors.As(err, &validation) {
		status := http.StatusBadRequest
		if validation.ErrorKind() == "not_found" {
			status = http.StatusNotFound
		}
		s.writeJSON(w, status, map[string]any{
			"error": validation.Reason,
			"field": validation.Field,
		})
		return
	}
	if errors.Is(err, workflow.ErrPersistence) {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":     err.Error(),
			"retryable": true,
		})
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
