package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"rebasechain/native/policy"
	"rebasechain/services/rebased/history"
)

const maxBodyBytes = 1 << 16

type policyResponse struct {
	InflationRate            uint64 `json:"inflationRate"`
	MinRebaseTimeIntervalSec uint64 `json:"minRebaseTimeIntervalSec"`
	LastRebaseTimestampSec   uint64 `json:"lastRebaseTimestampSec"`
	RebaseWindowOffsetSec    uint64 `json:"rebaseWindowOffsetSec"`
	RebaseWindowLengthSec    uint64 `json:"rebaseWindowLengthSec"`
	Epoch                    uint64 `json:"epoch"`
	Orchestrator             string `json:"orchestrator"`
	Admin                    string `json:"admin"`
	InRebaseWindow           bool   `json:"inRebaseWindow"`
}

type rebaseResponse struct {
	Epoch         uint64 `json:"epoch"`
	InflationRate uint64 `json:"inflationRate"`
	SupplyDelta   string `json:"supplyDelta"`
	TimestampSec  uint64 `json:"timestampSec"`
}

type historyResponse struct {
	rebaseResponse
	TotalSupply string `json:"totalSupply,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("rebased: encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps policy errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, policy.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, policy.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, policy.ErrNotInWindow), errors.Is(err, policy.ErrTooSoon):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writePolicyError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("rebased: policy operation failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "reason": policy.Outcome(err)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	state := s.engine.State()
	writeJSON(w, http.StatusOK, policyResponse{
		InflationRate:            state.InflationRate,
		MinRebaseTimeIntervalSec: state.MinRebaseTimeIntervalSec,
		LastRebaseTimestampSec:   state.LastRebaseTimestampSec,
		RebaseWindowOffsetSec:    state.RebaseWindowOffsetSec,
		RebaseWindowLengthSec:    state.RebaseWindowLengthSec,
		Epoch:                    state.Epoch,
		Orchestrator:             state.Orchestrator.Hex(),
		Admin:                    state.Admin.Hex(),
		InRebaseWindow:           s.engine.InRebaseWindow(),
	})
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"inRebaseWindow": s.engine.InRebaseWindow(),
		"now":            s.nowFn().Unix(),
	})
}

func (s *Server) handleGlobalState(w http.ResponseWriter, r *http.Request) {
	epoch, supply, err := s.engine.GlobalStateView()
	if err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"epoch":       epoch,
		"totalSupply": supply.String(),
	})
}

func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return limit, nil
}

func (s *Server) handleListRebases(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.history.ListRebases(r.Context(), limit)
	if err != nil {
		slog.Error("rebased: list rebases", "error", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	out := make([]historyResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toHistoryResponse(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rebases": out})
}

func toHistoryResponse(row history.Rebase) historyResponse {
	return historyResponse{
		rebaseResponse: rebaseResponse{
			Epoch:         row.Epoch,
			InflationRate: row.InflationRate,
			SupplyDelta:   row.SupplyDelta,
			TimestampSec:  row.TimestampSec,
		},
		TotalSupply: row.TotalSupply,
	}
}

func (s *Server) handleGetRebase(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	epoch, err := strconv.ParseUint(chi.URLParam(r, "epoch"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "epoch must be a non-negative integer")
		return
	}
	row, err := s.history.GetRebase(r.Context(), epoch)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rebase not found")
		return
	}
	if err != nil {
		slog.Error("rebased: get rebase", "error", err, "epoch", epoch)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(row))
}

type supplyResponse struct {
	Token      string `json:"token"`
	Epoch      uint64 `json:"epoch"`
	Reason     string `json:"reason"`
	Delta      string `json:"delta,omitempty"`
	Total      string `json:"total"`
	RecordedAt int64  `json:"recordedAt"`
}

func (s *Server) handleListSupply(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.history.ListSupplyChanges(r.Context(), limit)
	if err != nil {
		slog.Error("rebased: list supply changes", "error", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	out := make([]supplyResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, supplyResponse{
			Token:      row.Token,
			Epoch:      row.Epoch,
			Reason:     row.Reason,
			Delta:      row.Delta,
			Total:      row.Total,
			RecordedAt: row.RecordedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": out})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable")
		return
	}
	epoch, supply, err := s.ledger.Snapshot()
	if err != nil {
		slog.Error("rebased: read ledger", "error", err)
		writeError(w, http.StatusInternalServerError, "ledger read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":       s.ledger.Token(),
		"epoch":       epoch,
		"totalSupply": supply.String(),
	})
}

func (s *Server) handleExportRebases(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	if _, err := s.history.ExportParquet(r.Context(), &buf, limit); err != nil {
		slog.Error("rebased: export rebases", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="rebases.parquet"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRebase(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "caller unknown")
		return
	}
	result, err := s.engine.Rebase(r.Context(), caller)
	if err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rebaseResponse{
		Epoch:         result.Epoch,
		InflationRate: result.InflationRate,
		SupplyDelta:   result.SupplyDelta.String(),
		TimestampSec:  result.TimestampSec,
	})
}

func (s *Server) handleSetOrchestrator(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "caller unknown")
		return
	}
	var req struct {
		Orchestrator string `json:"orchestrator"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !ethcommon.IsHexAddress(strings.TrimSpace(req.Orchestrator)) {
		writeError(w, http.StatusBadRequest, "orchestrator must be a hex address")
		return
	}
	if err := s.engine.SetOrchestrator(caller, ethcommon.HexToAddress(strings.TrimSpace(req.Orchestrator))); err != nil {
		writePolicyError(w, err)
		return
	}
	s.handlePolicy(w, r)
}

func (s *Server) handleSetInflationRate(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "caller unknown")
		return
	}
	var req struct {
		InflationRate *uint64 `json:"inflationRate"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.InflationRate == nil {
		writeError(w, http.StatusBadRequest, "inflationRate required")
		return
	}
	if err := s.engine.SetInflationRate(caller, *req.InflationRate); err != nil {
		writePolicyError(w, err)
		return
	}
	s.handlePolicy(w, r)
}

func (s *Server) handleSetTiming(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "caller unknown")
		return
	}
	var req struct {
		MinRebaseTimeIntervalSec *uint64 `json:"minRebaseTimeIntervalSec"`
		RebaseWindowOffsetSec    *uint64 `json:"rebaseWindowOffsetSec"`
		RebaseWindowLengthSec    *uint64 `json:"rebaseWindowLengthSec"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MinRebaseTimeIntervalSec == nil || req.RebaseWindowOffsetSec == nil || req.RebaseWindowLengthSec == nil {
		writeError(w, http.StatusBadRequest, "minRebaseTimeIntervalSec, rebaseWindowOffsetSec and rebaseWindowLengthSec required")
		return
	}
	if err := s.engine.SetRebaseTimingParameters(caller, *req.MinRebaseTimeIntervalSec, *req.RebaseWindowOffsetSec, *req.RebaseWindowLengthSec); err != nil {
		writePolicyError(w, err)
		return
	}
	s.handlePolicy(w, r)
}
