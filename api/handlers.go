package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xraph/orbit"
	"github.com/xraph/orbit/types"
)

const maxBody = 64 << 10

// handleIndex returns service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]any{
		"service":  "orbit",
		"decimals": s.decimals,
		"endpoints": []string{
			"GET /health",
			"GET /metrics",
			"GET /config",
			"POST /streams",
			"GET /streams/{id}",
			"GET /streams/{id}/withdrawable",
			"POST /streams/{id}/withdraw",
			"POST /streams/{id}/cancel",
			"POST /streams/{id}/extend",
			"POST /streams/{id}/auto-renew",
			"POST /streams/{id}/renew",
			"POST /streams/{id}/terminate",
			"GET /subscribers/{addr}/streams",
			"GET /creators/{addr}/streams",
			"GET /creators/{addr}/accrued",
			"GET /creators/{addr}/active-count",
			"POST /creators/{addr}/withdraw-all",
			"GET /pairs/{sub}/{creator}/active",
		},
	})
}

// handleHealth pings the store
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.sendJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// GET /config
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Config(r.Context())
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, configResponse(cfg))
}

// =============================================================================
// STREAM ENDPOINTS
// =============================================================================

// POST /streams
func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	var req CreateStreamRequest
	if err := s.decode(r, &req); err != nil {
		s.sendError(w, err)
		return
	}
	amount, err := types.ParseAmount(req.Amount, s.decimals)
	if err != nil {
		s.sendError(w, err)
		return
	}

	id, err := s.engine.CreateStream(r.Context(), orbit.CreateParams{
		Subscriber: types.Address(req.Subscriber),
		Creator:    types.Address(req.Creator),
		Token:      types.Address(req.Token),
		Amount:     amount,
		Duration:   req.Duration,
		TierID:     req.TierID,
		AutoRenew:  req.AutoRenew,
	})
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, StreamIDResponse{ID: id})
}

// GET /streams/{id}
func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	st, err := s.engine.GetStream(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.streamResponse(st))
}

// GET /streams/{id}/withdrawable
func (s *Server) handleWithdrawable(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	amt, err := s.engine.GetWithdrawable(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, AmountResponse{Amount: s.amount(amt)})
}

// POST /streams/{id}/withdraw
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	net, err := s.engine.Withdraw(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, AmountResponse{Amount: s.amount(net)})
}

// POST /streams/{id}/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	creatorTotal, refund, err := s.engine.Cancel(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, CancelResponse{
		CreatorTotal: s.amount(creatorTotal),
		Refund:       s.amount(refund),
	})
}

// POST /streams/{id}/extend
func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	var req ExtendStreamRequest
	if err := s.decode(r, &req); err != nil {
		s.sendError(w, err)
		return
	}
	amount, err := types.ParseAmount(req.Amount, s.decimals)
	if err != nil {
		s.sendError(w, err)
		return
	}
	if err := s.engine.ExtendStream(r.Context(), id, amount, req.Seconds); err != nil {
		s.sendError(w, err)
		return
	}
	s.writeStream(w, r, id)
}

// POST /streams/{id}/auto-renew
func (s *Server) handleAutoRenew(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	var req AutoRenewRequest
	if err := s.decode(r, &req); err != nil {
		s.sendError(w, err)
		return
	}
	if err := s.engine.ToggleAutoRenew(r.Context(), id, *req.Enabled); err != nil {
		s.sendError(w, err)
		return
	}
	s.writeStream(w, r, id)
}

// POST /streams/{id}/renew
func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	renewed, err := s.engine.RenewStream(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, StreamIDResponse{ID: renewed})
}

// POST /streams/{id}/terminate
func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	refund, err := s.engine.TerminateStream(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, AmountResponse{Amount: s.amount(refund)})
}

// =============================================================================
// PARTICIPANT ENDPOINTS
// =============================================================================

// GET /subscribers/{addr}/streams
func (s *Server) handleSubscriberStreams(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		s.sendError(w, err)
		return
	}
	ids, err := s.engine.GetSubscriberStreams(r.Context(), addr)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, StreamIDsResponse{StreamIDs: nonNil(ids)})
}

// GET /creators/{addr}/streams
func (s *Server) handleCreatorStreams(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		s.sendError(w, err)
		return
	}
	ids, err := s.engine.GetCreatorStreams(r.Context(), addr)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, StreamIDsResponse{StreamIDs: nonNil(ids)})
}

// GET /creators/{addr}/accrued
func (s *Server) handleAccrued(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		s.sendError(w, err)
		return
	}
	total, err := s.engine.GetTotalAccrued(r.Context(), addr)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, AmountResponse{Amount: s.amount(total)})
}

// GET /creators/{addr}/active-count
func (s *Server) handleActiveCount(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		s.sendError(w, err)
		return
	}
	n, err := s.engine.GetActiveSubscriberCount(r.Context(), addr)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, CountResponse{Count: n})
}

// POST /creators/{addr}/withdraw-all
func (s *Server) handleWithdrawAll(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		s.sendError(w, err)
		return
	}
	total, err := s.engine.WithdrawAll(r.Context(), addr)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, AmountResponse{Amount: s.amount(total)})
}

// GET /pairs/{sub}/{creator}/active
func (s *Server) handlePairActive(w http.ResponseWriter, r *http.Request) {
	sub, err := pathAddress(r, "sub")
	if err != nil {
		s.sendError(w, err)
		return
	}
	creator, err := pathAddress(r, "creator")
	if err != nil {
		s.sendError(w, err)
		return
	}
	id, ok, err := s.engine.ActiveStreamID(r.Context(), sub, creator)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, ActiveResponse{Active: ok, StreamID: id})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) writeStream(w http.ResponseWriter, r *http.Request, id uint64) {
	st, err := s.engine.GetStream(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.streamResponse(st))
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return s.validate.Struct(v)
}

func streamID(r *http.Request) (uint64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid stream id %q", errBadRequest, raw)
	}
	return id, nil
}

func pathAddress(r *http.Request, name string) (types.Address, error) {
	a := types.Address(r.PathValue(name))
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a, nil
}

func nonNil(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	return ids
}
