package api

import (
	"github.com/xraph/orbit/platform"
	"github.com/xraph/orbit/stream"
	"github.com/xraph/orbit/types"
)

// CreateStreamRequest is the body of POST /streams. Amount is a decimal
// string in major units.
type CreateStreamRequest struct {
	Subscriber string `json:"subscriber" validate:"required,address"`
	Creator    string `json:"creator" validate:"required,address"`
	Token      string `json:"token" validate:"required,address"`
	Amount     string `json:"amount" validate:"required,numeric"`
	Duration   uint64 `json:"duration_seconds" validate:"required"`
	TierID     uint32 `json:"tier_id"`
	AutoRenew  bool   `json:"auto_renew"`
}

// ExtendStreamRequest is the body of POST /streams/{id}/extend.
type ExtendStreamRequest struct {
	Amount  string `json:"amount" validate:"required,numeric"`
	Seconds uint64 `json:"additional_seconds"`
}

// AutoRenewRequest is the body of POST /streams/{id}/auto-renew.
type AutoRenewRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// StreamResponse is the API view of a stream.
type StreamResponse struct {
	ID              uint64 `json:"id"`
	Subscriber      string `json:"subscriber"`
	Creator         string `json:"creator"`
	Token           string `json:"token"`
	TotalAmount     string `json:"total_amount"`
	RatePerSecond   string `json:"rate_per_second"`
	Withdrawn       string `json:"withdrawn"`
	Remaining       string `json:"remaining"`
	StartTime       uint64 `json:"start_time"`
	EndTime         uint64 `json:"end_time"`
	Status          string `json:"status"`
	TierID          uint32 `json:"tier_id"`
	PlatformWallet  string `json:"platform_wallet"`
	AutoRenew       bool   `json:"auto_renew"`
	DurationSeconds uint64 `json:"duration_seconds"`
	RenewedBy       uint64 `json:"renewed_by,omitempty"`
}

// ConfigResponse is the API view of the ledger configuration.
type ConfigResponse struct {
	Admin          string `json:"admin"`
	PlatformWallet string `json:"platform_wallet"`
	FeeBps         uint32 `json:"fee_bps"`
	GracePeriod    uint64 `json:"grace_period_seconds"`
	NextStreamID   uint64 `json:"next_stream_id"`
}

// StreamIDResponse carries a created or renewed stream id.
type StreamIDResponse struct {
	ID uint64 `json:"id"`
}

// AmountResponse carries a single amount.
type AmountResponse struct {
	Amount string `json:"amount"`
}

// CancelResponse reports how a cancelled stream was split.
type CancelResponse struct {
	CreatorTotal string `json:"creator_total"`
	Refund       string `json:"refund"`
}

// StreamIDsResponse lists stream ids.
type StreamIDsResponse struct {
	StreamIDs []uint64 `json:"stream_ids"`
}

// CountResponse carries a count.
type CountResponse struct {
	Count uint64 `json:"count"`
}

// ActiveResponse reports whether a pair has an active stream.
type ActiveResponse struct {
	Active   bool   `json:"active"`
	StreamID uint64 `json:"stream_id,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	ErrorCode int    `json:"error_code,omitempty"`
}

func (s *Server) amount(a types.Amount) string { return a.Format(s.decimals) }

func (s *Server) streamResponse(st *stream.Stream) StreamResponse {
	return StreamResponse{
		ID:              st.ID,
		Subscriber:      st.Subscriber.String(),
		Creator:         st.Creator.String(),
		Token:           st.Token.String(),
		TotalAmount:     s.amount(st.TotalAmount),
		RatePerSecond:   s.amount(st.RatePerSecond),
		Withdrawn:       s.amount(st.Withdrawn),
		Remaining:       s.amount(st.Remaining()),
		StartTime:       st.StartTime,
		EndTime:         st.EndTime,
		Status:          string(st.Status),
		TierID:          st.TierID,
		PlatformWallet:  st.PlatformWallet.String(),
		AutoRenew:       st.AutoRenew,
		DurationSeconds: st.Duration,
		RenewedBy:       st.RenewedBy,
	}
}

func configResponse(c *platform.Config) ConfigResponse {
	return ConfigResponse{
		Admin:          c.Admin.String(),
		PlatformWallet: c.PlatformWallet.String(),
		FeeBps:         c.FeeBps,
		GracePeriod:    c.GracePeriod,
		NextStreamID:   c.NextStreamID,
	}
}
