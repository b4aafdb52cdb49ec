package auth

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/zeebo/blake3"

	"github.com/xraph/orbit/clock"
	"github.com/xraph/orbit/types"
)

// Request headers carrying a signed caller identity.
const (
	HeaderAccount   = "X-Orbit-Account"
	HeaderTimestamp = "X-Orbit-Timestamp"
	HeaderSignature = "X-Orbit-Signature"
)

const maxSignedBody = 1 << 20

// Digest returns the bytes a caller signs: BLAKE3 over method, path,
// unix timestamp and body, NUL separated.
func Digest(method, path string, ts int64, body []byte) []byte {
	h := blake3.New()
	_, _ = h.WriteString(method)                    //nolint:errcheck // hash writes never fail
	_, _ = h.Write([]byte{0})                       //nolint:errcheck // hash writes never fail
	_, _ = h.WriteString(path)                      //nolint:errcheck // hash writes never fail
	_, _ = h.Write([]byte{0})                       //nolint:errcheck // hash writes never fail
	_, _ = h.WriteString(strconv.FormatInt(ts, 10)) //nolint:errcheck // hash writes never fail
	_, _ = h.Write([]byte{0})                       //nolint:errcheck // hash writes never fail
	_, _ = h.Write(body)                            //nolint:errcheck // hash writes never fail
	return h.Sum(nil)
}

// Sign sets the signature headers on req for the given Stellar keypair.
// body must be the exact bytes sent as the request body.
func Sign(req *http.Request, kp *keypair.Full, body []byte, at time.Time) error {
	ts := at.Unix()
	sig, err := kp.Sign(Digest(req.Method, req.URL.Path, ts, body))
	if err != nil {
		return fmt.Errorf("auth: sign request: %w", err)
	}
	req.Header.Set(HeaderAccount, kp.Address())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, base64.StdEncoding.EncodeToString(sig))
	return nil
}

// SignatureVerifier is HTTP middleware that authenticates callers by an
// ed25519 signature from their Stellar account key. Verified callers are
// placed in the request context for ContextAuthorizer. Requests without
// an account header pass through anonymously.
type SignatureVerifier struct {
	maxSkew time.Duration
	clock   clock.Clock
	logger  *slog.Logger
}

// VerifierOption configures a SignatureVerifier.
type VerifierOption func(*SignatureVerifier)

// WithMaxSkew bounds how far a request timestamp may be from now.
func WithMaxSkew(d time.Duration) VerifierOption {
	return func(v *SignatureVerifier) { v.maxSkew = d }
}

// WithVerifierClock sets the clock used for the skew check.
func WithVerifierClock(c clock.Clock) VerifierOption {
	return func(v *SignatureVerifier) { v.clock = c }
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(l *slog.Logger) VerifierOption {
	return func(v *SignatureVerifier) { v.logger = l }
}

// NewSignatureVerifier creates a SignatureVerifier with a 5 minute skew
// window.
func NewSignatureVerifier(opts ...VerifierOption) *SignatureVerifier {
	v := &SignatureVerifier{
		maxSkew: 5 * time.Minute,
		clock:   clock.Real(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the signature headers of r against body and returns the
// authenticated account.
func (v *SignatureVerifier) Verify(r *http.Request, body []byte) (types.Address, error) {
	account := r.Header.Get(HeaderAccount)
	kp, err := keypair.ParseAddress(account)
	if err != nil {
		return "", fmt.Errorf("%w: bad account: %v", ErrNotAuthorized, err)
	}

	ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad timestamp", ErrNotAuthorized)
	}
	skew := v.clock.Now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return "", fmt.Errorf("%w: timestamp outside %s window", ErrNotAuthorized, v.maxSkew)
	}

	sig, err := base64.StdEncoding.DecodeString(r.Header.Get(HeaderSignature))
	if err != nil {
		return "", fmt.Errorf("%w: bad signature encoding", ErrNotAuthorized)
	}
	if err := kp.Verify(Digest(r.Method, r.URL.Path, ts, body), sig); err != nil {
		return "", fmt.Errorf("%w: signature mismatch", ErrNotAuthorized)
	}
	return types.Address(account), nil
}

// Middleware wraps next with signature verification.
func (v *SignatureVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderAccount) == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close() //nolint:errcheck // body fully consumed
		r.Body = io.NopCloser(bytes.NewReader(body))

		caller, err := v.Verify(r, body)
		if err != nil {
			v.logger.Warn("rejected signed request",
				"path", r.URL.Path,
				"account", r.Header.Get(HeaderAccount),
				"error", err,
			)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}
