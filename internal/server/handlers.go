package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	cache "wagerledger/internal/cache/redis"
	"wagerledger/internal/ingestion"
	"wagerledger/internal/observability"
	"wagerledger/internal/query"
)

const maxCommandBody = 1 << 20

type handlers struct {
	query   *query.Service
	prices  *cache.PriceCache
	cmdChan chan<- ingestion.RawCommand
	metrics *observability.Metrics
	log     zerolog.Logger
}

// instrument records request counts and latency per route template.
func (h *handlers) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		if h.metrics != nil {
			h.metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(sw.status)).Inc()
			h.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
			if sw.status >= 400 {
				h.metrics.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(sw.status)).Inc()
			}
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handlers) writeQueryError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, query.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	h.log.Error().Err(err).Msg(what + " query failed")
	writeError(w, http.StatusInternalServerError, "failed to get "+what)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	return parseUUID(mux.Vars(r)[name])
}

func parseUUID(s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	return id, err == nil
}

func queryInt(r *http.Request, name string, def, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func queryInt32Ptr(r *http.Request, name string) *int32 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return nil
	}
	out := int32(n)
	return &out
}

func queryInt64Ptr(r *http.Request, name string) *int64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// GET /api/v1/markets?status=1&limit=50&before=<created_at>
func (h *handlers) listMarkets(w http.ResponseWriter, r *http.Request) {
	status := queryInt32Ptr(r, "status")
	limit := queryInt(r, "limit", 50, 500)
	before := queryInt64Ptr(r, "before")

	markets, err := h.query.ListMarkets(r.Context(), status, limit, before)
	if err != nil {
		h.writeQueryError(w, err, "markets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"markets": markets})
}

// GET /api/v1/markets/{id}
func (h *handlers) getMarket(w http.ResponseWriter, r *http.Request) {
	marketID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	m, err := h.query.GetMarket(r.Context(), marketID)
	if err != nil {
		h.writeQueryError(w, err, "market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type priceResponse struct {
	MarketID  string  `json:"market_id"`
	PriceYes  float64 `json:"price_yes"`
	PriceNo   float64 `json:"price_no"`
	TotalPool uint64  `json:"total_pool"`
	UpdatedAt int64   `json:"updated_at"`
	Source    string  `json:"source"`
}

// GET /api/v1/markets/{id}/price
// Served from Redis when cached, falling back to the projection.
func (h *handlers) getMarketPrice(w http.ResponseWriter, r *http.Request) {
	marketID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	if h.prices != nil {
		p, err := h.prices.GetPrice(r.Context(), marketID.String())
		if err == nil {
			writeJSON(w, http.StatusOK, priceResponse{
				MarketID:  marketID.String(),
				PriceYes:  p.Yes,
				PriceNo:   p.No,
				TotalPool: p.TotalPool,
				UpdatedAt: p.UpdatedAt.Unix(),
				Source:    "cache",
			})
			return
		}
		if !errors.Is(err, cache.ErrNotFound) {
			h.log.Warn().Err(err).Msg("price cache read failed")
		}
	}

	m, err := h.query.GetMarket(r.Context(), marketID)
	if err != nil {
		h.writeQueryError(w, err, "market")
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		MarketID:  marketID.String(),
		PriceYes:  m.PriceYes,
		PriceNo:   m.PriceNo,
		TotalPool: uint64(m.YesPool) + uint64(m.NoPool),
		Source:    "projection",
	})
}

// GET /api/v1/markets/{id}/positions/{user_id}
func (h *handlers) getPosition(w http.ResponseWriter, r *http.Request) {
	marketID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	userID, ok := pathUUID(r, "user_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	p, err := h.query.GetPosition(r.Context(), userID, marketID)
	if err != nil {
		h.writeQueryError(w, err, "position")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /api/v1/tournaments?status=1&limit=50
func (h *handlers) listTournaments(w http.ResponseWriter, r *http.Request) {
	status := queryInt32Ptr(r, "status")
	limit := queryInt(r, "limit", 50, 500)

	tournaments, err := h.query.ListTournaments(r.Context(), status, limit)
	if err != nil {
		h.writeQueryError(w, err, "tournaments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tournaments": tournaments})
}

// GET /api/v1/tournaments/{id}
func (h *handlers) getTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tournament id")
		return
	}

	t, err := h.query.GetTournament(r.Context(), tournamentID)
	if err != nil {
		h.writeQueryError(w, err, "tournament")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GET /api/v1/tournaments/{id}/entries
func (h *handlers) listEntries(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tournament id")
		return
	}

	entries, err := h.query.GetEntries(r.Context(), tournamentID)
	if err != nil {
		h.writeQueryError(w, err, "entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// GET /api/v1/users/{id}/positions
func (h *handlers) listUserPositions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	positions, err := h.query.GetUserPositions(r.Context(), userID)
	if err != nil {
		h.writeQueryError(w, err, "positions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"positions": positions})
}

// GET /api/v1/users/{id}/balance?asset=USDC
func (h *handlers) getBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		writeError(w, http.StatusBadRequest, "asset query parameter is required")
		return
	}

	bal, err := h.query.GetBalance(r.Context(), userID, asset)
	if err != nil {
		h.writeQueryError(w, err, "balance")
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

// GET /api/v1/users/{id}/transfers?limit=100&after=<sequence>
func (h *handlers) listTransfers(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit := queryInt(r, "limit", 100, 500)
	after := queryInt64Ptr(r, "after")

	transfers, err := h.query.GetTransferHistory(r.Context(), userID, limit, after)
	if err != nil {
		h.writeQueryError(w, err, "transfers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": transfers})
}

// GET /api/v1/integrity
func (h *handlers) verifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.query.VerifyIntegrity(r.Context())
	if err != nil {
		h.writeQueryError(w, err, "integrity report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// POST /api/v1/commands/{type}
// The body is the same JSON wire format the NATS subjects carry. The
// command is validated here, then queued on the engine's channel; 202
// means accepted, not applied. Clients observe the result through the
// read API or the result stream.
func (h *handlers) submitCommand(w http.ResponseWriter, r *http.Request) {
	commandType := mux.Vars(r)["type"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}

	raw := ingestion.RawCommand{
		Subject:   "wager.commands." + commandType,
		Data:      body,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}

	cmd, err := ingestion.ParseRawCommand(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	select {
	case h.cmdChan <- raw:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":          "accepted",
			"idempotency_key": cmd.IdempotencyKey(),
		})
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "command queue unavailable")
	}
}
