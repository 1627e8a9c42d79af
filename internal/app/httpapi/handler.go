// Package httpapi exposes the purchase layer's REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	app "github.com/CakeLotto/purchase_layer/internal/app"
	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
	"github.com/CakeLotto/purchase_layer/internal/app/domain/purchase"
	purchasesvc "github.com/CakeLotto/purchase_layer/internal/app/services/purchase"
	"github.com/CakeLotto/purchase_layer/internal/app/services/rounds"
	"github.com/CakeLotto/purchase_layer/internal/app/services/ticketset"
	"github.com/CakeLotto/purchase_layer/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the purchase REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", h.quote)
	mux.HandleFunc("/round", h.round)
	mux.HandleFunc("/balance", h.balance)
	mux.HandleFunc("/purchases", h.purchases)
	mux.HandleFunc("/purchases/", h.purchaseResources)
	mux.HandleFunc("/ticketset", h.ticketSet)
	mux.HandleFunc("/ticketset/", h.ticketSetResources)
	mux.HandleFunc("/healthz", h.health)
	return mux
}

// quote computes a purchase quote for a requested quantity. The tickets
// parameter is treated as raw user input: junk becomes zero, not an error.
func (h *handler) quote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	requested := purchase.ParseTicketInput(r.URL.Query().Get("tickets"))
	result, err := h.app.Quotes.QuoteFor(requested)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) round(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	round, err := h.app.Rounds.Current()
	if err != nil {
		if errors.Is(err, rounds.ErrNoRound) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Balance.Snapshot())
}

func (h *handler) purchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Quantity int `json:"quantity"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		attempt, err := h.app.Purchases.Begin(r.Context(), payload.Quantity)
		if err != nil {
			writeError(w, purchaseErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, attempt)

	case http.MethodGet:
		attempts, err := h.app.Purchases.List(r.Context(), r.URL.Query().Get("account"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, attempts)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) purchaseResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/purchases"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	attemptID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		attempt, err := h.app.Purchases.Get(r.Context(), attemptID)
		if err != nil {
			writeError(w, purchaseErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, attempt)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "approve":
		attempt, err := h.app.Purchases.Approve(r.Context(), attemptID)
		if err != nil {
			writeErrorWithState(w, purchaseErrorStatus(err), err, attempt)
			return
		}
		writeJSON(w, http.StatusOK, attempt)
	case "confirm":
		attempt, err := h.app.Purchases.Confirm(r.Context(), attemptID)
		if err != nil {
			writeErrorWithState(w, purchaseErrorStatus(err), err, attempt)
			return
		}
		writeJSON(w, http.StatusOK, attempt)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) ticketSet(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"tickets": h.app.TicketSet.Tickets(),
			"size":    h.app.TicketSet.Size(),
		})

	case http.MethodDelete:
		h.app.TicketSet.Dismiss()
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) ticketSetResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ticketset"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "randomize":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Quantity int `json:"quantity"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.Quantity < 0 || payload.Quantity > lottery.DefaultMaxTicketsPerBuy {
			writeError(w, http.StatusBadRequest, errors.New("quantity out of range"))
			return
		}
		tickets := h.app.TicketSet.Randomize(payload.Quantity)
		writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets})

	case "tickets":
		if len(parts) < 2 || r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		index, err := strconv.Atoi(parts[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid ticket index"))
			return
		}
		var payload struct {
			Number lottery.TicketNumber `json:"number"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.app.TicketSet.UpdateTicket(index, payload.Number); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": h.app.TicketSet.Tickets()})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// purchaseErrorStatus maps service errors to HTTP statuses.
func purchaseErrorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, purchase.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, purchasesvc.ErrRoundNotOpen),
		errors.Is(err, purchasesvc.ErrQuantityInvalid),
		errors.Is(err, purchasesvc.ErrInsufficientBalance),
		errors.Is(err, ticketset.ErrSizeMismatch),
		errors.Is(err, lottery.ErrTicketOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, rounds.ErrNoRound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeErrorWithState includes the attempt's post-failure state so clients
// can resume from the right step.
func writeErrorWithState(w http.ResponseWriter, status int, err error, attempt purchase.Attempt) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"state": attempt.State,
	})
}
