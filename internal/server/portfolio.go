package server

import (
	"fmt"
	"net/http"

	"github.com/STTM-NSU/portfolio-tracker/internal/api"
	"github.com/STTM-NSU/portfolio-tracker/internal/ledger"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
)

// POST /api/portfolio/trade
func (h *Handler) trade(w http.ResponseWriter, r *http.Request) {
	var req api.TradeRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	market, err := model.ParseMarket(req.Market)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	side, err := model.ParseSide(req.Action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.ledger.Trade(r.Context(), ledger.TradeRequest{
		Symbol:     req.Symbol,
		Market:     market,
		Side:       side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		ExecutedAt: req.ExecutedAt,
		Reason:     req.Reason,
		Tags:       req.Tags,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, api.TradeResponse{
		Instrument:  res.Instrument,
		Transaction: res.Transaction,
		Holding:     res.Holding,
	})
}

// GET /api/portfolio/holdings
func (h *Handler) holdings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.ledger.CurrentHoldings(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, holdings)
}

// GET /api/portfolio/transactions?symbol=&market=
func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	market, err := model.ParseMarket(q.Get("market"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	instr, err := h.registry.Resolve(r.Context(), q.Get("symbol"), market)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	txs, err := h.ledger.Transactions(r.Context(), instr.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.TransactionsResponse{Instrument: instr, Transactions: txs})
}

// POST /api/portfolio/rebaseline
func (h *Handler) rebaseline(w http.ResponseWriter, r *http.Request) {
	var req api.RebaselineRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	targets := make([]ledger.RebaselineTarget, len(req.Targets))
	for i, t := range req.Targets {
		market, err := model.ParseMarket(t.Market)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: target %d", err, i))
			return
		}
		targets[i] = ledger.RebaselineTarget{Symbol: t.Symbol, Market: market, Quantity: t.Quantity, Price: t.Price}
	}

	adjustments, err := h.ledger.Rebaseline(r.Context(), targets, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.RebaselineResponse{Adjustments: adjustments})
}

// GET /api/portfolio/verify
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	divergences, err := h.ledger.Verify(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if divergences == nil {
		divergences = []ledger.Divergence{}
	}
	h.writeJSON(w, http.StatusOK, api.VerifyResponse{Consistent: len(divergences) == 0, Divergences: divergences})
}
