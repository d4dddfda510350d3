package server

import (
	"net/http"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/api"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
)

// GET /api/assets/overview
func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.portfolio.Overview(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

// PUT /api/assets/cash
func (h *Handler) setCash(w http.ResponseWriter, r *http.Request) {
	var req api.CashRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	b, err := h.portfolio.SetBalance(r.Context(), req.Currency, req.Value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

// GET /api/assets/history?start_date=&end_date=
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		rng model.DateRange
		err error
	)
	if s := q.Get("start_date"); s != "" {
		if rng.From, err = model.ParseDate(s); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if s := q.Get("end_date"); s != "" {
		if rng.To, err = model.ParseDate(s); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	snaps, err := h.snapshots.History(r.Context(), rng)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snaps)
}

// POST /api/assets/snapshots
func (h *Handler) createSnapshot(w http.ResponseWriter, r *http.Request) {
	var req api.SnapshotRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	snap, err := h.snapshots.Create(r.Context(), date, req.Aggregate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, snap)
}

// POST /api/assets/snapshots/capture values the portfolio now and stores it under the given date,
// today in the snapshot time zone by default.
func (h *Handler) captureSnapshot(w http.ResponseWriter, r *http.Request) {
	var req api.CaptureRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var date time.Time
	if req.Date == "" {
		date = h.now().In(h.cfg.Snapshots.Location())
	} else {
		var err error
		if date, err = model.ParseDate(req.Date); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	snap, err := h.portfolio.Capture(r.Context(), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, snap)
}
