package server

import (
	"net/http"

	"github.com/STTM-NSU/portfolio-tracker/internal/analytics"
	"github.com/STTM-NSU/portfolio-tracker/internal/api"
)

// POST /api/performance/report
func (h *Handler) performanceReport(w http.ResponseWriter, r *http.Request) {
	var req api.ReportRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	params := h.cfg.Analytics.Params()
	if p := req.Params; p != nil {
		if p.InitialCash != 0 {
			params.InitialCash = p.InitialCash
		}
		if p.RiskFreeRate != 0 {
			params.RiskFreeRate = p.RiskFreeRate
		}
		if p.PeriodsPerYear != 0 {
			params.PeriodsPerYear = p.PeriodsPerYear
		}
		if p.Slippage != 0 {
			params.Slippage = p.Slippage
		}
		if p.Commission != 0 {
			params.Commission = p.Commission
		}
	}

	multiplier := h.cfg.Analytics.Multiplier
	if req.Multiplier > 0 {
		multiplier = req.Multiplier
	}
	req.Input.FillPoints(multiplier)

	m, err := analytics.Compute(req.Input, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report := m.Report()
	resp := api.ReportResponse{Report: report}
	if err := report.Err(); err != nil {
		resp.Warning = err.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}
