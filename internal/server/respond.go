package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/STTM-NSU/portfolio-tracker/internal/api"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/bytedance/sonic"
)

const _maxBodyBytes = 8 << 20

var kindStatus = map[string]int{
	"validation":              http.StatusBadRequest,
	"instrument_not_found":    http.StatusNotFound,
	"position_not_found":      http.StatusNotFound,
	"duplicate_instrument":    http.StatusConflict,
	"snapshot_already_exists": http.StatusConflict,
	"insufficient_position":   http.StatusUnprocessableEntity,
	"data_unavailable":        http.StatusUnprocessableEntity,
}

func statusOf(err error) (int, string) {
	kind := model.KindOf(err)
	if status, ok := kindStatus[kind]; ok {
		return status, kind
	}
	return http.StatusInternalServerError, kind
}

// writeJSON falls back to a 500 error body when v can't be encoded.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Errorf("%s: can't encode response", err)
		status = http.StatusInternalServerError
		body, _ = sonic.Marshal(api.ErrorResponse{Error: "internal error", Kind: model.KindOf(err)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Debugf("%s: can't write response", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Errorf("%s: %s %s failed", err, r.Method, r.URL.Path)
		msg = "internal error"
	}
	h.writeJSON(w, status, api.ErrorResponse{Error: msg, Kind: kind})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, _maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body over %d bytes", model.ValidationError, tooLarge.Limit)
		}
		return fmt.Errorf("%w: can't read request body", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: malformed json: %s", model.ValidationError, err)
	}
	return nil
}
