package handlers

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"prodtracker-backend/domain/production"
	apperrors "prodtracker-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// flexInt accepts a JSON number or a numeric string. Forms send both.
// Integral floats such as 3.0 are accepted; fractions are rejected.
type flexInt struct {
	Value int64
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw, ok := unquote(data)
	if !ok {
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		f.Value, f.Set = v, true
		return nil
	}
	v, err := parseFinite(raw)
	if err != nil {
		return err
	}
	if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
		return apperrors.NewValidationErrorf("%q is not a whole number", raw)
	}
	f.Value, f.Set = int64(v), true
	return nil
}

// flexFloat is the float counterpart of flexInt.
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	raw, ok := unquote(data)
	if !ok {
		return nil
	}
	v, err := parseFinite(raw)
	if err != nil {
		return err
	}
	f.Value, f.Set = v, true
	return nil
}

// parseFinite parses a float and rejects NaN and the infinities, which
// ParseFloat accepts by name.
func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperrors.NewValidationErrorf("%q is not a number", raw)
	}
	return v, nil
}

// flexBool accepts true/false, 0/1 and their string forms.
type flexBool struct {
	Value bool
	Set   bool
}

func (f *flexBool) UnmarshalJSON(data []byte) error {
	raw, ok := unquote(data)
	if !ok {
		return nil
	}
	switch strings.ToLower(raw) {
	case "true", "1":
		f.Value, f.Set = true, true
	case "false", "0":
		f.Value, f.Set = false, true
	default:
		return apperrors.NewValidationErrorf("%q is not a boolean", raw)
	}
	return nil
}

// unquote returns the trimmed scalar text; null and "" report false.
func unquote(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", false
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return "", false
		}
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return apperrors.NewValidationError("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if appErr := apperrors.GetAppError(err); appErr != nil {
			return appErr
		}
		return apperrors.NewValidationError("Invalid request body: " + err.Error())
	}
	return nil
}

func pathInt(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, apperrors.NewValidationErrorf("%s is required", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, apperrors.NewValidationErrorf("%s must be a positive integer", name)
	}
	return v, nil
}

func pathSiteIDs(r *http.Request) (int, int, error) {
	companyID, err := pathInt(r, "companyId")
	if err != nil {
		return 0, 0, err
	}
	productionSiteID, err := pathInt(r, "productionSiteId")
	if err != nil {
		return 0, 0, err
	}
	return companyID, productionSiteID, nil
}

func pathMonth(r *http.Request) (production.MonthYear, error) {
	month, err := production.ParseMonthYear(chi.URLParam(r, "month"))
	if err != nil {
		return production.MonthYear{}, apperrors.NewValidationError(err.Error())
	}
	return month, nil
}

// respondJSON encodes before writing the status, so an encode failure is
// reported as a 500 instead of a success with an empty body.
func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":true,"type":"INTERNAL","message":"failed to encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body = append(body, '\n')
	if _, err := w.Write(body); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}
