package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "prodtracker-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestFlexInt(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int64
	}{
		{`7`, 7},
		{`"7"`, 7},
		{`3.0`, 3},
		{`" -2 "`, -2},
	} {
		var v flexInt
		require.NoError(t, json.Unmarshal([]byte(tc.in), &v), tc.in)
		assert.True(t, v.Set)
		assert.Equal(t, tc.want, v.Value, tc.in)
	}

	for _, in := range []string{`1.9`, `"1.5"`, `1e300`, `"NaN"`, `"Inf"`, `"x"`} {
		var v flexInt
		err := json.Unmarshal([]byte(in), &v)
		require.Error(t, err, in)
		assert.True(t, apperrors.IsValidation(err), in)
		assert.False(t, v.Set, in)
	}

	var empty flexInt
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.False(t, empty.Set)
}

func TestFlexFloat(t *testing.T) {
	var v flexFloat
	require.NoError(t, json.Unmarshal([]byte(`"2.5"`), &v))
	assert.Equal(t, 2.5, v.Value)

	for _, in := range []string{`"NaN"`, `"nan"`, `"Inf"`, `"-Infinity"`, `"+inf"`} {
		var f flexFloat
		err := json.Unmarshal([]byte(in), &f)
		require.Error(t, err, in)
		assert.True(t, apperrors.IsValidation(err), in)
	}
}

func TestRespondJSON(t *testing.T) {
	t.Run("writes status and body", func(t *testing.T) {
		w := httptest.NewRecorder()
		respondJSON(w, zap.NewNop(), http.StatusCreated, map[string]int{"a": 1})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"a":1}`, w.Body.String())
	})

	t.Run("encode failure is a 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		respondJSON(w, zaptest.NewLogger(t), http.StatusCreated, map[string]float64{"c001": math.NaN()})
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["error"])
		assert.Equal(t, "INTERNAL", body["type"])
	})
}
