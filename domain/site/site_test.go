package site

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSite_Validate(t *testing.T) {
	t.Run("normalizes enums and defaults status", func(t *testing.T) {
		s := Site{Name: "Site A", Location: "X", Type: "wind"}
		require.NoError(t, s.Validate())
		assert.Equal(t, TypeWind, s.Type)
		assert.Equal(t, StatusActive, s.Status)
	})

	t.Run("missing required fields", func(t *testing.T) {
		s := Site{Name: " ", Type: "Solar"}
		err := s.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
		assert.Contains(t, err.Error(), "location")
	})

	t.Run("unknown type", func(t *testing.T) {
		s := Site{Name: "A", Location: "X", Type: "Hydro"}
		assert.Error(t, s.Validate())
	})

	t.Run("negative capacity", func(t *testing.T) {
		s := Site{Name: "A", Location: "X", Type: "Solar", CapacityMW: -1}
		assert.Error(t, s.Validate())
	})

	t.Run("non-finite numbers", func(t *testing.T) {
		for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			s := Site{Name: "A", Location: "X", Type: "Solar", InjectionVoltageKV: v}
			err := s.Validate()
			require.Error(t, err, "%v", v)
			assert.Contains(t, err.Error(), "injectionVoltage_KV")
		}
	})
}

func TestPatch(t *testing.T) {
	name := "Renamed"
	typ := "SOLAR"
	banking := true
	capacity := 12.5

	p := Patch{Name: &name, Type: &typ, Banking: &banking, CapacityMW: &capacity}
	assert.False(t, p.IsEmpty())
	require.NoError(t, p.Validate())

	fields := p.ToFields()
	assert.Equal(t, map[string]interface{}{
		"name":        "Renamed",
		"type":        "Solar",
		"banking":     1,
		"capacity_MW": 12.5,
	}, fields)

	empty := ""
	assert.Error(t, (&Patch{Location: &empty}).Validate())

	negative := -3.0
	assert.Error(t, (&Patch{AnnualProductionL: &negative}).Validate())

	nan := math.NaN()
	assert.Error(t, (&Patch{CapacityMW: &nan}).Validate())

	assert.True(t, (&Patch{}).IsEmpty())
}
