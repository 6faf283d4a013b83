package production

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// UnitFields is the width of the unit matrix (c1..c5).
	UnitFields = 5
	// ChargeFields is the width of the charge matrix (c001..c010).
	ChargeFields = 10
)

// UnitFieldNames are the stored attribute names of the unit matrix, in order.
var UnitFieldNames = [UnitFields]string{"c1", "c2", "c3", "c4", "c5"}

// ChargeFieldNames are the stored attribute names of the charge matrix, in order.
var ChargeFieldNames = [ChargeFields]string{
	"c001", "c002", "c003", "c004", "c005",
	"c006", "c007", "c008", "c009", "c010",
}

// UnitMatrix holds generation units per category.
type UnitMatrix [UnitFields]int64

// Get returns the value of a unit field by name, e.g. "c3".
func (u UnitMatrix) Get(name string) (int64, bool) {
	for i, n := range UnitFieldNames {
		if n == name {
			return u[i], true
		}
	}
	return 0, false
}

// Total sums c1..c5.
func (u UnitMatrix) Total() int64 {
	var total int64
	for _, v := range u {
		total += v
	}
	return total
}

// ChargeMatrix holds charge units per category.
type ChargeMatrix [ChargeFields]float64

// Get returns the value of a charge field by name, e.g. "c004".
func (c ChargeMatrix) Get(name string) (float64, bool) {
	for i, n := range ChargeFieldNames {
		if n == name {
			return c[i], true
		}
	}
	return 0, false
}

// Total sums c001..c010 in decimal so that 0.1 + 0.2 is exactly 0.3.
func (c ChargeMatrix) Total() float64 {
	total := decimal.Zero
	for _, v := range c {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}

// Measurements is the writable payload of a record.
type Measurements struct {
	Units   UnitMatrix
	Charges *ChargeMatrix
}

// MeasurementPatch carries only the fields a caller wants to overwrite.
type MeasurementPatch struct {
	Units   [UnitFields]*int64
	Charges [ChargeFields]*float64
}

// IsEmpty reports whether the patch sets no field.
func (p MeasurementPatch) IsEmpty() bool {
	for _, v := range p.Units {
		if v != nil {
			return false
		}
	}
	for _, v := range p.Charges {
		if v != nil {
			return false
		}
	}
	return true
}

// FullPatch builds a patch that overwrites every field of m. Charges are
// only included when m carries a charge matrix.
func FullPatch(m Measurements) MeasurementPatch {
	var p MeasurementPatch
	for i := range m.Units {
		v := m.Units[i]
		p.Units[i] = &v
	}
	if m.Charges != nil {
		for i := range m.Charges {
			v := m.Charges[i]
			p.Charges[i] = &v
		}
	}
	return p
}

// Record is one month of measurements for one site.
type Record struct {
	CompanyID        int
	ProductionSiteID int
	Month            MonthYear
	Units            UnitMatrix
	Charges          *ChargeMatrix
	CreatedAt        string
	UpdatedAt        string
}

// PartitionKey returns the composite key "{companyId}_{productionSiteId}".
func PartitionKey(companyID, productionSiteID int) string {
	return fmt.Sprintf("%d_%d", companyID, productionSiteID)
}

// ParsePartitionKey splits a composite key back into its ids.
func ParsePartitionKey(pk string) (companyID, productionSiteID int, err error) {
	parts := strings.Split(pk, "_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("partition key %q must be {companyId}_{productionSiteId}", pk)
	}
	companyID, err = strconv.Atoi(parts[0])
	if err != nil || companyID <= 0 {
		return 0, 0, fmt.Errorf("partition key %q has invalid companyId", pk)
	}
	productionSiteID, err = strconv.Atoi(parts[1])
	if err != nil || productionSiteID <= 0 {
		return 0, 0, fmt.Errorf("partition key %q has invalid productionSiteId", pk)
	}
	return companyID, productionSiteID, nil
}

// PK returns the record's partition key.
func (r *Record) PK() string {
	return PartitionKey(r.CompanyID, r.ProductionSiteID)
}

// SK returns the record's sort key.
func (r *Record) SK() string {
	return r.Month.String()
}

// TotalUnit is the sum of the unit matrix.
func (r *Record) TotalUnit() int64 {
	return r.Units.Total()
}

// TotalCharge is the sum of the charge matrix, zero when absent.
func (r *Record) TotalCharge() float64 {
	if r.Charges == nil {
		return 0
	}
	return r.Charges.Total()
}

// Measurements returns the writable part of the record.
func (r *Record) Measurements() Measurements {
	m := Measurements{Units: r.Units}
	if r.Charges != nil {
		c := *r.Charges
		m.Charges = &c
	}
	return m
}

// Apply overwrites the fields set in p.
func (r *Record) Apply(p MeasurementPatch) {
	for i, v := range p.Units {
		if v != nil {
			r.Units[i] = *v
		}
	}
	for i, v := range p.Charges {
		if v == nil {
			continue
		}
		if r.Charges == nil {
			r.Charges = &ChargeMatrix{}
		}
		r.Charges[i] = *v
	}
}

// MarshalJSON writes the flat wire shape with derived totals and labels.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 24)
	out["pk"] = r.PK()
	out["sk"] = r.SK()
	out["companyId"] = r.CompanyID
	out["productionSiteId"] = r.ProductionSiteID
	for i, name := range UnitFieldNames {
		out[name] = r.Units[i]
	}
	if r.Charges != nil {
		for i, name := range ChargeFieldNames {
			out[name] = r.Charges[i]
		}
	}
	out["totalUnit"] = r.TotalUnit()
	out["totalCharge"] = r.TotalCharge()
	out["month"] = r.Month.Month.String()
	out["year"] = strconv.Itoa(r.Month.Year)
	out["displayMonth"] = r.Month.Label()
	if r.CreatedAt != "" {
		out["createdAt"] = r.CreatedAt
	}
	if r.UpdatedAt != "" {
		out["updatedAt"] = r.UpdatedAt
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat wire shape. Derived fields are ignored.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		PK               string `json:"pk"`
		SK               string `json:"sk"`
		CompanyID        int    `json:"companyId"`
		ProductionSiteID int    `json:"productionSiteId"`
		CreatedAt        string `json:"createdAt"`
		UpdatedAt        string `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	rec := Record{
		CompanyID:        raw.CompanyID,
		ProductionSiteID: raw.ProductionSiteID,
		CreatedAt:        raw.CreatedAt,
		UpdatedAt:        raw.UpdatedAt,
	}
	if raw.PK != "" {
		c, p, err := ParsePartitionKey(raw.PK)
		if err != nil {
			return err
		}
		rec.CompanyID, rec.ProductionSiteID = c, p
	}
	if raw.SK != "" {
		month, err := ParseMonthYear(raw.SK)
		if err != nil {
			return err
		}
		rec.Month = month
	}
	for i, name := range UnitFieldNames {
		if v, ok := fields[name]; ok {
			if err := json.Unmarshal(v, &rec.Units[i]); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	for i, name := range ChargeFieldNames {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if rec.Charges == nil {
			rec.Charges = &ChargeMatrix{}
		}
		if err := json.Unmarshal(v, &rec.Charges[i]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	*r = rec
	return nil
}

// Stamp sets createdAt when empty and always refreshes updatedAt.
func (r *Record) Stamp(now time.Time) {
	ts := now.UTC().Format(time.RFC3339)
	if r.CreatedAt == "" {
		r.CreatedAt = ts
	}
	r.UpdatedAt = ts
}
