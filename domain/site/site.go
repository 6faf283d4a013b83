// Package site holds the production site entity: one wind or solar
// generation facility owned by a company.
package site

import (
	"fmt"
	"math"
	"strings"
)

// Type is the generation technology of a site.
type Type string

const (
	TypeWind  Type = "Wind"
	TypeSolar Type = "Solar"
)

// ParseType accepts any casing of "wind" or "solar".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wind":
		return TypeWind, nil
	case "solar":
		return TypeSolar, nil
	default:
		return "", fmt.Errorf("type must be Wind or Solar, got %q", s)
	}
}

// Status is the operating status of a site.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// ParseStatus accepts any casing of "active" or "inactive". Empty means Active.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	default:
		return "", fmt.Errorf("status must be Active or Inactive, got %q", s)
	}
}

// DefaultCompanyID is used when a site is created without a company.
const DefaultCompanyID = 1

// Site is the wire and domain shape of a production site.
type Site struct {
	CompanyID          int     `json:"companyId"`
	ProductionSiteID   int     `json:"productionSiteId"`
	Name               string  `json:"name"`
	Location           string  `json:"location"`
	Type               Type    `json:"type"`
	Status             Status  `json:"status"`
	CapacityMW         float64 `json:"capacity_MW"`
	Banking            bool    `json:"banking"`
	HTSCNo             string  `json:"htscNo"`
	InjectionVoltageKV float64 `json:"injectionVoltage_KV"`
	AnnualProductionL  float64 `json:"annualProduction_L"`
	CreatedAt          string  `json:"createdAt,omitempty"`
	UpdatedAt          string  `json:"updatedAt,omitempty"`
}

// Validate checks the creation invariants.
func (s *Site) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(string(s.Type)) == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	t, err := ParseType(string(s.Type))
	if err != nil {
		return err
	}
	s.Type = t

	st, err := ParseStatus(string(s.Status))
	if err != nil {
		return err
	}
	s.Status = st

	return checkNonNegative(map[string]float64{
		"capacity_MW":         s.CapacityMW,
		"injectionVoltage_KV": s.InjectionVoltageKV,
		"annualProduction_L":  s.AnnualProductionL,
	})
}

// Key returns the natural key of the site.
func (s *Site) Key() (int, int) {
	return s.CompanyID, s.ProductionSiteID
}

// Patch is a partial site update. Nil fields are left untouched.
type Patch struct {
	Name               *string
	Location           *string
	Type               *string
	Status             *string
	CapacityMW         *float64
	Banking            *bool
	HTSCNo             *string
	InjectionVoltageKV *float64
	AnnualProductionL  *float64
}

// IsEmpty reports whether the patch sets no field.
func (p *Patch) IsEmpty() bool {
	return p.Name == nil && p.Location == nil && p.Type == nil && p.Status == nil &&
		p.CapacityMW == nil && p.Banking == nil && p.HTSCNo == nil &&
		p.InjectionVoltageKV == nil && p.AnnualProductionL == nil
}

// Validate normalizes enum fields and rejects blank required fields and
// negative numerics.
func (p *Patch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if p.Location != nil && strings.TrimSpace(*p.Location) == "" {
		return fmt.Errorf("location cannot be empty")
	}
	if p.Type != nil {
		t, err := ParseType(*p.Type)
		if err != nil {
			return err
		}
		v := string(t)
		p.Type = &v
	}
	if p.Status != nil {
		st, err := ParseStatus(*p.Status)
		if err != nil {
			return err
		}
		v := string(st)
		p.Status = &v
	}

	values := map[string]float64{}
	if p.CapacityMW != nil {
		values["capacity_MW"] = *p.CapacityMW
	}
	if p.InjectionVoltageKV != nil {
		values["injectionVoltage_KV"] = *p.InjectionVoltageKV
	}
	if p.AnnualProductionL != nil {
		values["annualProduction_L"] = *p.AnnualProductionL
	}
	return checkNonNegative(values)
}

// ToFields converts the patch to stored attribute names and values.
// Banking is stored as 0/1.
func (p *Patch) ToFields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Location != nil {
		fields["location"] = *p.Location
	}
	if p.Type != nil {
		fields["type"] = *p.Type
	}
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.CapacityMW != nil {
		fields["capacity_MW"] = *p.CapacityMW
	}
	if p.Banking != nil {
		fields["banking"] = BankingToInt(*p.Banking)
	}
	if p.HTSCNo != nil {
		fields["htscNo"] = *p.HTSCNo
	}
	if p.InjectionVoltageKV != nil {
		fields["injectionVoltage_KV"] = *p.InjectionVoltageKV
	}
	if p.AnnualProductionL != nil {
		fields["annualProduction_L"] = *p.AnnualProductionL
	}
	return fields
}

// BankingToInt is the stored form of the banking flag.
func BankingToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkNonNegative(values map[string]float64) error {
	for _, name := range []string{"capacity_MW", "injectionVoltage_KV", "annualProduction_L"} {
		if v, ok := values[name]; ok && (!(v >= 0) || math.IsInf(v, 0)) {
			return fmt.Errorf("%s must be a finite number >= 0", name)
		}
	}
	return nil
}
