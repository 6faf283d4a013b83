// Package dashboard computes the aggregate statistics shown on the dashboard.
package dashboard

import (
	"sort"

	"prodtracker-backend/domain/production"
	"prodtracker-backend/domain/site"

	"github.com/shopspring/decimal"
)

// MonthlyTotal is the production of all sites for one month.
type MonthlyTotal struct {
	SK          string  `json:"sk"`
	Label       string  `json:"label"`
	TotalUnit   int64   `json:"totalUnit"`
	TotalCharge float64 `json:"totalCharge"`
}

// Summary is the dashboard view model.
type Summary struct {
	TotalSites             int            `json:"totalSites"`
	ActiveSites            int            `json:"activeSites"`
	InactiveSites          int            `json:"inactiveSites"`
	WindSites              int            `json:"windSites"`
	SolarSites             int            `json:"solarSites"`
	BankingSites           int            `json:"bankingSites"`
	TotalCapacityMW        float64        `json:"totalCapacityMW"`
	TotalAnnualProductionL float64        `json:"totalAnnualProductionL"`
	TotalRecords           int            `json:"totalRecords"`
	TotalUnits             int64          `json:"totalUnits"`
	TotalCharge            float64        `json:"totalCharge"`
	Monthly                []MonthlyTotal `json:"monthly"`
}

type monthAcc struct {
	month  production.MonthYear
	units  int64
	charge decimal.Decimal
}

// Summarize aggregates sites and records. Monthly totals are summed across
// sites and returned oldest first.
func Summarize(sites []site.Site, records []production.Record) Summary {
	s := Summary{TotalSites: len(sites), TotalRecords: len(records), Monthly: []MonthlyTotal{}}

	capacity, annual := decimal.Zero, decimal.Zero
	for _, st := range sites {
		if st.Status == site.StatusInactive {
			s.InactiveSites++
		} else {
			s.ActiveSites++
		}
		switch st.Type {
		case site.TypeWind:
			s.WindSites++
		case site.TypeSolar:
			s.SolarSites++
		}
		if st.Banking {
			s.BankingSites++
		}
		capacity = capacity.Add(decimal.NewFromFloat(st.CapacityMW))
		annual = annual.Add(decimal.NewFromFloat(st.AnnualProductionL))
	}
	s.TotalCapacityMW = capacity.InexactFloat64()
	s.TotalAnnualProductionL = annual.InexactFloat64()

	byMonth := make(map[production.MonthYear]*monthAcc)
	charge := decimal.Zero
	for i := range records {
		rec := &records[i]
		units := rec.TotalUnit()
		recCharge := decimal.NewFromFloat(rec.TotalCharge())

		s.TotalUnits += units
		charge = charge.Add(recCharge)

		acc, ok := byMonth[rec.Month]
		if !ok {
			acc = &monthAcc{month: rec.Month, charge: decimal.Zero}
			byMonth[rec.Month] = acc
		}
		acc.units += units
		acc.charge = acc.charge.Add(recCharge)
	}
	s.TotalCharge = charge.InexactFloat64()

	months := make([]*monthAcc, 0, len(byMonth))
	for _, acc := range byMonth {
		months = append(months, acc)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].month.Before(months[j].month) })

	for _, acc := range months {
		s.Monthly = append(s.Monthly, MonthlyTotal{
			SK:          acc.month.String(),
			Label:       acc.month.Label(),
			TotalUnit:   acc.units,
			TotalCharge: acc.charge.InexactFloat64(),
		})
	}
	return s
}
