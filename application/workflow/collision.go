// Package workflow drives the "add production data" flow. Before a monthly
// record is created the wizard probes the store for an existing record at
// the same key and, on a hit, routes the user into editing that record
// instead of creating a second one.
//
// The probe and the write are separate store calls with no lock between
// them. A record created by someone else in that window surfaces as a
// ConflictError on submit, which sends the wizard back to the overwrite
// confirmation.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"prodtracker-backend/domain/production"
	apperrors "prodtracker-backend/pkg/errors"

	"github.com/google/uuid"
)

// State is a step of the wizard
type State string

const (
	StateSelectingDate            State = "SelectingDate"
	StateEnteringUnitMatrix       State = "EnteringUnitMatrix"
	StateEnteringChargeMatrix     State = "EnteringChargeMatrix"
	StateReview                   State = "Review"
	StateConfirmingOverwrite      State = "ConfirmingOverwrite"
	StateReviewingExistingForEdit State = "ReviewingExistingForEdit"
	StateSubmitted                State = "Submitted"
	StateCancelled                State = "Cancelled"
)

// IsTerminal reports whether no further transition is possible
func (s State) IsTerminal() bool {
	return s == StateSubmitted || s == StateCancelled
}

// ErrInvalidTransition is returned when an action is not allowed in the
// current state. The wizard is left unchanged.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// RecordStore is what the wizard needs from the production records store.
type RecordStore interface {
	CheckExisting(ctx context.Context, companyID, productionSiteID int, month production.MonthYear) (*production.Record, error)
	Create(ctx context.Context, companyID, productionSiteID int, month production.MonthYear, m production.Measurements) (*production.Record, error)
	Update(ctx context.Context, companyID, productionSiteID int, month production.MonthYear, patch production.MeasurementPatch) (*production.Record, error)
}

// Notice is a non-fatal message for the user
type Notice struct {
	Message string
	Err     error
}

// Wizard is one run of the flow for one site. It is not safe for
// concurrent use.
type Wizard struct {
	id               string
	companyID        int
	productionSiteID int
	store            RecordStore

	state        State
	month        production.MonthYear
	draft        production.Measurements
	unitsEntered bool
	existing     *production.Record
	result       *production.Record
	notices      []Notice
}

// NewWizard starts a wizard in SelectingDate.
func NewWizard(store RecordStore, companyID, productionSiteID int) *Wizard {
	return &Wizard{
		id:               uuid.New().String(),
		companyID:        companyID,
		productionSiteID: productionSiteID,
		store:            store,
		state:            StateSelectingDate,
	}
}

func (w *Wizard) ID() string                     { return w.id }
func (w *Wizard) State() State                   { return w.state }
func (w *Wizard) Month() production.MonthYear    { return w.month }
func (w *Wizard) Draft() production.Measurements { return w.draft }
func (w *Wizard) Existing() *production.Record   { return w.existing }
func (w *Wizard) Result() *production.Record     { return w.result }
func (w *Wizard) PartitionKey() string           { return production.PartitionKey(w.companyID, w.productionSiteID) }

// Notices returns and clears pending notices.
func (w *Wizard) Notices() []Notice {
	out := w.notices
	w.notices = nil
	return out
}

// SelectMonth sets the target month and probes for an existing record.
// It is allowed on every create-path step, since changing the month must
// re-run the probe.
func (w *Wizard) SelectMonth(ctx context.Context, month production.MonthYear) error {
	switch w.state {
	case StateSelectingDate, StateEnteringUnitMatrix, StateEnteringChargeMatrix, StateReview:
	default:
		return w.invalid("select month")
	}
	if month.IsZero() {
		return apperrors.NewValidationError("month is required")
	}

	w.month = month
	w.existing = nil

	hit, err := w.probe(ctx)
	if err != nil {
		return err
	}
	if hit {
		return nil
	}
	if w.state == StateSelectingDate {
		w.state = StateEnteringUnitMatrix
	}
	return nil
}

// EnterUnits records the unit matrix. On the create path it advances to
// the charge matrix; while editing an existing record it replaces the draft.
func (w *Wizard) EnterUnits(units production.UnitMatrix) error {
	switch w.state {
	case StateEnteringUnitMatrix:
		w.draft.Units = units
		w.unitsEntered = true
		w.state = StateEnteringChargeMatrix
	case StateReviewingExistingForEdit:
		w.draft.Units = units
		w.unitsEntered = true
	default:
		return w.invalid("enter units")
	}
	return nil
}

// EnterCharges records the charge matrix, which may be nil for record
// variants without charges. On the create path this is the last entry
// step, so the existence probe runs again before Review.
func (w *Wizard) EnterCharges(ctx context.Context, charges *production.ChargeMatrix) error {
	switch w.state {
	case StateEnteringChargeMatrix:
		w.draft.Charges = copyCharges(charges)
		hit, err := w.probe(ctx)
		if err != nil {
			return err
		}
		if !hit {
			w.state = StateReview
		}
	case StateReviewingExistingForEdit:
		w.draft.Charges = copyCharges(charges)
	default:
		return w.invalid("enter charges")
	}
	return nil
}

// ConfirmOverwrite answers the collision prompt. Accepting moves to
// editing the existing record: its values become the draft unless the user
// has already typed units. Declining goes back to SelectingDate.
func (w *Wizard) ConfirmOverwrite(accept bool) error {
	if w.state != StateConfirmingOverwrite {
		return w.invalid("confirm overwrite")
	}

	if !accept {
		w.month = production.MonthYear{}
		w.existing = nil
		w.state = StateSelectingDate
		return nil
	}

	if !w.unitsEntered && w.existing != nil {
		w.draft = w.existing.Measurements()
	}
	w.state = StateReviewingExistingForEdit
	return nil
}

// Submit writes the draft. From Review it creates a record; from
// ReviewingExistingForEdit it overwrites every measurement of the existing
// record.
func (w *Wizard) Submit(ctx context.Context) (*production.Record, error) {
	switch w.state {
	case StateReview:
		rec, err := w.store.Create(ctx, w.companyID, w.productionSiteID, w.month, w.draft)
		if err != nil {
			if apperrors.IsConflict(err) {
				w.notify("A record for "+w.month.Label()+" was created in the meantime", err)
				if _, probeErr := w.probe(ctx); probeErr != nil {
					return nil, probeErr
				}
				return nil, err
			}
			w.notify("Failed to save production data", err)
			return nil, err
		}
		w.result = rec
		w.state = StateSubmitted
		return rec, nil

	case StateReviewingExistingForEdit:
		rec, err := w.store.Update(ctx, w.companyID, w.productionSiteID, w.month, production.FullPatch(w.draft))
		if err != nil {
			if apperrors.IsNotFound(err) {
				w.notify("The record for "+w.month.Label()+" no longer exists and will be created instead", err)
				w.existing = nil
				w.state = StateReview
				return nil, err
			}
			w.notify("Failed to update production data", err)
			return nil, err
		}
		w.result = rec
		w.state = StateSubmitted
		return rec, nil

	default:
		return nil, w.invalid("submit")
	}
}

// Cancel ends the wizard without writing anything.
func (w *Wizard) Cancel() error {
	if w.state.IsTerminal() {
		return w.invalid("cancel")
	}
	w.state = StateCancelled
	return nil
}

// probe checks for an existing record at the current month. A hit moves to
// ConfirmingOverwrite. A store failure is reported as a notice and sends
// the wizard back to SelectingDate; the error is returned as well.
func (w *Wizard) probe(ctx context.Context) (bool, error) {
	existing, err := w.store.CheckExisting(ctx, w.companyID, w.productionSiteID, w.month)
	if err != nil {
		w.notify("Could not check for existing production data", err)
		w.existing = nil
		w.state = StateSelectingDate
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	w.existing = existing
	w.state = StateConfirmingOverwrite
	return true, nil
}

func (w *Wizard) notify(message string, err error) {
	w.notices = append(w.notices, Notice{Message: message, Err: err})
}

func (w *Wizard) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s in state %s", ErrInvalidTransition, action, w.state)
}

func copyCharges(c *production.ChargeMatrix) *production.ChargeMatrix {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
