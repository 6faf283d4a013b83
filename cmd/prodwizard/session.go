package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"prodtracker-backend/application/workflow"
	"prodtracker-backend/domain/production"
	apperrors "prodtracker-backend/pkg/errors"
)

// session runs one wizard against a terminal
type session struct {
	wizard *workflow.Wizard
	in     *bufio.Scanner
	out    io.Writer
}

func newSession(w *workflow.Wizard, in io.Reader, out io.Writer) *session {
	return &session{wizard: w, in: bufio.NewScanner(in), out: out}
}

// run drives the wizard until it reaches a terminal state or input ends
func (s *session) run(ctx context.Context) error {
	s.printf("Production entry for site %s (session %s)\n", s.wizard.PartitionKey(), s.wizard.ID())

	for !s.wizard.State().IsTerminal() {
		var err error
		switch s.wizard.State() {
		case workflow.StateSelectingDate:
			err = s.selectMonth(ctx)
		case workflow.StateEnteringUnitMatrix:
			err = s.enterUnits()
		case workflow.StateEnteringChargeMatrix:
			err = s.enterCharges(ctx)
		case workflow.StateReview:
			err = s.review(ctx)
		case workflow.StateConfirmingOverwrite:
			err = s.confirmOverwrite()
		case workflow.StateReviewingExistingForEdit:
			err = s.edit(ctx)
		}
		s.flushNotices()

		if err == io.EOF {
			return s.wizard.Cancel()
		}
		if err != nil && !recoverable(err) {
			return err
		}
		if err != nil {
			s.printf("Error: %v\n", err)
		}
	}

	if rec := s.wizard.Result(); rec != nil {
		s.printf("Saved %s for %s: %d units, %.2f charges\n",
			rec.PK(), rec.Month.Label(), rec.TotalUnit(), rec.TotalCharge())
	} else {
		s.printf("Cancelled, nothing was saved\n")
	}
	return nil
}

func (s *session) selectMonth(ctx context.Context) error {
	line, err := s.ask("Month (MMYYYY), blank to cancel: ")
	if err != nil {
		return err
	}
	if line == "" {
		return s.wizard.Cancel()
	}
	month, err := production.ParseMonthYear(line)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return s.wizard.SelectMonth(ctx, month)
}

func (s *session) enterUnits() error {
	units, err := s.readUnits(production.UnitMatrix{})
	if err != nil {
		return err
	}
	return s.wizard.EnterUnits(units)
}

func (s *session) enterCharges(ctx context.Context) error {
	charges, err := s.readCharges(nil)
	if err != nil {
		return err
	}
	return s.wizard.EnterCharges(ctx, charges)
}

func (s *session) review(ctx context.Context) error {
	s.printDraft("New record", s.wizard.Draft())
	choice, err := s.ask("[s]ubmit, change [m]onth, [c]ancel: ")
	if err != nil {
		return err
	}
	switch strings.ToLower(choice) {
	case "s":
		_, err = s.wizard.Submit(ctx)
		return err
	case "m":
		return s.selectMonth(ctx)
	case "c":
		return s.wizard.Cancel()
	}
	return nil
}

func (s *session) confirmOverwrite() error {
	if rec := s.wizard.Existing(); rec != nil {
		s.printDraft("Existing record for "+rec.Month.Label(), rec.Measurements())
	}
	answer, err := s.ask("A record already exists for this month. Edit it instead? [y/N]: ")
	if err != nil {
		return err
	}
	return s.wizard.ConfirmOverwrite(strings.EqualFold(answer, "y"))
}

func (s *session) edit(ctx context.Context) error {
	draft := s.wizard.Draft()
	s.printDraft("Editing "+s.wizard.Month().Label(), draft)
	choice, err := s.ask("edit [u]nits, edit c[h]arges, [s]ubmit, [c]ancel: ")
	if err != nil {
		return err
	}
	switch strings.ToLower(choice) {
	case "u":
		units, err := s.readUnits(draft.Units)
		if err != nil {
			return err
		}
		return s.wizard.EnterUnits(units)
	case "h":
		charges, err := s.readCharges(draft.Charges)
		if err != nil {
			return err
		}
		return s.wizard.EnterCharges(ctx, charges)
	case "s":
		_, err = s.wizard.Submit(ctx)
		return err
	case "c":
		return s.wizard.Cancel()
	}
	return nil
}

// readUnits prompts for each unit field. A blank answer keeps the current value.
func (s *session) readUnits(current production.UnitMatrix) (production.UnitMatrix, error) {
	units := current
	for i, name := range production.UnitFieldNames {
		for {
			line, err := s.ask(fmt.Sprintf("  %s [%d]: ", name, current[i]))
			if err != nil {
				return units, err
			}
			if line == "" {
				break
			}
			v, convErr := strconv.ParseInt(line, 10, 64)
			if convErr != nil || v < 0 {
				s.printf("  %s must be a non-negative whole number\n", name)
				continue
			}
			units[i] = v
			break
		}
	}
	return units, nil
}

// readCharges prompts for each charge field. Without a current matrix it
// first asks whether the record carries charges; no yields nil.
func (s *session) readCharges(current *production.ChargeMatrix) (*production.ChargeMatrix, error) {
	charges := &production.ChargeMatrix{}
	if current != nil {
		*charges = *current
	} else {
		answer, err := s.ask("Enter charges? [y/N]: ")
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(answer, "y") {
			return nil, nil
		}
	}
	for i, name := range production.ChargeFieldNames {
		for {
			line, err := s.ask(fmt.Sprintf("  %s [%g]: ", name, charges[i]))
			if err != nil {
				return nil, err
			}
			if line == "" {
				break
			}
			v, convErr := strconv.ParseFloat(line, 64)
			if convErr != nil || v < 0 {
				s.printf("  %s must be a non-negative number\n", name)
				continue
			}
			charges[i] = v
			break
		}
	}
	return charges, nil
}

func (s *session) printDraft(title string, m production.Measurements) {
	s.printf("%s\n", title)
	for i, name := range production.UnitFieldNames {
		s.printf("  %-5s %d\n", name, m.Units[i])
	}
	s.printf("  total units  %d\n", m.Units.Total())
	if m.Charges == nil {
		s.printf("  no charges\n")
		return
	}
	for i, name := range production.ChargeFieldNames {
		s.printf("  %-5s %g\n", name, m.Charges[i])
	}
	s.printf("  total charge %.2f\n", m.Charges.Total())
}

func (s *session) flushNotices() {
	for _, n := range s.wizard.Notices() {
		s.printf("! %s\n", n.Message)
	}
}

func (s *session) ask(prompt string) (string, error) {
	s.printf("%s", prompt)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}

func (s *session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

// recoverable reports whether the user can retry after err. Store outages
// are shown and the wizard keeps its state.
func recoverable(err error) bool {
	return apperrors.IsAppError(err)
}
