package workflow

import (
	"context"
	"errors"
	"testing"

	"prodtracker-backend/domain/production"
	"prodtracker-backend/infrastructure/persistence/memory"
	"prodtracker-backend/infrastructure/persistence/repository"
	apperrors "prodtracker-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var nov2024 = production.MustParseMonthYear("112024")

func newStore() (*repository.ProductionRepository, *memory.Table) {
	table := memory.NewTable("ProductionTable", repository.ProductionSchema)
	return repository.NewProductionRepository(table, zap.NewNop()), table
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CheckExisting(ctx context.Context, c, p int, month production.MonthYear) (*production.Record, error) {
	args := m.Called(ctx, c, p, month)
	rec, _ := args.Get(0).(*production.Record)
	return rec, args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, c, p int, month production.MonthYear, ms production.Measurements) (*production.Record, error) {
	args := m.Called(ctx, c, p, month, ms)
	rec, _ := args.Get(0).(*production.Record)
	return rec, args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, c, p int, month production.MonthYear, patch production.MeasurementPatch) (*production.Record, error) {
	args := m.Called(ctx, c, p, month, patch)
	rec, _ := args.Get(0).(*production.Record)
	return rec, args.Error(1)
}

func TestWizard_CreatePath(t *testing.T) {
	ctx := context.Background()
	store, table := newStore()
	w := NewWizard(store, 1, 1)
	assert.NotEmpty(t, w.ID())
	assert.Equal(t, StateSelectingDate, w.State())

	require.NoError(t, w.SelectMonth(ctx, nov2024))
	assert.Equal(t, StateEnteringUnitMatrix, w.State())

	require.NoError(t, w.EnterUnits(production.UnitMatrix{1, 2, 3, 4, 5}))
	assert.Equal(t, StateEnteringChargeMatrix, w.State())

	require.NoError(t, w.EnterCharges(ctx, &production.ChargeMatrix{0.1, 0.2}))
	assert.Equal(t, StateReview, w.State())

	rec, err := w.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, w.State())
	assert.Equal(t, int64(15), rec.TotalUnit())
	assert.Equal(t, 1, table.Len())
}

func TestWizard_ExistingRecordRoutesToEdit(t *testing.T) {
	ctx := context.Background()
	store, table := newStore()
	_, err := store.Create(ctx, 1, 1, nov2024, production.Measurements{Units: production.UnitMatrix{10, 10, 10, 10, 10}})
	require.NoError(t, err)

	w := NewWizard(store, 1, 1)
	require.NoError(t, w.SelectMonth(ctx, nov2024))
	assert.Equal(t, StateConfirmingOverwrite, w.State())
	require.NotNil(t, w.Existing())

	// No create-path entry is possible until the prompt is answered.
	assert.ErrorIs(t, w.EnterUnits(production.UnitMatrix{}), ErrInvalidTransition)
	_, err = w.Submit(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, w.ConfirmOverwrite(true))
	assert.Equal(t, StateReviewingExistingForEdit, w.State())
	assert.Equal(t, production.UnitMatrix{10, 10, 10, 10, 10}, w.Draft().Units)

	require.NoError(t, w.EnterUnits(production.UnitMatrix{1, 1, 1, 1, 1}))
	rec, err := w.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, w.State())
	assert.Equal(t, int64(5), rec.TotalUnit())

	records, err := store.ListByPartition(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(5), records[0].TotalUnit())
	assert.Equal(t, 1, table.Len())
}

func TestWizard_DeclineOverwrite(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	_, err := store.Create(ctx, 1, 1, nov2024, production.Measurements{})
	require.NoError(t, err)

	w := NewWizard(store, 1, 1)
	require.NoError(t, w.SelectMonth(ctx, nov2024))
	require.NoError(t, w.ConfirmOverwrite(false))
	assert.Equal(t, StateSelectingDate, w.State())
	assert.True(t, w.Month().IsZero())

	require.NoError(t, w.SelectMonth(ctx, production.MustParseMonthYear("122024")))
	assert.Equal(t, StateEnteringUnitMatrix, w.State())
}

func TestWizard_RecordAppearsDuringEntry(t *testing.T) {
	ctx := context.Background()
	store, table := newStore()
	w := NewWizard(store, 1, 1)
	require.NoError(t, w.SelectMonth(ctx, nov2024))
	require.NoError(t, w.EnterUnits(production.UnitMatrix{7, 0, 0, 0, 0}))

	_, err := store.Create(ctx, 1, 1, nov2024, production.Measurements{Units: production.UnitMatrix{1, 0, 0, 0, 0}})
	require.NoError(t, err)

	require.NoError(t, w.EnterCharges(ctx, nil))
	assert.Equal(t, StateConfirmingOverwrite, w.State())

	// Values already typed are kept as the edit draft.
	require.NoError(t, w.ConfirmOverwrite(true))
	assert.Equal(t, int64(7), w.Draft().Units[0])

	_, err = w.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	got, err := store.GetOne(ctx, 1, 1, nov2024)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Units[0])
}

func TestWizard_ConflictOnSubmit(t *testing.T) {
	ctx := context.Background()
	store, table := newStore()
	w := NewWizard(store, 1, 1)
	require.NoError(t, w.SelectMonth(ctx, nov2024))
	require.NoError(t, w.EnterUnits(production.UnitMatrix{}))
	require.NoError(t, w.EnterCharges(ctx, nil))
	require.Equal(t, StateReview, w.State())

	_, err := store.Create(ctx, 1, 1, nov2024, production.Measurements{})
	require.NoError(t, err)

	_, err = w.Submit(ctx)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, StateConfirmingOverwrite, w.State())
	assert.Len(t, w.Notices(), 1)
	assert.Empty(t, w.Notices())
	assert.Equal(t, 1, table.Len())
}

func TestWizard_ProbeFailureReturnsToDateSelection(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	boom := apperrors.NewStoreError("get", "ProductionTable", errors.New("timeout"))
	store.On("CheckExisting", mock.Anything, 1, 1, nov2024).Return(nil, boom)

	w := NewWizard(store, 1, 1)
	err := w.SelectMonth(ctx, nov2024)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateSelectingDate, w.State())

	notices := w.Notices()
	require.Len(t, notices, 1)
	assert.ErrorIs(t, notices[0].Err, boom)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWizard_ProbeFailureAfterEntry(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("CheckExisting", mock.Anything, 1, 1, nov2024).Return(nil, nil).Once()
	store.On("CheckExisting", mock.Anything, 1, 1, nov2024).Return(nil, errors.New("throttled")).Once()

	w := NewWizard(store, 1, 1)
	require.NoError(t, w.SelectMonth(ctx, nov2024))
	require.NoError(t, w.EnterUnits(production.UnitMatrix{}))
	assert.Error(t, w.EnterCharges(ctx, nil))
	assert.Equal(t, StateSelectingDate, w.State())
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWizard_EditedRecordVanished(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	existing := &production.Record{CompanyID: 1, ProductionSiteID: 1, Month: nov2024}
	store.On("CheckExisting", mock.Anything, 1, 1, nov2024).Return(existing, nil)
	store.On("Update", mock.Anything, 1, 1, nov2024, mock.Anything).Return(nil, apperrors.NewNotFoundError("production record"))

	w := NewWizard(store, 1, 1)
	require.NoError(t, w.SelectMonth(ctx, nov2024))
	require.NoError(t, w.ConfirmOverwrite(true))
	_, err := w.Submit(ctx)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, StateReview, w.State())
	assert.Nil(t, w.Existing())
}

func TestWizard_Cancel(t *testing.T) {
	store := new(mockStore)
	w := NewWizard(store, 1, 1)
	require.NoError(t, w.Cancel())
	assert.Equal(t, StateCancelled, w.State())
	assert.ErrorIs(t, w.Cancel(), ErrInvalidTransition)
	assert.ErrorIs(t, w.SelectMonth(context.Background(), nov2024), ErrInvalidTransition)
	store.AssertNotCalled(t, "CheckExisting", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWizard_SelectMonthRequiresMonth(t *testing.T) {
	w := NewWizard(new(mockStore), 1, 1)
	err := w.SelectMonth(context.Background(), production.MonthYear{})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, StateSelectingDate, w.State())
}
