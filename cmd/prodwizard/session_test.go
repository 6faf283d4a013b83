package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"prodtracker-backend/application/workflow"
	"prodtracker-backend/domain/production"
	"prodtracker-backend/infrastructure/persistence/memory"
	"prodtracker-backend/infrastructure/persistence/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRepo() *repository.ProductionRepository {
	return repository.NewProductionRepository(memory.NewTable("ProductionTable", repository.ProductionSchema), zap.NewNop())
}

func runSession(t *testing.T, repo *repository.ProductionRepository, input ...string) (*workflow.Wizard, string) {
	t.Helper()
	var out bytes.Buffer
	w := workflow.NewWizard(repo, 1, 1)
	err := newSession(w, strings.NewReader(strings.Join(input, "\n")+"\n"), &out).run(context.Background())
	require.NoError(t, err)
	return w, out.String()
}

func TestSession_CreatesRecord(t *testing.T) {
	repo := newRepo()
	w, out := runSession(t, repo,
		"112024",
		"1", "2", "abc", "3", "4", "5",
		"y", "0.5", "", "", "", "", "", "", "", "", "0.25",
		"s",
	)

	assert.Equal(t, workflow.StateSubmitted, w.State())
	assert.Contains(t, out, "c3 must be a non-negative whole number")
	assert.Contains(t, out, "Saved 1_1 for November 2024: 15 units, 0.75 charges")

	rec, err := repo.CheckExisting(context.Background(), 1, 1, production.MustParseMonthYear("112024"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, production.UnitMatrix{1, 2, 3, 4, 5}, rec.Units)
}

func TestSession_EditsExistingMonth(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	month := production.MustParseMonthYear("112024")
	_, err := repo.Create(ctx, 1, 1, month, production.Measurements{Units: production.UnitMatrix{1, 1, 1, 1, 1}})
	require.NoError(t, err)

	w, out := runSession(t, repo,
		"112024",
		"y",
		"u", "9", "", "", "", "",
		"s",
	)

	assert.Equal(t, workflow.StateSubmitted, w.State())
	assert.Contains(t, out, "A record already exists for this month")
	assert.Contains(t, out, "13 units")

	records, err := repo.ListByPartition(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(13), records[0].TotalUnit())
}

func TestSession_DeclineThenEndOfInput(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	month := production.MustParseMonthYear("112024")
	_, err := repo.Create(ctx, 1, 1, month, production.Measurements{Units: production.UnitMatrix{1, 1, 1, 1, 1}})
	require.NoError(t, err)

	w, _ := runSession(t, repo, "112024", "n")

	assert.Equal(t, workflow.StateCancelled, w.State())
	rec, err := repo.CheckExisting(ctx, 1, 1, month)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.TotalUnit())
}

func TestSession_InvalidMonthIsRetried(t *testing.T) {
	w, out := runSession(t, newRepo(), "132024", "")

	assert.Equal(t, workflow.StateCancelled, w.State())
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "Cancelled, nothing was saved")
}
