package repository

import (
	"context"
	"testing"
	"time"

	"prodtracker-backend/domain/production"
	"prodtracker-backend/infrastructure/persistence/abstractions"
	"prodtracker-backend/infrastructure/persistence/memory"
	apperrors "prodtracker-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newProductionRepo() (*ProductionRepository, *memory.Table) {
	table := memory.NewTable("ProductionTable", ProductionSchema)
	repo := NewProductionRepository(table, zap.NewNop())
	repo.now = func() time.Time { return time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC) }
	return repo, table
}

var jan2024 = production.MustParseMonthYear("012024")

func TestProductionRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo, _ := newProductionRepo()

	rec, err := repo.Create(ctx, 1, 1, jan2024, production.Measurements{
		Units: production.UnitMatrix{100, 200, 300, 400, 500},
	})
	require.NoError(t, err)
	assert.Equal(t, "1_1", rec.PK())
	assert.Equal(t, "2024-02-01T08:00:00Z", rec.CreatedAt)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	records, err := repo.ListByPartition(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1500), records[0].TotalUnit())
	assert.Nil(t, records[0].Charges)

	_, err = repo.Create(ctx, 1, 1, jan2024, production.Measurements{})
	assert.True(t, apperrors.IsConflict(err))

	records, err = repo.ListByPartition(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestProductionRepository_ListByPartitionEmpty(t *testing.T) {
	repo, _ := newProductionRepo()
	records, err := repo.ListByPartition(context.Background(), 4, 4)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestProductionRepository_ChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	repo, _ := newProductionRepo()
	for _, sk := range []string{"022024", "122023", "012024"} {
		_, err := repo.Create(ctx, 1, 1, production.MustParseMonthYear(sk), production.Measurements{})
		require.NoError(t, err)
	}

	records, err := repo.ListByPartition(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "122023", records[0].SK())
	assert.Equal(t, "012024", records[1].SK())
	assert.Equal(t, "022024", records[2].SK())

	inYear, err := repo.ListByYear(ctx, 1, 1, 2024)
	require.NoError(t, err)
	assert.Len(t, inYear, 2)
}

func TestProductionRepository_ListByYearExactMatch(t *testing.T) {
	ctx := context.Background()
	repo, _ := newProductionRepo()
	// February of year 205 is "020205", which contains "2020".
	_, err := repo.Create(ctx, 1, 1, production.MustParseMonthYear("020205"), production.Measurements{})
	require.NoError(t, err)
	_, err = repo.Create(ctx, 1, 1, production.MustParseMonthYear("122020"), production.Measurements{})
	require.NoError(t, err)

	records, err := repo.ListByYear(ctx, 1, 1, 2020)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "122020", records[0].SK())

	_, err = repo.ListByYear(ctx, 1, 1, 0)
	assert.True(t, apperrors.IsValidation(err))
}

func TestProductionRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo, _ := newProductionRepo()
	_, err := repo.Create(ctx, 1, 1, jan2024, production.Measurements{
		Units:   production.UnitMatrix{1, 2, 3, 4, 5},
		Charges: &production.ChargeMatrix{0.5},
	})
	require.NoError(t, err)

	repo.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	ten := int64(10)
	charge := 1.25
	var patch production.MeasurementPatch
	patch.Units[0] = &ten
	patch.Charges[9] = &charge

	updated, err := repo.Update(ctx, 1, 1, jan2024, patch)
	require.NoError(t, err)
	assert.Equal(t, production.UnitMatrix{10, 2, 3, 4, 5}, updated.Units)
	require.NotNil(t, updated.Charges)
	assert.Equal(t, 0.5, updated.Charges[0])
	assert.Equal(t, 1.25, updated.Charges[9])
	assert.Equal(t, "2024-02-01T08:00:00Z", updated.CreatedAt)
	assert.Equal(t, "2024-03-01T00:00:00Z", updated.UpdatedAt)

	got, err := repo.GetOne(ctx, 1, 1, jan2024)
	require.NoError(t, err)
	assert.Equal(t, *updated, *got)

	_, err = repo.Update(ctx, 1, 2, jan2024, patch)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestProductionRepository_RemoveAndCheckExisting(t *testing.T) {
	ctx := context.Background()
	repo, _ := newProductionRepo()
	_, err := repo.Create(ctx, 1, 1, jan2024, production.Measurements{})
	require.NoError(t, err)

	existing, err := repo.CheckExisting(ctx, 1, 1, jan2024)
	require.NoError(t, err)
	assert.NotNil(t, existing)

	old, err := repo.Remove(ctx, 1, 1, jan2024)
	require.NoError(t, err)
	assert.NotNil(t, old)

	existing, err = repo.CheckExisting(ctx, 1, 1, jan2024)
	require.NoError(t, err)
	assert.Nil(t, existing)

	_, err = repo.GetOne(ctx, 1, 1, production.MonthYear{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestProductionRepository_LenientRead(t *testing.T) {
	ctx := context.Background()
	repo, table := newProductionRepo()

	_, err := table.Put(ctx, abstractions.Item{
		"pk": &types.AttributeValueMemberS{Value: "1_1"},
		"sk": &types.AttributeValueMemberS{Value: "032024"},
		"c1": &types.AttributeValueMemberS{Value: "42"},
		"c2": &types.AttributeValueMemberS{Value: "oops"},
		"c3": &types.AttributeValueMemberN{Value: "7.9"},
	})
	require.NoError(t, err)
	_, err = table.Put(ctx, abstractions.Item{
		"pk": &types.AttributeValueMemberS{Value: "garbage"},
		"sk": &types.AttributeValueMemberS{Value: "032024"},
	})
	require.NoError(t, err)

	records, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, production.UnitMatrix{42, 0, 7, 0, 0}, records[0].Units)
}
