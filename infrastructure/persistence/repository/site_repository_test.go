package repository

import (
	"context"
	"testing"
	"time"

	"prodtracker-backend/domain/site"
	"prodtracker-backend/infrastructure/persistence/abstractions"
	"prodtracker-backend/infrastructure/persistence/memory"
	apperrors "prodtracker-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSiteRepo() (*SiteRepository, *memory.Table) {
	table := memory.NewTable("ProductionSiteTable", SiteSchema)
	repo := NewSiteRepository(table, zap.NewNop())
	repo.now = func() time.Time { return time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC) }
	return repo, table
}

func TestSiteRepository_CreateThenGetOne(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSiteRepo()

	created, err := repo.Create(ctx, site.Site{
		CompanyID:        1,
		ProductionSiteID: 1,
		Name:             "Site A",
		Location:         "X",
		Type:             "Wind",
		CapacityMW:       2.5,
		Banking:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, site.StatusActive, created.Status)
	assert.Equal(t, "2024-11-05T10:00:00Z", created.CreatedAt)

	got, err := repo.GetOne(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Site A", got.Name)
	assert.Equal(t, "X", got.Location)
	assert.Equal(t, site.TypeWind, got.Type)
	assert.Equal(t, 2.5, got.CapacityMW)
	assert.True(t, got.Banking)
	assert.Equal(t, *created, *got)
}

func TestSiteRepository_CreateValidation(t *testing.T) {
	ctx := context.Background()

	for name, s := range map[string]site.Site{
		"missing name":     {Location: "X", Type: "Wind"},
		"missing location": {Name: "A", Type: "Wind"},
		"missing type":     {Name: "A", Location: "X"},
		"negative id":      {Name: "A", Location: "X", Type: "Wind", ProductionSiteID: -1},
	} {
		t.Run(name, func(t *testing.T) {
			repo, table := newSiteRepo()
			_, err := repo.Create(ctx, s)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, 0, table.Len())
		})
	}
}

func TestSiteRepository_CreateDefaults(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSiteRepo()

	first, err := repo.Create(ctx, site.Site{Name: "A", Location: "X", Type: "Solar"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.CompanyID)
	assert.Equal(t, 1, first.ProductionSiteID)

	_, err = repo.Create(ctx, site.Site{CompanyID: 1, ProductionSiteID: 7, Name: "B", Location: "Y", Type: "Wind"})
	require.NoError(t, err)

	next, err := repo.Create(ctx, site.Site{Name: "C", Location: "Z", Type: "Wind"})
	require.NoError(t, err)
	assert.Equal(t, 8, next.ProductionSiteID)

	other, err := repo.Create(ctx, site.Site{CompanyID: 2, Name: "D", Location: "W", Type: "Wind"})
	require.NoError(t, err)
	assert.Equal(t, 1, other.ProductionSiteID)

	_, err = repo.Create(ctx, site.Site{CompanyID: 1, ProductionSiteID: 7, Name: "Dup", Location: "Y", Type: "Wind"})
	assert.True(t, apperrors.IsConflict(err))
}

func TestSiteRepository_ListAll(t *testing.T) {
	ctx := context.Background()
	repo, table := newSiteRepo()

	sites, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, sites)
	assert.Empty(t, sites)

	// Legacy item with string numbers and a garbage capacity.
	_, err = table.Put(ctx, abstractions.Item{
		"companyId":           &types.AttributeValueMemberN{Value: "1"},
		"productionSiteId":    &types.AttributeValueMemberN{Value: "2"},
		"name":                &types.AttributeValueMemberS{Value: "Legacy"},
		"location":            &types.AttributeValueMemberS{Value: "L"},
		"type":                &types.AttributeValueMemberS{Value: "solar"},
		"capacity_MW":         &types.AttributeValueMemberS{Value: "not a number"},
		"injectionVoltage_KV": &types.AttributeValueMemberS{Value: "33"},
		"banking":             &types.AttributeValueMemberN{Value: "1"},
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, site.Site{CompanyID: 1, ProductionSiteID: 1, Name: "A", Location: "X", Type: "Wind"})
	require.NoError(t, err)

	sites, err = repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, 1, sites[0].ProductionSiteID)

	legacy := sites[1]
	assert.Equal(t, site.TypeSolar, legacy.Type)
	assert.Equal(t, site.StatusActive, legacy.Status)
	assert.Equal(t, float64(0), legacy.CapacityMW)
	assert.Equal(t, float64(33), legacy.InjectionVoltageKV)
	assert.True(t, legacy.Banking)
}

func TestSiteRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSiteRepo()
	_, err := repo.Create(ctx, site.Site{CompanyID: 1, ProductionSiteID: 1, Name: "A", Location: "X", Type: "Wind", CapacityMW: 3})
	require.NoError(t, err)

	repo.now = func() time.Time { return time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC) }
	name := "Renamed"
	banking := true
	updated, err := repo.Update(ctx, 1, 1, site.Patch{Name: &name, Banking: &banking})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, updated.Banking)
	assert.Equal(t, "2024-12-01T00:00:00Z", updated.UpdatedAt)

	got, err := repo.GetOne(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "X", got.Location)
	assert.Equal(t, float64(3), got.CapacityMW)
	assert.Equal(t, "2024-11-05T10:00:00Z", got.CreatedAt)

	_, err = repo.Update(ctx, 1, 99, site.Patch{Name: &name})
	assert.True(t, apperrors.IsNotFound(err))

	bad := "Hydro"
	_, err = repo.Update(ctx, 1, 1, site.Patch{Type: &bad})
	assert.True(t, apperrors.IsValidation(err))
}

func TestSiteRepository_Remove(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSiteRepo()
	_, err := repo.Create(ctx, site.Site{CompanyID: 1, ProductionSiteID: 1, Name: "A", Location: "X", Type: "Wind"})
	require.NoError(t, err)

	old, err := repo.Remove(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, "A", old.Name)

	got, err := repo.GetOne(ctx, 1, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	old, err = repo.Remove(ctx, 1, 1)
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestSiteRepository_GetOneValidation(t *testing.T) {
	repo, _ := newSiteRepo()
	_, err := repo.GetOne(context.Background(), 0, 1)
	assert.True(t, apperrors.IsValidation(err))
}
