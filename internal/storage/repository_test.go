package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scadenze/internal/core"
	"scadenze/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "scadenze.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_ObligationRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	obligations := []core.Obligation{
		{Label: "Alquiler", Amount: decimal.RequireFromString("650"), Rule: core.MonthlyRule{DayOfMonth: 1}, CreatedAt: core.NewDate(2024, time.January, 1)},
		{Label: "Calcetto", Amount: decimal.RequireFromString("8.50"), Rule: core.WeeklyRule{Weekday: time.Friday}, CreatedAt: core.NewDate(2024, time.January, 5)},
		{Label: "Bollo", Amount: decimal.RequireFromString("210.33"), Rule: core.AnnualRule{Month: time.February, Day: 29}, CreatedAt: core.NewDate(2024, time.January, 1)},
	}
	for _, o := range obligations {
		require.NoError(t, repo.CreateObligation(ctx, o))
	}

	err := repo.CreateObligation(ctx, obligations[0])
	assert.ErrorIs(t, err, core.ErrDuplicateObligation)

	list, err := repo.ListObligations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Alquiler", list[0].Label)
	assert.Equal(t, "Bollo", list[1].Label)
	assert.Equal(t, core.AnnualRule{Month: time.February, Day: 29}, list[1].Rule)
	assert.Equal(t, core.WeeklyRule{Weekday: time.Friday}, list[2].Rule)
	assert.True(t, list[2].Amount.Equal(decimal.RequireFromString("8.5")))
	assert.Equal(t, "2024-01-05", list[2].CreatedAt.String())

	updated := obligations[0]
	updated.Amount = decimal.RequireFromString("700")
	updated.Rule = core.WeeklyRule{Weekday: time.Monday}
	require.NoError(t, repo.UpdateObligation(ctx, updated))
	got, err := repo.GetObligation(ctx, "Alquiler")
	require.NoError(t, err)
	assert.Equal(t, core.WeeklyRule{Weekday: time.Monday}, got.Rule)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("700")))

	require.NoError(t, repo.DeleteObligation(ctx, "Alquiler"))
	_, err = repo.GetObligation(ctx, "Alquiler")
	assert.ErrorIs(t, err, core.ErrObligationNotFound)
	assert.ErrorIs(t, repo.DeleteObligation(ctx, "Alquiler"), core.ErrObligationNotFound)
	assert.ErrorIs(t, repo.UpdateObligation(ctx, updated), core.ErrObligationNotFound)
}

func TestSQLiteRepository_Rejections(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	feb := core.NewDate(2024, time.February, 1)
	rec := core.RejectionRecord{Label: "Alquiler", RejectedFor: feb, RejectedAt: core.NewDate(2024, time.March, 5)}

	require.NoError(t, repo.Reject(ctx, rec))
	require.NoError(t, repo.Reject(ctx, rec))

	all, err := repo.ListRejections(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2024-03-05", all[0].RejectedAt.String())

	ok, err := repo.IsRejected(ctx, "Alquiler", feb)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsRejected(ctx, "Alquiler", core.NewDate(2024, time.March, 1))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.ClearFor(ctx, "Alquiler"))
	all, err = repo.ListRejections(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteRepository_MovementsAreUnique(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	date := core.NewDate(2024, time.March, 1)
	m := core.Movement{Date: date, Amount: decimal.RequireFromString("650"), Label: "Alquiler", Origin: core.OriginRecurring}

	found, err := repo.FindMovement(ctx, "Alquiler", date, core.OriginRecurring)
	require.NoError(t, err)
	assert.Nil(t, found)

	ref, err := repo.CreateMovement(ctx, m)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	_, err = repo.CreateMovement(ctx, m)
	assert.ErrorIs(t, err, ledger.ErrDuplicateMovement)

	found, err = repo.FindMovement(ctx, "Alquiler", date, core.OriginRecurring)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ref, found.Ref)
	assert.True(t, found.Amount.Equal(decimal.RequireFromString("650")))

	list, err := repo.ListMovements(ctx, "Alquiler")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLiteRepository_ConcurrentCreateMovement(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := core.Movement{Date: core.NewDate(2024, time.March, 1), Amount: decimal.RequireFromString("650"), Label: "Alquiler", Origin: core.OriginRecurring}

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CreateMovement(ctx, m)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		}
	}
	assert.Equal(t, 1, created)

	list, err := repo.ListMovements(ctx, "Alquiler")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")

	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))

	version, dirty, err = SchemaVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
