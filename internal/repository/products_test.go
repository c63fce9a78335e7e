package repository

import (
	"context"
	"errors"
	"testing"

	"entgo.io/ent/dialect"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func TestProductSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(newTestDB(t), nil)

	empty, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	putty, err := repo.Create(ctx, "3214", "Wall Putty White 40kg")
	require.NoError(t, err)
	tile, err := repo.Create(ctx, "", "Vitrified Tile 600x600")
	require.NoError(t, err)

	items, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, *tile, items[0])
	assert.Equal(t, *putty, items[1])
	assert.Equal(t, "", items[0].Code)
}

func TestProductCreateRequiresName(t *testing.T) {
	repo := NewProductRepository(newTestDB(t), nil)
	_, err := repo.Create(context.Background(), "3214", "  ")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestProductCreateDuplicateCode(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(newTestDB(t), nil)
	_, err := repo.Create(ctx, "3214", "Wall Putty")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "3214", "Wall Putty Grey")
	assert.Error(t, err)
}

func TestProductSnapshotQueryError(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqldb.Close()

	mock.ExpectQuery("FROM \"products\"").WillReturnError(errors.New("relation does not exist"))
	repo := NewProductRepository(NewDB(sqldb, dialect.Postgres), nil)
	_, err = repo.Snapshot(context.Background())
	assert.ErrorContains(t, err, "load catalog")
	assert.NoError(t, mock.ExpectationsWereMet())
}
