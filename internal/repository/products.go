package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// ProductRepository manages the product catalog.
type ProductRepository interface {
	Create(ctx context.Context, code, name string) (*entity.CatalogItem, error)
	Snapshot(ctx context.Context) ([]entity.CatalogItem, error)
}

type productRepository struct {
	db     *DB
	logger *slog.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *DB, logger *slog.Logger) ProductRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &productRepository{db: db, logger: logger}
}

func (r *productRepository) Create(ctx context.Context, code, name string) (*entity.CatalogItem, error) {
	code, name = strings.TrimSpace(code), strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewAppError("INVALID_PRODUCT", "product name is required", common.ErrInvalidInput)
	}
	id := uuid.New()
	ins := r.db.builder().Insert(productsTable.Name).
		Columns("id", "code", "name", "created_at").
		Values(id, nullString(code), name, time.Now().UTC())
	if _, err := execStmt(ctx, r.db.drv, ins); err != nil {
		r.logger.Error("failed to create product", "code", code, "error", err)
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &entity.CatalogItem{ID: id.String(), Code: code, Name: name}, nil
}

// Snapshot returns the whole catalog ordered by name, for one extraction run.
func (r *productRepository) Snapshot(ctx context.Context) ([]entity.CatalogItem, error) {
	b := r.db.builder()
	sel := b.Select("id", "code", "name").From(b.Table(productsTable.Name)).OrderBy("name", "id")

	items := []entity.CatalogItem{}
	err := queryRows(ctx, r.db.drv, sel, func(rows *entsql.Rows) error {
		var (
			id   uuid.UUID
			code sql.NullString
			name string
		)
		if err := rows.Scan(&id, &code, &name); err != nil {
			return err
		}
		items = append(items, entity.CatalogItem{ID: id.String(), Code: code.String, Name: name})
		return nil
	})
	if err != nil {
		r.logger.Error("failed to load catalog", "error", err)
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	r.logger.Debug("catalog loaded", "items", len(items))
	return items, nil
}
