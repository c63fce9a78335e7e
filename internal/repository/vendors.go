package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/matching"
)

// VendorRepository stores canonical vendor identities.
type VendorRepository interface {
	matching.VendorStore
	Get(ctx context.Context, id uuid.UUID) (*entity.VendorIdentity, error)
}

var _ matching.VendorStore = (*vendorRepository)(nil)

var vendorColumns = []string{
	"id", "canonical_name", "tax_id", "state_code", "address", "phone",
	"email", "score", "source", "created_at", "updated_at",
}

type vendorRepository struct {
	db     *DB
	logger *slog.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *DB, logger *slog.Logger) VendorRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &vendorRepository{db: db, logger: logger}
}

func (r *vendorRepository) Get(ctx context.Context, id uuid.UUID) (*entity.VendorIdentity, error) {
	return r.findBy(ctx, entsql.EQ("id", id))
}

func (r *vendorRepository) FindByTaxID(ctx context.Context, taxID string) (*entity.VendorIdentity, error) {
	if taxID == "" {
		return nil, common.ErrNotFound
	}
	return r.findBy(ctx, entsql.EQ("tax_id", taxID))
}

func (r *vendorRepository) FindByNameKey(ctx context.Context, key string) (*entity.VendorIdentity, error) {
	if key == "" {
		return nil, common.ErrNotFound
	}
	return r.findBy(ctx, entsql.EQ("name_key", key))
}

func (r *vendorRepository) findBy(ctx context.Context, p *entsql.Predicate) (*entity.VendorIdentity, error) {
	b := r.db.builder()
	sel := b.Select(vendorColumns...).From(b.Table(vendorsTable.Name)).
		Where(p).OrderBy("created_at", "id").Limit(1)

	var v entity.VendorIdentity
	err := queryOne(ctx, r.db.drv, sel, func(rows *entsql.Rows) error {
		return scanVendor(rows, &v)
	})
	if errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		r.logger.Error("failed to query vendor", "error", err)
		return nil, fmt.Errorf("query vendor: %w", err)
	}
	return &v, nil
}

func scanVendor(rows *entsql.Rows, v *entity.VendorIdentity) error {
	var taxID, state, address, phone, email, source sql.NullString
	if err := rows.Scan(&v.ID, &v.CanonicalName, &taxID, &state, &address, &phone,
		&email, &v.Score, &source, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return err
	}
	v.TaxID = taxID.String
	v.StateCode = state.String
	v.Address = address.String
	v.Phone = phone.String
	v.Email = email.String
	v.Source = source.String
	return nil
}

func (r *vendorRepository) Create(ctx context.Context, v *entity.VendorIdentity, nameKey string) (*entity.VendorIdentity, error) {
	out := *v
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	now := time.Now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now

	ins := r.db.builder().Insert(vendorsTable.Name).
		Columns(append(vendorColumns, "name_key")...).
		Values(out.ID, out.CanonicalName, nullString(out.TaxID), nullString(out.StateCode),
			nullString(out.Address), nullString(out.Phone), nullString(out.Email),
			out.Score, nullString(out.Source), out.CreatedAt, out.UpdatedAt, nameKey)
	if _, err := execStmt(ctx, r.db.drv, ins); err != nil {
		r.logger.Error("failed to create vendor", "name", out.CanonicalName, "tax_id", out.TaxID, "error", err)
		return nil, fmt.Errorf("insert vendor: %w", err)
	}
	return &out, nil
}

func (r *vendorRepository) Update(ctx context.Context, v *entity.VendorIdentity, nameKey string) (*entity.VendorIdentity, error) {
	out := *v
	out.UpdatedAt = time.Now().UTC()
	upd := r.db.builder().Update(vendorsTable.Name).
		Set("canonical_name", out.CanonicalName).
		Set("name_key", nameKey).
		Set("tax_id", nullString(out.TaxID)).
		Set("state_code", nullString(out.StateCode)).
		Set("address", nullString(out.Address)).
		Set("phone", nullString(out.Phone)).
		Set("email", nullString(out.Email)).
		Set("score", out.Score).
		Set("source", nullString(out.Source)).
		Set("updated_at", out.UpdatedAt).
		Where(entsql.EQ("id", out.ID))
	n, err := execStmt(ctx, r.db.drv, upd)
	if err != nil {
		r.logger.Error("failed to update vendor", "vendor_id", out.ID, "error", err)
		return nil, fmt.Errorf("update vendor: %w", err)
	}
	if n == 0 {
		return nil, common.ErrNotFound
	}
	return &out, nil
}
