package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// numeric money and quantity columns; sqlite keeps numeric affinity
var (
	moneyType = map[string]string{dialect.Postgres: "numeric(16,2)", dialect.SQLite: "numeric"}
	qtyType   = map[string]string{dialect.Postgres: "numeric(14,3)", dialect.SQLite: "numeric"}
)

var (
	productsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "code", Type: field.TypeString, Nullable: true, Size: 64},
		{Name: "name", Type: field.TypeString, Size: 512},
		{Name: "created_at", Type: field.TypeTime},
	}
	productsTable = &schema.Table{
		Name:       "products",
		Columns:    productsColumns,
		PrimaryKey: []*schema.Column{productsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "products_code", Unique: true, Columns: []*schema.Column{productsColumns[1]}},
		},
	}

	vendorsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "canonical_name", Type: field.TypeString, Size: 255},
		{Name: "name_key", Type: field.TypeString, Size: 255},
		{Name: "tax_id", Type: field.TypeString, Nullable: true, Size: 15},
		{Name: "state_code", Type: field.TypeString, Nullable: true, Size: 2},
		{Name: "address", Type: field.TypeString, Nullable: true, Size: 1024},
		{Name: "phone", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "email", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "score", Type: field.TypeFloat64, Default: 0},
		{Name: "source", Type: field.TypeString, Nullable: true, Size: 64},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	vendorsTable = &schema.Table{
		Name:       "vendors",
		Columns:    vendorsColumns,
		PrimaryKey: []*schema.Column{vendorsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "vendors_tax_id", Unique: true, Columns: []*schema.Column{vendorsColumns[3]}},
			{Name: "vendors_name_key", Unique: false, Columns: []*schema.Column{vendorsColumns[2]}},
		},
	}

	billsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "source_path", Type: field.TypeString, Size: 1024},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "vendor_id", Type: field.TypeUUID, Nullable: true},
		{Name: "vendor_name", Type: field.TypeString, Default: ""},
		{Name: "tax_id", Type: field.TypeString, Nullable: true, Size: 15},
		{Name: "invoice_number", Type: field.TypeString, Default: ""},
		{Name: "invoice_date", Type: field.TypeTime, Nullable: true},
		{Name: "grand_total", Type: field.TypeFloat64, SchemaType: moneyType, Default: 0},
		{Name: "grand_total_source", Type: field.TypeString, Nullable: true, Size: 16},
		{Name: "cgst", Type: field.TypeFloat64, SchemaType: moneyType, Default: 0},
		{Name: "sgst", Type: field.TypeFloat64, SchemaType: moneyType, Default: 0},
		{Name: "igst", Type: field.TypeFloat64, SchemaType: moneyType, Default: 0},
		{Name: "needs_review", Type: field.TypeBool, Default: false},
		{Name: "review_reasons", Type: field.TypeJSON, Nullable: true},
		{Name: "text_method", Type: field.TypeString, Nullable: true, Size: 32},
		{Name: "pages", Type: field.TypeInt, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	billsTable = &schema.Table{
		Name:       "bills",
		Columns:    billsColumns,
		PrimaryKey: []*schema.Column{billsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "bills_vendors_bills",
				Columns:    []*schema.Column{billsColumns[3]},
				RefColumns: []*schema.Column{vendorsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{Name: "bills_status", Unique: false, Columns: []*schema.Column{billsColumns[2]}},
		},
	}

	billLinesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "bill_id", Type: field.TypeUUID},
		{Name: "position", Type: field.TypeInt},
		{Name: "description", Type: field.TypeString, Size: 2048},
		{Name: "quantity", Type: field.TypeFloat64, SchemaType: qtyType},
		{Name: "unit_price", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "line_total", Type: field.TypeFloat64, SchemaType: moneyType},
		{Name: "tax_code", Type: field.TypeString, Nullable: true, Size: 8},
		{Name: "uom", Type: field.TypeString, Nullable: true, Size: 16},
		{Name: "confidence", Type: field.TypeFloat64},
		{Name: "flagged", Type: field.TypeBool, Default: false},
		{Name: "source", Type: field.TypeString, Size: 16},
		{Name: "candidate_product_ids", Type: field.TypeJSON, Nullable: true},
		{Name: "resolved_product_id", Type: field.TypeString, Nullable: true, Size: 64},
		{Name: "match_score", Type: field.TypeFloat64, Default: 0},
	}
	billLinesTable = &schema.Table{
		Name:       "bill_lines",
		Columns:    billLinesColumns,
		PrimaryKey: []*schema.Column{billLinesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "bill_lines_bills_lines",
				Columns:    []*schema.Column{billLinesColumns[1]},
				RefColumns: []*schema.Column{billsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "bill_lines_bill_id_position", Unique: true, Columns: []*schema.Column{billLinesColumns[1], billLinesColumns[2]}},
		},
	}

	extractJobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "bill_id", Type: field.TypeUUID},
		{Name: "format", Type: field.TypeString, Size: 16},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "finished_at", Type: field.TypeTime, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true, Size: 2048},
		{Name: "method", Type: field.TypeString, Nullable: true, Size: 32},
		{Name: "confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "needs_review", Type: field.TypeBool, Default: false},
		{Name: "line_count", Type: field.TypeInt, Default: 0},
	}
	extractJobsTable = &schema.Table{
		Name:       "extract_jobs",
		Columns:    extractJobsColumns,
		PrimaryKey: []*schema.Column{extractJobsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "extract_jobs_bills_jobs",
				Columns:    []*schema.Column{extractJobsColumns[1]},
				RefColumns: []*schema.Column{billsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "extract_jobs_bill_id_started_at", Unique: false, Columns: []*schema.Column{extractJobsColumns[1], extractJobsColumns[4]}},
		},
	}

	// Tables lists the tables in dependency order.
	Tables = []*schema.Table{productsTable, vendorsTable, billsTable, billLinesTable, extractJobsTable}
)

func init() {
	billsTable.ForeignKeys[0].RefTable = vendorsTable
	billLinesTable.ForeignKeys[0].RefTable = billsTable
	extractJobsTable.ForeignKeys[0].RefTable = billsTable
}

// Migrate creates or updates the tables.
func (d *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(d.drv)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
