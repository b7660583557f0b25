// Package masterdata resolves partners, companies, products, taxes and
// journals for the import pipeline. Every lookup is a deterministic LIMIT 1
// query; misses surface as nil results, not errors.
package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Matias-Artesi/odoo-attain/internal/importer"
)

// Repository implements importer.Lookup over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the lookup adapter.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ResolvePartner applies the reference precedence: numeric id, exact name,
// ref field, case-insensitive partial name.
func (r *Repository) ResolvePartner(ctx context.Context, ref string) (*importer.Partner, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		p, err := r.partnerWhere(ctx, `id = $1`, id)
		if err != nil || p != nil {
			return p, err
		}
	}
	if p, err := r.partnerWhere(ctx, `name = $1`, ref); err != nil || p != nil {
		return p, err
	}
	if p, err := r.partnerWhere(ctx, `ref = $1`, ref); err != nil || p != nil {
		return p, err
	}
	return r.partnerWhere(ctx, `name ILIKE $1`, "%"+ref+"%")
}

func (r *Repository) partnerWhere(ctx context.Context, cond string, arg any) (*importer.Partner, error) {
	query := `SELECT id, name FROM partners WHERE ` + cond + ` ORDER BY id LIMIT 1`
	var p importer.Partner
	err := r.pool.QueryRow(ctx, query, arg).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("masterdata: partner lookup: %w", err)
	}
	return &p, nil
}

// ResolveCompany applies the same precedence as ResolvePartner.
func (r *Repository) ResolveCompany(ctx context.Context, ref string) (*importer.Company, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		c, err := r.companyWhere(ctx, `id = $1`, id)
		if err != nil || c != nil {
			return c, err
		}
	}
	if c, err := r.companyWhere(ctx, `name = $1`, ref); err != nil || c != nil {
		return c, err
	}
	if c, err := r.companyWhere(ctx, `code = $1`, ref); err != nil || c != nil {
		return c, err
	}
	return r.companyWhere(ctx, `name ILIKE $1`, "%"+ref+"%")
}

func (r *Repository) companyWhere(ctx context.Context, cond string, arg any) (*importer.Company, error) {
	query := `SELECT id, name FROM companies WHERE ` + cond + ` ORDER BY id LIMIT 1`
	var c importer.Company
	err := r.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("masterdata: company lookup: %w", err)
	}
	return &c, nil
}

// DefaultCompany returns the operating company, the lowest-id one.
func (r *Repository) DefaultCompany(ctx context.Context) (*importer.Company, error) {
	const query = `SELECT id, name FROM companies ORDER BY id LIMIT 1`
	var c importer.Company
	err := r.pool.QueryRow(ctx, query).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("masterdata: company lookup: %w", err)
	}
	return &c, nil
}

// ProductByCode matches the product code exactly, preferring the company
// scoped product over a company-neutral one.
func (r *Repository) ProductByCode(ctx context.Context, companyID int64, code string) (*importer.Product, error) {
	const query = `
		SELECT id, code, name, list_price, tracking <> 'none', type = 'service'
		FROM products
		WHERE code = $1 AND (company_id = $2 OR company_id IS NULL)
		ORDER BY company_id NULLS LAST
		LIMIT 1`
	var p importer.Product
	err := r.pool.QueryRow(ctx, query, code, companyID).Scan(
		&p.ID, &p.Code, &p.Name, &p.ListPrice, &p.Tracked, &p.IsService)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("masterdata: product lookup: %w", err)
	}
	return &p, nil
}

// ServiceProduct resolves the fallback product for free-text lines, by code
// first and then by exact name. Only sellable service products qualify.
func (r *Repository) ServiceProduct(ctx context.Context, ref string) (*importer.Product, error) {
	const query = `
		SELECT id, code, name, list_price, tracking <> 'none', type = 'service'
		FROM products
		WHERE type = 'service' AND sale_ok AND (code = $1 OR name = $1)
		ORDER BY (code = $1) DESC, id
		LIMIT 1`
	var p importer.Product
	err := r.pool.QueryRow(ctx, query, strings.TrimSpace(ref)).Scan(
		&p.ID, &p.Code, &p.Name, &p.ListPrice, &p.Tracked, &p.IsService)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("masterdata: service product lookup: %w", err)
	}
	return &p, nil
}

// PricelistPrice returns the partner pricelist price for the quantity; the
// most specific rule (highest minimum quantity at or below qty) wins.
func (r *Repository) PricelistPrice(ctx context.Context, partnerID, productID int64, qty float64) (float64, bool, error) {
	const query = `
		SELECT pi.price
		FROM pricelist_items pi
		JOIN partners pa ON pa.pricelist_id = pi.pricelist_id
		WHERE pa.id = $1 AND pi.product_id = $2 AND pi.min_qty <= $3
		ORDER BY pi.min_qty DESC, pi.id
		LIMIT 1`
	var price float64
	err := r.pool.QueryRow(ctx, query, partnerID, productID, qty).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("masterdata: pricelist lookup: %w", err)
	}
	return price, true, nil
}

// StandardSaleTax finds the fixed 21% sales tax, company scoped first and
// unscoped as fallback.
func (r *Repository) StandardSaleTax(ctx context.Context, companyID int64) (*importer.Tax, error) {
	const query = `
		SELECT id, name, percent
		FROM taxes
		WHERE type_tax_use = 'sale'
		  AND (percent = 21 OR name IN ('21%', 'IVA 21%'))
		  AND (company_id = $1 OR company_id IS NULL)
		ORDER BY company_id NULLS LAST, id
		LIMIT 1`
	var t importer.Tax
	err := r.pool.QueryRow(ctx, query, companyID).Scan(&t.ID, &t.Name, &t.Percent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("masterdata: tax lookup: %w", err)
	}
	return &t, nil
}

// JournalByCode matches a sales journal by code, tolerating zero-padded and
// unpadded forms, scoped to the company.
func (r *Repository) JournalByCode(ctx context.Context, companyID int64, code string) (*importer.Journal, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	variants := []string{code}
	if stripped := strings.TrimLeft(code, "0"); stripped != "" && stripped != code {
		variants = append(variants, stripped)
	}
	if padded := importer.NormalizeJournalCode(code); padded != code {
		variants = append(variants, padded)
	}

	const query = `
		SELECT id, code, name
		FROM journals
		WHERE type = 'sale' AND company_id = $1 AND code = ANY($2)
		ORDER BY id
		LIMIT 1`
	var j importer.Journal
	err := r.pool.QueryRow(ctx, query, companyID, variants).Scan(&j.ID, &j.Code, &j.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("masterdata: journal lookup: %w", err)
	}
	return &j, nil
}
