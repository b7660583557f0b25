package importer

import (
	"context"
	"time"
)

// Partner is a customer resolved from master data.
type Partner struct {
	ID   int64
	Name string
}

// Company is an operating company resolved from master data.
type Company struct {
	ID   int64
	Name string
}

// Product is a sellable product resolved from master data.
type Product struct {
	ID        int64
	Code      string
	Name      string
	ListPrice float64
	Tracked   bool
	IsService bool
}

// Tax is a sales tax resolved from master data.
type Tax struct {
	ID      int64
	Name    string
	Percent float64
}

// Journal is an accounting journal resolved by code.
type Journal struct {
	ID   int64
	Code string
	Name string
}

// Lookup resolves master data referenced by spreadsheet cells. Every method
// is a deterministic single-result query; a miss returns (nil, nil) so the
// pipeline can turn it into a per-group error instead of a failure.
type Lookup interface {
	// ResolvePartner tries, in order: numeric id, exact name, ref field,
	// case-insensitive partial name.
	ResolvePartner(ctx context.Context, ref string) (*Partner, error)
	// ResolveCompany applies the same precedence as ResolvePartner.
	ResolveCompany(ctx context.Context, ref string) (*Company, error)
	// DefaultCompany returns the current operating company.
	DefaultCompany(ctx context.Context) (*Company, error)
	// ProductByCode matches the product code exactly, scoped to the company.
	ProductByCode(ctx context.Context, companyID int64, code string) (*Product, error)
	// ServiceProduct resolves the configured fallback product for free-text
	// lines, by code first and then by name.
	ServiceProduct(ctx context.Context, ref string) (*Product, error)
	// PricelistPrice computes the partner-specific price for a product. The
	// second return is false when no pricelist rule applies.
	PricelistPrice(ctx context.Context, partnerID, productID int64, qty float64) (float64, bool, error)
	// StandardSaleTax finds the fixed 21% sales tax: tax-use sale, rate 21
	// or display name "21%"/"IVA 21%", company-scoped falling back to an
	// unscoped match.
	StandardSaleTax(ctx context.Context, companyID int64) (*Tax, error)
	// JournalByCode matches a sales journal by code, tolerating zero-padded
	// and unpadded forms, scoped to the company.
	JournalByCode(ctx context.Context, companyID int64, code string) (*Journal, error)
}

// Submission is one order-creation payload handed to the sales service.
type Submission struct {
	OrderKey     string
	PartnerID    int64
	CompanyID    int64
	OrderDate    *time.Time
	InvoiceDate  *time.Time
	Lines        []PreparedLine
	TrackedLines TrackedLinePolicy
	// AutoProcess triggers confirm, forced delivery and draft invoicing
	// synchronously inside the creation call.
	AutoProcess bool
}

// Created describes the order produced by one submission.
type Created struct {
	OrderID   int64
	OrderName string
	// InvoiceID is zero when no invoice was generated.
	InvoiceID int64
	// Notes surfaces non-fatal observations, e.g. skipped tracked lines.
	Notes []string
}

// Creator performs order creation and invoice follow-up. Implementations are
// transactional per call unless obtained through Submitter.Atomic.
type Creator interface {
	Submit(ctx context.Context, sub Submission) (*Created, error)
	SetInvoiceJournal(ctx context.Context, invoiceID, journalID int64) error
	PostInvoice(ctx context.Context, invoiceID int64) error
}

// Submitter is the order-submission collaborator. Atomic runs fn inside one
// transaction; returning an error discards every change made through the
// Creator passed to fn.
type Submitter interface {
	Creator
	Atomic(ctx context.Context, fn func(ctx context.Context, c Creator) error) error
}
