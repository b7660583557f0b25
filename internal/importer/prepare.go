package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing header dates. Unparseable
// dates are treated as absent, matching the tolerant behavior operators
// expect from spreadsheet imports.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01-02-06",
	"2006/01/02",
}

func parseDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseQuantity defaults to 1.0 for absent or non-numeric cells. The caller
// still rejects quantities at or below zero.
func parseQuantity(raw string) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return 1.0
	}
	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}
	return q
}

func parsePrice(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// rawGroup collects the rows of one order key in file order before
// resolution.
type rawGroup struct {
	key  string
	rows []Row
}

// groupRows splits rows into per-order groups preserving first-seen order.
// Rows without an order key are reported and dropped.
func groupRows(rows []Row) ([]*rawGroup, []ImportError) {
	var (
		ordered []*rawGroup
		byKey   = make(map[string]*rawGroup)
		errs    []ImportError
	)
	for _, row := range rows {
		if row.OrderKey == "" {
			errs = append(errs, ImportError{
				Kind:    KindMissingOrderKey,
				Message: fmt.Sprintf("row %d has no order identifier", row.Number),
			})
			continue
		}
		g, ok := byKey[row.OrderKey]
		if !ok {
			g = &rawGroup{key: row.OrderKey}
			byKey[row.OrderKey] = g
			ordered = append(ordered, g)
		}
		g.rows = append(g.rows, row)
	}
	return ordered, errs
}

// preparer resolves raw groups against master data.
type preparer struct {
	lookup Lookup
	opts   Options

	// serviceProduct caches the fallback product for the whole run; nil
	// with looked=true means the lookup missed or no ref was configured.
	serviceProduct *Product
	looked         bool
}

func (p *preparer) fallbackProduct(ctx context.Context) (*Product, error) {
	if p.looked {
		return p.serviceProduct, nil
	}
	p.looked = true
	if p.opts.ServiceProductRef == "" {
		return nil, nil
	}
	prod, err := p.lookup.ServiceProduct(ctx, p.opts.ServiceProductRef)
	if err != nil {
		return nil, err
	}
	p.serviceProduct = prod
	return prod, nil
}

// prepare validates one raw group. A nil OrderGroup with errors means the
// group is dropped; infrastructure failures come back as the error return.
func (p *preparer) prepare(ctx context.Context, g *rawGroup) (*OrderGroup, []ImportError, error) {
	var errs []ImportError
	head := g.rows[0]

	header := Header{
		OrderKey:    g.key,
		OrderDate:   parseDate(head.OrderDate),
		InvoiceDate: parseDate(head.InvoiceDate),
		JournalCode: head.JournalCode,
	}

	headerOK := true
	if head.PartnerRef == "" {
		errs = append(errs, ImportError{OrderKey: g.key, Kind: KindUnresolvedPartner,
			Message: "first row of the group has no partner reference"})
		headerOK = false
	} else {
		partner, err := p.lookup.ResolvePartner(ctx, head.PartnerRef)
		if err != nil {
			return nil, errs, fmt.Errorf("resolve partner %q: %w", head.PartnerRef, err)
		}
		if partner == nil {
			errs = append(errs, ImportError{OrderKey: g.key, Kind: KindUnresolvedPartner,
				Message: fmt.Sprintf("partner %q not found", head.PartnerRef)})
			headerOK = false
		} else {
			header.PartnerID = partner.ID
		}
	}

	var company *Company
	var err error
	if head.CompanyRef == "" {
		company, err = p.lookup.DefaultCompany(ctx)
	} else {
		company, err = p.lookup.ResolveCompany(ctx, head.CompanyRef)
	}
	if err != nil {
		return nil, errs, fmt.Errorf("resolve company %q: %w", head.CompanyRef, err)
	}
	if company == nil {
		errs = append(errs, ImportError{OrderKey: g.key, Kind: KindUnresolvedCompany,
			Message: fmt.Sprintf("company %q not found", head.CompanyRef)})
		headerOK = false
	} else {
		header.CompanyID = company.ID
	}

	var lines []PreparedLine
	for _, row := range g.rows {
		line, lineErrs, err := p.prepareLine(ctx, g.key, header, row)
		if err != nil {
			return nil, errs, err
		}
		errs = append(errs, lineErrs...)
		if line != nil {
			lines = append(lines, *line)
		}
	}

	if len(lines) == 0 {
		errs = append(errs, ImportError{OrderKey: g.key, Kind: KindEmptyGroup,
			Message: "no valid lines"})
		return nil, errs, nil
	}
	if !headerOK {
		return nil, errs, nil
	}

	header.JournalCode = NormalizeJournalCode(header.JournalCode)
	return &OrderGroup{Header: header, Lines: lines}, errs, nil
}

func (p *preparer) prepareLine(ctx context.Context, key string, header Header, row Row) (*PreparedLine, []ImportError, error) {
	qty := parseQuantity(row.Quantity)
	if qty <= 0 {
		return nil, []ImportError{{OrderKey: key, Kind: KindInvalidQuantity,
			Message: fmt.Sprintf("row %d: quantity %g must be greater than zero", row.Number, qty)}}, nil
	}

	price, hasPrice := parsePrice(row.UnitPrice)

	if row.ProductCode != "" {
		product, err := p.lookup.ProductByCode(ctx, header.CompanyID, row.ProductCode)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve product %q: %w", row.ProductCode, err)
		}
		if product == nil {
			return nil, []ImportError{{OrderKey: key, Kind: KindUnresolvedProduct,
				Message: fmt.Sprintf("product with code %q not found", row.ProductCode)}}, nil
		}
		if !hasPrice {
			if header.PartnerID != 0 {
				if pl, ok, err := p.lookup.PricelistPrice(ctx, header.PartnerID, product.ID, qty); err != nil {
					return nil, nil, fmt.Errorf("pricelist price for product %q: %w", row.ProductCode, err)
				} else if ok {
					price, hasPrice = pl, true
				}
			}
			if !hasPrice {
				price = product.ListPrice
			}
		}
		return &PreparedLine{
			Kind:        LineCatalog,
			ProductID:   product.ID,
			Description: row.Description,
			Quantity:    qty,
			UnitPrice:   price,
			Tracked:     product.Tracked,
		}, nil, nil
	}

	// Free-text service line.
	fallback, err := p.fallbackProduct(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve service product: %w", err)
	}
	if fallback == nil {
		return nil, []ImportError{{OrderKey: key, Kind: KindMissingFallbackProduct,
			Message: "free-text line but no fallback service product is configured"}}, nil
	}
	if strings.TrimSpace(row.Description) == "" {
		return nil, []ImportError{{OrderKey: key, Kind: KindMissingDescription,
			Message: fmt.Sprintf("row %d: free-text line has no description", row.Number)}}, nil
	}
	if !hasPrice {
		return nil, []ImportError{{OrderKey: key, Kind: KindMissingPrice,
			Message: fmt.Sprintf("free-text line %q has no unit price", row.Description)}}, nil
	}

	line := &PreparedLine{
		Kind:        LineCustom,
		ProductID:   fallback.ID,
		Description: row.Description,
		Quantity:    qty,
		UnitPrice:   price,
	}
	if header.CompanyID != 0 {
		tax, err := p.lookup.StandardSaleTax(ctx, header.CompanyID)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve sale tax: %w", err)
		}
		if tax != nil {
			line.TaxID = tax.ID
		}
	}
	return line, nil, nil
}
