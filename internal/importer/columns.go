package importer

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnMap lists the accepted spreadsheet header names per field. Matching
// is case-insensitive on the trimmed header text; the first header matching
// any alias wins.
type ColumnMap struct {
	OrderKey    []string `yaml:"order_key"`
	PartnerRef  []string `yaml:"partner"`
	CompanyRef  []string `yaml:"company"`
	OrderDate   []string `yaml:"order_date"`
	InvoiceDate []string `yaml:"invoice_date"`
	JournalCode []string `yaml:"journal_code"`
	ProductCode []string `yaml:"product_code"`
	Description []string `yaml:"description"`
	Quantity    []string `yaml:"quantity"`
	UnitPrice   []string `yaml:"unit_price"`
}

// DefaultColumns returns the built-in aliases. The first alias of each field
// is the canonical export header of the source system.
func DefaultColumns() *ColumnMap {
	return &ColumnMap{
		OrderKey:    []string{"name", "order", "order_ref", "order_name"},
		PartnerRef:  []string{"partner_id", "partner", "customer"},
		CompanyRef:  []string{"company_id", "company"},
		OrderDate:   []string{"date_order", "order_date"},
		InvoiceDate: []string{"invoice_date_import", "invoice_date"},
		JournalCode: []string{"journal_code", "journal"},
		ProductCode: []string{"default_code", "product_code", "sku"},
		Description: []string{"order_line/product_id/name", "description", "product"},
		Quantity:    []string{"order_line/product_uom_qty", "quantity", "qty"},
		UnitPrice:   []string{"price_unit", "unit_price", "price"},
	}
}

// ParseColumnMap reads a YAML override file and merges it over the defaults.
// Fields absent from the override keep their built-in aliases.
func ParseColumnMap(data []byte) (*ColumnMap, error) {
	var override ColumnMap
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("importer: parse column map: %w", err)
	}
	cm := DefaultColumns()
	merge := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&cm.OrderKey, override.OrderKey)
	merge(&cm.PartnerRef, override.PartnerRef)
	merge(&cm.CompanyRef, override.CompanyRef)
	merge(&cm.OrderDate, override.OrderDate)
	merge(&cm.InvoiceDate, override.InvoiceDate)
	merge(&cm.JournalCode, override.JournalCode)
	merge(&cm.ProductCode, override.ProductCode)
	merge(&cm.Description, override.Description)
	merge(&cm.Quantity, override.Quantity)
	merge(&cm.UnitPrice, override.UnitPrice)
	return cm, nil
}

// columnIndex maps field names to spreadsheet column positions.
type columnIndex map[string]int

// requiredFields must be present in the header row; anything else is
// optional.
var requiredFields = []string{"order_key", "description", "quantity"}

func (cm *ColumnMap) fields() map[string][]string {
	return map[string][]string{
		"order_key":    cm.OrderKey,
		"partner":      cm.PartnerRef,
		"company":      cm.CompanyRef,
		"order_date":   cm.OrderDate,
		"invoice_date": cm.InvoiceDate,
		"journal_code": cm.JournalCode,
		"product_code": cm.ProductCode,
		"description":  cm.Description,
		"quantity":     cm.Quantity,
		"unit_price":   cm.UnitPrice,
	}
}

// resolve maps a header row to field positions and reports the missing
// required fields.
func (cm *ColumnMap) resolve(header []string) (columnIndex, []string) {
	idx := make(columnIndex)
	for field, aliases := range cm.fields() {
		for pos, cell := range header {
			name := strings.ToLower(strings.TrimSpace(cell))
			if name == "" {
				continue
			}
			for _, alias := range aliases {
				if name == strings.ToLower(alias) {
					if _, taken := idx[field]; !taken {
						idx[field] = pos
					}
				}
			}
		}
	}

	var missing []string
	for _, field := range requiredFields {
		if _, ok := idx[field]; !ok {
			missing = append(missing, field)
		}
	}
	return idx, missing
}
