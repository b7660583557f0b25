package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/Matias-Artesi/odoo-attain/internal/ar"
)

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<style>
body { font-family: sans-serif; margin: 2.5em; }
h1 { font-size: 1.4em; }
table { width: 100%; border-collapse: collapse; margin-top: 1.5em; }
th, td { border-bottom: 1px solid #ccc; padding: 0.4em 0.6em; text-align: left; }
td.num, th.num { text-align: right; }
tfoot td { font-weight: bold; border-bottom: none; }
.meta { color: #555; }
</style>
</head>
<body>
<h1>{{ .Title }}</h1>
<p class="meta">
{{ if .Origin }}Source order: {{ .Origin }}<br>{{ end }}
{{ if .Date }}Invoice date: {{ .Date }}<br>{{ end }}
Status: {{ .Status }}
</p>
<table>
<thead>
<tr><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Total</th></tr>
</thead>
<tbody>
{{ range .Lines }}
<tr>
<td>{{ .Description }}</td>
<td class="num">{{ printf "%g" .Quantity }}</td>
<td class="num">{{ printf "%.2f" .UnitPrice }}</td>
<td class="num">{{ printf "%.2f" .LineTotal }}</td>
</tr>
{{ end }}
</tbody>
<tfoot>
<tr><td colspan="3">Total</td><td class="num">{{ printf "%.2f" .Total }}</td></tr>
</tfoot>
</table>
</body>
</html>`

// Renderer turns invoices into PDF bytes via html/template and Gotenberg.
type Renderer struct {
	tpl    *template.Template
	client *Client
}

// NewRenderer parses the invoice template and wires the PDF client.
func NewRenderer(client *Client) (*Renderer, error) {
	tpl, err := template.New("invoice").Parse(invoiceTemplate)
	if err != nil {
		return nil, fmt.Errorf("report: parse invoice template: %w", err)
	}
	return &Renderer{tpl: tpl, client: client}, nil
}

type invoiceView struct {
	Title  string
	Origin string
	Date   string
	Status string
	Lines  []ar.InvoiceLine
	Total  float64
}

// RenderInvoice produces the invoice PDF.
func (r *Renderer) RenderInvoice(ctx context.Context, inv *ar.Invoice) ([]byte, error) {
	title := inv.Number
	if inv.Status == ar.StatusDraft {
		title = fmt.Sprintf("Draft invoice %d", inv.ID)
	}
	view := invoiceView{
		Title:  title,
		Origin: inv.Origin,
		Status: string(inv.Status),
		Lines:  inv.Lines,
		Total:  inv.Total,
	}
	if inv.InvoiceDate != nil {
		view.Date = inv.InvoiceDate.Format("2006-01-02")
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("report: render invoice %d: %w", inv.ID, err)
	}
	return r.client.RenderHTML(ctx, buf.String())
}
