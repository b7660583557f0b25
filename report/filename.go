package report

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Matias-Artesi/odoo-attain/internal/ar"
)

// maxFilenameLen caps the composed base filename so it stays safe on every
// filesystem the PDF may land on.
const maxFilenameLen = 180

var (
	illegalChars = regexp.MustCompile(`[\\:*?"<>|]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// SanitizePart turns an arbitrary string into a filesystem-friendly chunk:
// slashes become hyphens, illegal characters are removed, whitespace
// collapses to underscores, leading and trailing separators are stripped.
// An empty result is returned as "".
func SanitizePart(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = illegalChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "_")
	return strings.Trim(s, "_-")
}

// BaseFilename composes the invoice PDF base filename with the originating
// sales order number leading: `<origin>-<number>` for customer documents
// with a resolvable origin, otherwise just the number. Drafts use
// `DRAFT-<id>` as their number, and the fallbacks `INV-<id>` and
// `INVOICE-<id>` cover sanitization emptying a part.
func BaseFilename(inv *ar.Invoice) string {
	origin := strings.TrimSpace(inv.Origin)
	if origin != "" {
		parts := make([]string, 0, 1)
		for _, o := range strings.Split(origin, ",") {
			if o = strings.TrimSpace(o); o != "" {
				parts = append(parts, o)
			}
		}
		origin = strings.Join(parts, ",")
	}

	number := inv.Number
	if inv.Status == ar.StatusDraft || number == "" || number == "/" {
		number = fmt.Sprintf("DRAFT-%d", inv.ID)
	}

	originPart := SanitizePart(origin)
	numberPart := SanitizePart(number)
	if numberPart == "" {
		numberPart = fmt.Sprintf("INV-%d", inv.ID)
	}

	base := numberPart
	if inv.MoveType.IsCustomerDocument() && originPart != "" {
		base = originPart + "-" + numberPart
	}
	if len(base) > maxFilenameLen {
		base = base[:maxFilenameLen]
	}
	if base == "" {
		return fmt.Sprintf("INVOICE-%d", inv.ID)
	}
	return base
}
