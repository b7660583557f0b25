package importer

import (
	"fmt"
	"strings"
)

// renderSimulation builds the operator summary for a simulate-only run.
// Group line counts are listed in first-seen file order.
func renderSimulation(res *Result, rawGroups []*rawGroup, lineCounts map[string]int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Orders detected: %d\n", res.GroupsDetected)
	b.WriteString("Simulation only: nothing was persisted.\n")
	for _, rg := range rawGroups {
		if n, ok := lineCounts[rg.key]; ok {
			fmt.Fprintf(&b, "- %s: %d valid lines\n", rg.key, n)
		} else {
			fmt.Fprintf(&b, "- %s: rejected\n", rg.key)
		}
	}
	writeErrors(&b, res.Errors, "Errors detected:")
	return strings.TrimRight(b.String(), "\n")
}

// renderSummary builds the operator summary for a commit run.
func renderSummary(res *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Orders detected: %d\n", res.GroupsDetected)
	fmt.Fprintf(&b, "Orders created: %d\n", res.OrdersCreated)
	if res.Aborted {
		b.WriteString("Import aborted: nothing was persisted.\n")
	}
	if len(res.Notes) > 0 {
		b.WriteString("\nNotes:\n")
		for _, note := range res.Notes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}
	label := "Errors (non-blocking):"
	if res.Aborted {
		label = "Errors detected:"
	}
	writeErrors(&b, res.Errors, label)
	return strings.TrimRight(b.String(), "\n")
}

func writeErrors(b *strings.Builder, errs []ImportError, label string) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("\n" + label + "\n")
	for _, e := range errs {
		fmt.Fprintf(b, "- %s\n", e.String())
	}
}
