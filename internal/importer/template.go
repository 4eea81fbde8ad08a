package importer

import (
	"bytes"
	"encoding/csv"
)

// TemplateHeader is the exact column order of the downloadable import
// template.
var TemplateHeader = []string{
	ColTitle,
	ColDescription,
	ColStatus,
	ColDueDate,
	ColAssigneeEmail,
	ColCreatorName,
}

// templateSamples are two illustrative rows shipped with the template.
// Both must pass validation unchanged; template_test.go enforces that.
var templateSamples = [][]string{
	{"Draft launch brief", "Outline deliverables for the spring launch", "todo", "2025-04-15", "alex@example.com", "Ava Chen"},
	{"Review usage rights", "Confirm licensing terms before the post goes live", "in_progress", "2025-04-22", "jordan@example.com", ""},
}

// TemplateCSV renders the import template document: the header plus two
// example rows. It is generated on demand and never read back by the
// engine.
func TemplateCSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write(TemplateHeader)
	for _, row := range templateSamples {
		w.Write(row)
	}
	w.Flush()

	return buf.Bytes()
}
