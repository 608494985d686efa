package core

import "strings"

// Canonical column names.
const (
	ColName              = "name"
	ColStartYear         = "start_year"
	ColExternalID        = "external_id"
	ColStatus            = "status"
	ColCurrentAverage    = "current_average"
	ColGraduationAverage = "graduation_average"
)

// RequiredColumns must all be present in the header.
var RequiredColumns = []string{ColName, ColStartYear, ColExternalID}

// OptionalColumns are read when present.
var OptionalColumns = []string{ColStatus, ColCurrentAverage, ColGraduationAverage}

// columnAliases maps lowercased header text to its canonical column.
// The Spanish names are the headers used by the spreadsheets the school
// office already produces.
var columnAliases = map[string]string{
	"name":                ColName,
	"nombre_estudiante":   ColName,
	"start_year":          ColStartYear,
	"anio_inicio":         ColStartYear,
	"external_id":         ColExternalID,
	"nue":                 ColExternalID,
	"status":              ColStatus,
	"estado":              ColStatus,
	"current_average":     ColCurrentAverage,
	"promedio_actual":     ColCurrentAverage,
	"graduation_average":  ColGraduationAverage,
	"promedio_graduacion": ColGraduationAverage,
}

// CanonicalColumn resolves a header cell to a canonical column name.
// Matching is case-insensitive and ignores the usual CSV artifacts.
// Returns false for columns the importer does not know.
func CanonicalColumn(header string) (string, bool) {
	key := strings.ToLower(CleanCell(header))
	col, ok := columnAliases[key]
	return col, ok
}

// MissingColumns returns the required columns absent from the dataset,
// in RequiredColumns order.
func MissingColumns(ds Dataset) []string {
	var missing []string
	for _, col := range RequiredColumns {
		if !ds.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}
