package importer

import "fmt"

// Field names a semantic slot a sheet column can fill. Variants map the same
// fields to different physical header strings.
type Field string

const (
	FieldRiver           Field = "river"
	FieldSite            Field = "site"
	FieldYear            Field = "year"
	FieldMonth           Field = "month"
	FieldDay             Field = "day"
	FieldClock           Field = "clock"
	FieldYearColl        Field = "year_collection"
	FieldProgramGroup    Field = "program_group"
	FieldDestinationTank Field = "destination_tank"
	FieldOriginTank      Field = "origin_tank"
	FieldFishCaught      Field = "fish_caught"
	FieldFishObserved    Field = "fish_observed"
	FieldFishMoved       Field = "fish_moved"
	FieldLatitude        Field = "latitude"
	FieldLongitude       Field = "longitude"
	FieldTemperature     Field = "temperature"
	FieldCrew            Field = "crew"
	FieldCrewLead        Field = "crew_lead"
	FieldTag             Field = "tag"
	FieldComments        Field = "comments"
)

// ColumnMap binds semantic fields to the physical column headers of one
// sheet layout.
type ColumnMap map[Field]string

// GroupingMode selects how rows are clustered into cohorts before the
// per-row pass.
type GroupingMode string

const (
	GroupingElectrofishing GroupingMode = "electrofishing"
	GroupingMovement       GroupingMode = "movement"
)

// ImportConfig describes one sheet variant: where the header row sits, which
// headers fill which semantic fields, which are mandatory, and which extra
// steps run after the shared per-row pipeline.
type ImportConfig struct {
	Variant   string
	Species   string
	HeaderRow int
	Columns   ColumnMap
	Grouping  GroupingMode

	// Mandatory columns must exist in the header row. MandatoryFilled
	// columns must additionally hold a value in every data row.
	Mandatory       []Field
	MandatoryFilled []Field

	PostSteps []PostStep
}

// Header returns the physical header bound to f, or "" when the variant does
// not carry that field.
func (c ImportConfig) Header(f Field) string { return c.Columns[f] }

// Cell returns the cleaned value of field f in row r, or "" when the variant
// does not map the field.
func (c ImportConfig) Cell(r Row, f Field) string {
	h, ok := c.Columns[f]
	if !ok {
		return ""
	}
	return r.Get(h)
}

func (c ImportConfig) headers(fields []Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if h, ok := c.Columns[f]; ok {
			out = append(out, h)
		}
	}
	return out
}

const defaultSpecies = "Atlantic Salmon"

// MactaquacElectrofishing describes the Mactaquac facility electrofishing
// sheet layout.
func MactaquacElectrofishing() ImportConfig {
	return ImportConfig{
		Variant:   "mactaquac-electrofishing",
		Species:   defaultSpecies,
		HeaderRow: 1,
		Grouping:  GroupingElectrofishing,
		Columns: ColumnMap{
			FieldRiver:           "River",
			FieldSite:            "Site",
			FieldYear:            "Year",
			FieldMonth:           "Month",
			FieldDay:             "Day",
			FieldClock:           "Time",
			FieldYearColl:        "Collection",
			FieldProgramGroup:    "Group",
			FieldDestinationTank: "Destination Pond",
			FieldFishCaught:      "# Fish Caught",
			FieldFishObserved:    "# Fish Observed",
			FieldLatitude:        "Latitude",
			FieldLongitude:       "Longitude",
			FieldTemperature:     "Temperature",
			FieldCrew:            "Crew",
			FieldComments:        "Comments",
		},
		Mandatory:       []Field{FieldRiver, FieldYear, FieldMonth, FieldDay, FieldYearColl},
		MandatoryFilled: []Field{FieldRiver, FieldYear, FieldMonth, FieldDay},
	}
}

// ColdbrookElectrofishing describes the Coldbrook facility electrofishing
// sheet layout. Same pipeline as Mactaquac with different physical headers,
// a tagged-recapture column, and a crew-lead column handled as a post step.
func ColdbrookElectrofishing() ImportConfig {
	return ImportConfig{
		Variant:   "coldbrook-electrofishing",
		Species:   defaultSpecies,
		HeaderRow: 2,
		Grouping:  GroupingElectrofishing,
		Columns: ColumnMap{
			FieldRiver:           "River",
			FieldSite:            "Site Name",
			FieldYear:            "Year",
			FieldMonth:           "Month",
			FieldDay:             "Day",
			FieldYearColl:        "Year Class",
			FieldProgramGroup:    "Priority Group",
			FieldDestinationTank: "End Tank",
			FieldFishCaught:      "# Caught",
			FieldFishObserved:    "# Observed",
			FieldLatitude:        "Lat",
			FieldLongitude:       "Long",
			FieldTemperature:     "Water Temp (C)",
			FieldCrew:            "Crew",
			FieldCrewLead:        "Crew Lead",
			FieldTag:             "PIT Tag",
			FieldComments:        "Comments",
		},
		Mandatory:       []Field{FieldRiver, FieldYear, FieldMonth, FieldDay, FieldYearColl},
		MandatoryFilled: []Field{FieldRiver, FieldYear, FieldMonth, FieldDay},
		PostSteps:       []PostStep{CrewLeadStep},
	}
}

// TankMovement describes the between-container transfer sheet layout.
func TankMovement() ImportConfig {
	return ImportConfig{
		Variant:   "tank-movement",
		Species:   defaultSpecies,
		HeaderRow: 1,
		Grouping:  GroupingMovement,
		Columns: ColumnMap{
			FieldRiver:           "River",
			FieldYear:            "Year",
			FieldMonth:           "Month",
			FieldDay:             "Day",
			FieldYearColl:        "Collection",
			FieldOriginTank:      "Origin Tank",
			FieldDestinationTank: "Destination Tank",
			FieldFishMoved:       "# Fish Moved",
			FieldComments:        "Comments",
		},
		Mandatory: []Field{
			FieldRiver, FieldYear, FieldMonth, FieldDay,
			FieldYearColl, FieldOriginTank, FieldDestinationTank, FieldFishMoved,
		},
		MandatoryFilled: []Field{
			FieldRiver, FieldYear, FieldMonth, FieldDay,
			FieldYearColl, FieldOriginTank, FieldDestinationTank,
		},
	}
}

// ConfigByVariant returns the named sheet variant.
func ConfigByVariant(name string) (ImportConfig, error) {
	switch name {
	case "mactaquac-electrofishing":
		return MactaquacElectrofishing(), nil
	case "coldbrook-electrofishing":
		return ColdbrookElectrofishing(), nil
	case "tank-movement":
		return TankMovement(), nil
	}
	return ImportConfig{}, fmt.Errorf("unknown sheet variant %q", name)
}
