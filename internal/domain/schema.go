package domain

// ColumnType describes how a canonical column is interpreted downstream.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeNumber ColumnType = "number"
	TypeDate   ColumnType = "date"
	TypeFlag   ColumnType = "flag"
)

// Column is one canonical output column. Default is a literal used when no
// source column maps to it; nil means empty.
type Column struct {
	Name    string
	Type    ColumnType
	Default any
}

// Schema is a closed, versioned list of output columns.
type Schema struct {
	Name    string
	Version int
	Columns []Column
}

// Names returns the column names in output order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Grant column names referenced outside the schema definition.
const (
	GrantID          = "grant_id"
	GrantTitle       = "title"
	GrantAgency      = "agency"
	GrantCFDA        = "cfda_number"
	GrantCloseDate   = "close_date"
	GrantPostDate    = "post_date"
	GrantStatus      = "status"
	GrantDescription = "description"
	GrantLastUpdated = "last_updated"
)

// GrantSchema is the grants dashboard table.
var GrantSchema = Schema{
	Name:    "grants",
	Version: 1,
	Columns: []Column{
		{Name: GrantID, Type: TypeString},
		{Name: GrantTitle, Type: TypeString},
		{Name: GrantAgency, Type: TypeString},
		{Name: GrantCFDA, Type: TypeString},
		{Name: "program_type", Type: TypeString, Default: "Federal"},
		{Name: GrantCloseDate, Type: TypeDate},
		{Name: GrantPostDate, Type: TypeDate},
		{Name: "federal_share_pct", Type: TypeNumber},
		{Name: "award_ceiling", Type: TypeNumber},
		{Name: "award_floor", Type: TypeNumber},
		{Name: "emphasis_areas", Type: TypeString, Default: "Safety"},
		{Name: "eligible_activities", Type: TypeString},
		{Name: "requires_crash_data", Type: TypeFlag, Default: "N"},
		{Name: "application_url", Type: TypeString},
		{Name: "contact_info", Type: TypeString},
		{Name: GrantStatus, Type: TypeString, Default: "Open"},
		{Name: "virginia_specific", Type: TypeFlag, Default: "N"},
		{Name: GrantDescription, Type: TypeString},
		{Name: GrantLastUpdated, Type: TypeDate},
	},
}

// CrashSchema is the crash dashboard table. Names follow the Virginia Roads
// export headers with spaces rather than underscores.
var CrashSchema = Schema{
	Name:    "crashes",
	Version: 1,
	Columns: []Column{
		{Name: "Document Nbr", Type: TypeString},
		{Name: "Crash Year", Type: TypeNumber},
		{Name: "Crash Date", Type: TypeDate},
		{Name: "Crash Military Time", Type: TypeString},
		{Name: "Crash Severity", Type: TypeString},
		{Name: "Persons Injured", Type: TypeNumber},
		{Name: "Pedestrians Killed", Type: TypeNumber},
		{Name: "Pedestrians Injured", Type: TypeNumber},
		{Name: "Vehicle Count", Type: TypeNumber},
		{Name: "Collision Type", Type: TypeString},
		{Name: "Weather Condition", Type: TypeString},
		{Name: "Light Condition", Type: TypeString},
		{Name: "Roadway Surface Condition", Type: TypeString},
		{Name: "Relation To Roadway", Type: TypeString},
		{Name: "Roadway Alignment", Type: TypeString},
		{Name: "Roadway Surface Type", Type: TypeString},
		{Name: "Roadway Defect", Type: TypeString},
		{Name: "Roadway Description", Type: TypeString},
		{Name: "Intersection Type", Type: TypeString},
		{Name: "Traffic Control Type", Type: TypeString},
		{Name: "Traffic Control Status", Type: TypeString},
		{Name: "Work Zone Related", Type: TypeString},
		{Name: "Work Zone Location", Type: TypeString},
		{Name: "Work Zone Type", Type: TypeString},
		{Name: "School Zone", Type: TypeString},
		{Name: "First Harmful Event", Type: TypeString},
		{Name: "First Harmful Event Loc", Type: TypeString},
		{Name: "RTE Name", Type: TypeString},
		{Name: "SYSTEM", Type: TypeString},
		{Name: "Functional Class", Type: TypeString},
		{Name: "Facility Type", Type: TypeString},
		{Name: "Area Type", Type: TypeString},
		{Name: "VDOT District", Type: TypeString},
		{Name: "MPO Name", Type: TypeString},
		{Name: "Planning District", Type: TypeString},
		{Name: "Juris Code", Type: TypeString},
		{Name: "Physical Juris Name", Type: TypeString},
		{Name: "x", Type: TypeNumber},
		{Name: "y", Type: TypeNumber},
	},
}
