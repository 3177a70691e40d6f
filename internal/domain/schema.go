package domain

// DateMode selects how a date column is interpreted.
type DateMode int

const (
	// DateCalendar parses ISO first and retries day-first when nothing parsed.
	DateCalendar DateMode = iota
	// DateTimestampUTC parses full timestamps, converts them to UTC and keeps
	// the calendar day.
	DateTimestampUTC
)

// Field is a semantic column with its ordered list of acceptable headers.
// A field with no aliases is not part of the schema.
type Field struct {
	Name     string
	Aliases  []string
	Required bool
}

// Used reports whether the schema declares the field at all.
func (f Field) Used() bool { return len(f.Aliases) > 0 }

// Schema maps a sensor's raw table onto an Observation.
type Schema struct {
	Sensor        Sensor
	DateMode      DateMode
	Date          Field
	SecondaryDate Field
	Min           Field
	Max           Field
	Mean          Field
	DiffFromMean  Field
	// Passthrough columns are copied verbatim when present.
	Passthrough []string
}

// resolve returns the index of the first alias present in header. Exact
// header matches win over canonical (case and spacing folded) matches.
func (f Field) resolve(header []string) int {
	for _, alias := range f.Aliases {
		for j, h := range header {
			if h == alias {
				return j
			}
		}
	}
	for _, alias := range f.Aliases {
		want := canonicalName(alias)
		for j, h := range header {
			if canonicalName(h) == want {
				return j
			}
		}
	}
	return -1
}
