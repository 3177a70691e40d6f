package domain

// Merged table column names.
const (
	ColDate           = "Date"
	ColDeltaTLandsat  = "DeltaT_Landsat"
	ColDeltaTGEE      = "DeltaT_GEE"
	ColDeltaTConstell = "DeltaT_Constellr"
	ColDeltaTFusion   = "DeltaT_Fusion"
	ColL8DateForS2    = "L8_Date_for_S2"
	ColS2L8DaysDiff   = "S2_L8_days_diff"
)

// ImageIDColumns are the downscaled product's identifier columns, passed
// through to the merged table when present.
var ImageIDColumns = []string{
	"Landsat Image ID", "Sentinel Image ID",
	"Landsat_Image_ID", "Sentinel_Image_ID",
}

// MergedColumnOrder is the column order of the comparison table.
var MergedColumnOrder = append([]string{
	ColDate, ColDeltaTGEE, ColDeltaTConstell, ColDeltaTFusion,
	ColL8DateForS2, ColS2L8DaysDiff,
}, ImageIDColumns...)

// AnomalyColumns are the ΔT columns compared against the threshold.
var AnomalyColumns = []string{ColDeltaTGEE, ColDeltaTConstell, ColDeltaTFusion}

var (
	landsatDate = []string{"Landsat acquisition date", "Landsat_8_acquisition_date"}
	s2Date      = []string{"Sentinel 2 acquisition date", "Sentinel_2_acquisition_date"}
	maxTemp     = []string{"Max Temp", "Max_Temp"}
	meanTemp    = []string{"Mean Temp", "Mean_Temp"}
	minTemp     = []string{"Min Temp", "Min_Temp"}
)

// LandsatSchema reads the Landsat 8/9 statistics export.
func LandsatSchema() Schema {
	return Schema{
		Sensor:       SensorLandsat,
		Date:         Field{Name: "date", Aliases: landsatDate, Required: true},
		Max:          Field{Name: "lst_max", Aliases: maxTemp, Required: true},
		Mean:         Field{Name: "lst_mean", Aliases: meanTemp, Required: true},
		Min:          Field{Name: "lst_min", Aliases: minTemp},
		DiffFromMean: Field{Name: "diff_from_mean", Aliases: []string{"diff_from_mean"}},
	}
}

// DownscaledSchema reads the downscaled Sentinel-2 export. Rows keep the
// Sentinel-2 date; a row without one is undated for the comparison table.
func DownscaledSchema() Schema {
	return Schema{
		Sensor:        SensorDownscaled,
		Date:          Field{Name: "date_s2", Aliases: s2Date, Required: true},
		SecondaryDate: Field{Name: "date_l8", Aliases: landsatDate},
		Max:           Field{Name: "lst_max", Aliases: maxTemp, Required: true},
		Mean:          Field{Name: "lst_mean", Aliases: meanTemp, Required: true},
		Min:           Field{Name: "lst_min", Aliases: minTemp},
		DiffFromMean:  Field{Name: "diff_from_mean", Aliases: []string{"diff_from_mean"}},
		Passthrough:   ImageIDColumns,
	}
}

// ConstellrSchema reads the per-folder Constellr raster summary.
func ConstellrSchema() Schema {
	return Schema{
		Sensor:       SensorConstellr,
		Date:         Field{Name: "date", Aliases: []string{"Date Folder", "date"}, Required: true},
		Max:          Field{Name: "lst_max", Aliases: []string{"Max Temp"}, Required: true},
		Mean:         Field{Name: "lst_mean", Aliases: []string{"Mean Temp"}, Required: true},
		Min:          Field{Name: "lst_min", Aliases: []string{"Min Temp"}},
		DiffFromMean: Field{Name: "diff_from_mean", Aliases: []string{"diff_from_mean"}},
		Passthrough:  []string{"lst_path", "cloudmask_path"},
	}
}

// FusionSchema reads the fusion metadata summary.
func FusionSchema() Schema {
	return Schema{
		Sensor:   SensorFusion,
		DateMode: DateTimestampUTC,
		Date:     Field{Name: "date", Aliases: []string{"Date"}, Required: true},
		Max:      Field{Name: "lst_max", Aliases: []string{"lst_max"}, Required: true},
		Mean:     Field{Name: "lst_mean", Aliases: []string{"lst_mean"}, Required: true},
		Min:      Field{Name: "lst_min", Aliases: []string{"lst_min"}},
	}
}

// SchemaFor returns the preset schema for a sensor.
func SchemaFor(s Sensor) (Schema, bool) {
	switch s {
	case SensorLandsat:
		return LandsatSchema(), true
	case SensorDownscaled:
		return DownscaledSchema(), true
	case SensorConstellr:
		return ConstellrSchema(), true
	case SensorFusion:
		return FusionSchema(), true
	}
	return Schema{}, false
}

// ProjectionFor returns the merge projection used by the comparison table.
// Landsat contributes its dates only, so the merged date axis covers the
// baseline sensor too.
func ProjectionFor(s Sensor) Projection {
	switch s {
	case SensorDownscaled:
		return Projection{
			DeltaT:        ColDeltaTGEE,
			SecondaryDate: ColL8DateForS2,
			DaysDiff:      ColS2L8DaysDiff,
			Extras:        ImageIDColumns,
		}
	case SensorConstellr:
		return Projection{DeltaT: ColDeltaTConstell}
	case SensorFusion:
		return Projection{DeltaT: ColDeltaTFusion}
	}
	return Projection{}
}
