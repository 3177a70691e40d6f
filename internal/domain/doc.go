// Package domain models per-sensor land surface temperature (LST) statistics
// and the anomaly engine that scores them.
//
// # Data Sources
//
// Each thermal sensor produces one summary row per scene: the minimum,
// maximum and mean LST over the area of interest, in degrees Celsius.
//
//	landsat     Landsat 8/9 statistics ("Landsat acquisition date", "Max Temp", "Mean Temp")
//	downscaled  Sentinel-2 downscaled LST paired with a Landsat scene
//	            ("Sentinel 2 acquisition date", "Landsat acquisition date", image IDs)
//	constellr   Constellr LST rasters summarised per date folder ("Date Folder")
//	fusion      Constellr fusion product metadata ("Date" as UTC timestamp, lst_max, lst_mean)
//
// Column names drift between exports ("Max Temp" vs "Max_Temp"), so every
// semantic field is resolved from an ordered alias list at load time (see
// [Schema]). A required field with no matching alias fails with
// [ErrMissingColumn].
//
// # Dates
//
// All dates are calendar days in UTC. A date column is parsed as ISO first;
// if no value parses it is retried day-first (Constellr folders are named
// DD-MM-YYYY). Timestamps carrying an offset are converted to UTC before the
// time of day is dropped. A value that never parses is the zero time and the
// row drops out of date-keyed joins.
//
// # Missing Values
//
// Numeric cells are [NullFloat]. Arithmetic on an absent operand yields an
// absent result and a comparison against an absent value is false, so a flag
// can never be raised from missing data.
//
// # ΔT
//
// ΔT = lst_max − lst_mean is the anomaly signal. The threshold job derives a
// single ΔT cut-off from the Landsat history (see [EstimateThreshold]); the
// ensemble scorer pools robust statistics per baseline group and calendar
// month (see [Score]).
package domain
