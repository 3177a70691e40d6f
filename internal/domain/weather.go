package domain

import (
	"context"
	"time"
)

// WeatherProvider returns daily maximum air temperature for a location.
// Implementations must return one entry per day they have data for; days
// with no data may be omitted or carry an absent value.
type WeatherProvider interface {
	DailyTmax(ctx context.Context, lat, lon float64, from, to time.Time) ([]DailyTemp, error)
}

// WeatherFromDaily indexes a daily series under both date roles, which is
// how a single archive series serves Landsat and Sentinel-2 dates alike.
func WeatherFromDaily(days []DailyTemp) *WeatherSeries {
	w := &WeatherSeries{
		Primary:   make(map[time.Time]NullFloat, len(days)),
		Secondary: make(map[time.Time]NullFloat, len(days)),
	}
	for _, d := range days {
		if d.Date.IsZero() {
			continue
		}
		day := Day(d.Date)
		if _, ok := w.Primary[day]; !ok {
			w.Primary[day] = d.TmaxC
			w.Secondary[day] = d.TmaxC
		}
	}
	return w
}

// Weather table columns.
const (
	ColAirTmax          = "air_tmax_c"
	ColAirTmaxSecondary = "air_tmax_c_s2"
)

var (
	weatherPrimaryDate   = []string{"landsatacquisitiondate", "landsat_date", "date", "Landsat acquisition date"}
	weatherSecondaryDate = []string{"sentinel2acquisitiondate", "s2_date", "Sentinel 2 acquisition date"}
)

// WeatherFromTable reads a weather table carrying air_tmax_c on the Landsat
// date and air_tmax_c_s2 on the Sentinel-2 date. Either role may be missing.
// The first value seen for a date wins.
func WeatherFromTable(t RawTable) *WeatherSeries {
	w := &WeatherSeries{
		Primary:   map[time.Time]NullFloat{},
		Secondary: map[time.Time]NullFloat{},
	}
	fill(t, Field{Name: "primary_date", Aliases: weatherPrimaryDate}, ColAirTmax, w.Primary)
	fill(t, Field{Name: "secondary_date", Aliases: weatherSecondaryDate}, ColAirTmaxSecondary, w.Secondary)
	return w
}

func fill(t RawTable, date Field, valueCol string, into map[time.Time]NullFloat) {
	dj := date.resolve(t.Header)
	vj := Field{Aliases: []string{valueCol}}.resolve(t.Header)
	if dj < 0 || vj < 0 {
		return
	}
	dates, _ := ParseDateColumn(t.Column(dj), DateCalendar)
	for i, d := range dates {
		if d.IsZero() {
			continue
		}
		if _, ok := into[d]; ok {
			continue
		}
		into[d] = ParseFloat(t.Cell(i, vj))
	}
}
