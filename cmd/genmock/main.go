// Command genmock writes a reproducible synthetic dataset for one site: the
// Landsat, downscaled and Constellr statistics tables, fusion metadata
// documents and a weather table, laid out the way the pipeline expects them.
// A few injected hot days make the anomaly outputs non-trivial.
//
// Usage:
//
//	go run ./cmd/genmock -out ./data -location fordo -seed 7
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/tabular"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
)

const kelvinToC = 273.15

// hotDays get a large ΔT in every high-resolution sensor.
var hotDays = map[string]bool{
	"2025-07-08": true,
	"2025-07-09": true,
	"2025-07-22": true,
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "./data", "root directory of the local store")
	prefix := flag.String("prefix", "lst", "input prefix under the root")
	location := flag.String("location", "fordo", "site name")
	seed := flag.Uint64("seed", 7, "random seed")
	flag.Parse()

	g := &generator{rng: rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))}
	dir := filepath.Join(*out, *prefix, *location)

	tables := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{*location + "_stats_normal_2015_2022_merged.csv", landsatHeader, g.landsat()},
		{*location + "_stats_downscale_2023_2025_merged.csv", downscaledHeader, g.downscaled()},
		{*location + "_LST_summary.csv", constellrHeader, g.constellr()},
		{*location + "_weather.csv", weatherHeader, g.weather()},
	}
	for _, t := range tables {
		if err := writeTable(filepath.Join(dir, t.name), t.header, t.rows); err != nil {
			return err
		}
		log.Printf("%s: %d rows", t.name, len(t.rows))
	}

	n, err := g.fusionMetadata(filepath.Join(dir, "fusion"))
	if err != nil {
		return err
	}
	log.Printf("fusion: %d metadata documents", n)
	return nil
}

type generator struct {
	rng *rand.Rand
}

// lst returns a plausible (max, mean) pair for a summer day in °C.
func (g *generator) lst(day string, hotDelta float64) (maxC, meanC float64) {
	meanC = 32 + g.rng.NormFloat64()*2
	delta := math.Abs(2.5 + g.rng.NormFloat64()*0.8)
	if hotDays[day] {
		delta += hotDelta
	}
	return round(meanC + delta), round(meanC)
}

var landsatHeader = []string{"Landsat acquisition date", "Max Temp", "Mean Temp", "Min Temp", "diff_from_mean"}

// landsat yields one scene every 16 days in June to August of 2015-2022.
func (g *generator) landsat() [][]string {
	var rows [][]string
	for year := 2015; year <= 2022; year++ {
		for d := time.Date(year, time.June, 3, 0, 0, 0, 0, time.UTC); d.Month() <= time.August; d = d.AddDate(0, 0, 16) {
			maxC, meanC := g.lst("", 0)
			rows = append(rows, []string{
				domain.FormatDay(d), num(maxC), num(meanC), num(meanC - 6), num(round(g.rng.NormFloat64() * 1.2)),
			})
		}
	}
	return rows
}

var downscaledHeader = []string{
	"Sentinel 2 acquisition date", "Landsat acquisition date",
	"Max Temp", "Mean Temp", "Min Temp", "Landsat Image ID", "Sentinel Image ID",
}

// downscaled yields a Sentinel-2 scene every 5 days in July 2023-2025,
// paired with the nearest earlier Landsat pass.
func (g *generator) downscaled() [][]string {
	var rows [][]string
	for year := 2023; year <= 2025; year++ {
		for d := time.Date(year, time.July, 3, 0, 0, 0, 0, time.UTC); d.Month() == time.July; d = d.AddDate(0, 0, 5) {
			day := domain.FormatDay(d)
			maxC, meanC := g.lst(day, 9)
			l8 := d.AddDate(0, 0, -g.rng.IntN(4))
			rows = append(rows, []string{
				day, domain.FormatDay(l8), num(maxC), num(meanC), num(meanC - 5),
				"LC08_" + l8.Format("20060102"), "S2A_" + d.Format("20060102"),
			})
		}
	}
	return rows
}

var constellrHeader = []string{"Date Folder", "Filename", "Min Temp", "Max Temp", "Mean Temp", "Error"}

// constellr yields daily July 2025 scenes in the raster summary layout.
func (g *generator) constellr() [][]string {
	var rows [][]string
	for d := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC); d.Month() == time.July; d = d.AddDate(0, 0, 1) {
		if g.rng.Float64() < 0.3 {
			continue
		}
		maxC, meanC := g.lst(domain.FormatDay(d), 8)
		rows = append(rows, []string{
			d.Format("02-01-2006"), "scene_Z_lst.tif", num(meanC - 7), num(maxC), num(meanC), "",
		})
	}
	return rows
}

var weatherHeader = []string{"date", domain.ColAirTmax}

// weather yields daily air Tmax over every generated acquisition period.
func (g *generator) weather() [][]string {
	var rows [][]string
	for year := 2015; year <= 2025; year++ {
		for d := time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC); d.Month() <= time.August; d = d.AddDate(0, 0, 1) {
			rows = append(rows, []string{domain.FormatDay(d), num(round(29 + g.rng.NormFloat64()*3))})
		}
	}
	return rows
}

type sceneStatistics struct {
	LSTMin  float64 `json:"lst_min"`
	LSTMax  float64 `json:"lst_max"`
	LSTMean float64 `json:"lst_mean"`
	StdMin  float64 `json:"std_min"`
	StdMax  float64 `json:"std_max"`
	StdMean float64 `json:"std_mean"`
}

type metadataDoc struct {
	SceneDatetime   string          `json:"scene_datetime"`
	SceneStatistics sceneStatistics `json:"scene_statistics"`
}

// fusionMetadata writes one metadata document per fusion scene of July 2025.
func (g *generator) fusionMetadata(dir string) (int, error) {
	n := 0
	for d := time.Date(2025, time.July, 2, 9, 45, 0, 0, time.UTC); d.Month() == time.July; d = d.AddDate(0, 0, 2) {
		maxC, meanC := g.lst(domain.FormatDay(d), 7)
		doc := metadataDoc{
			SceneDatetime: d.Format(time.RFC3339),
			SceneStatistics: sceneStatistics{
				LSTMin:  round(meanC - 6 + kelvinToC),
				LSTMax:  round(maxC + kelvinToC),
				LSTMean: round(meanC + kelvinToC),
				StdMin:  0.4,
				StdMax:  2.1,
				StdMean: round(1 + g.rng.Float64()),
			},
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return n, err
		}
		name := filepath.Join(dir, d.Format("20060102"), "lst-fusion_"+d.Format("20060102")+"_metadata.json")
		if err := writeFile(name, data); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func writeTable(path string, header []string, rows [][]string) error {
	data, err := tabular.WriteCSV(header, rows)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
