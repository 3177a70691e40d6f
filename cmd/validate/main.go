// Command validate checks the integrity of a run's outputs: the comparison
// and anomaly tables against the threshold report, and the decision tables
// against the voting rules. It exits non-zero when any phase fails.
//
// Usage:
//
//	go run ./cmd/validate -out-dir ./data/anomalies
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/tabular"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	errors  []string
	skipped string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	outDir := flag.String("out-dir", "", "directory holding the run outputs")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*outDir); code != 0 {
		os.Exit(code)
	}
}

type report struct {
	Threshold *float64 `json:"threshold_deltaT_celsius"`
	Method    string   `json:"method"`
	Rows      int      `json:"rows_merged"`
	Anomalous int      `json:"rows_anomalous"`
}

func run(dir string) int {
	fmt.Println("=== LST Anomaly Output Validation ===")
	fmt.Println()

	var rep report
	if err := loadJSON(filepath.Join(dir, domain.KeyThresholdReport), &rep); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load threshold report: %v\n", err)
		return 1
	}
	all, err := loadTable(filepath.Join(dir, domain.KeyAllComparison))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load comparison table: %v\n", err)
		return 1
	}
	anomalies, err := loadTable(filepath.Join(dir, domain.KeyOnlyAnomalies))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load anomaly table: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateComparison(all),
		validateAnomalies(all, anomalies, rep),
		validateReport(all, anomalies, rep),
		validateDecisions(dir),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped != "":
			status = "\033[33mSKIP\033[0m (" + p.skipped + ")"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-36s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d merged, %d anomalous, threshold %s (%s)\n",
		len(all.Rows), len(anomalies.Rows), thresholdText(rep.Threshold), rep.Method)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func loadTable(path string) (domain.RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RawTable{}, err
	}
	return tabular.ReadCSV(filepath.Base(path), data)
}

func column(t domain.RawTable, name string) int {
	for j, h := range t.Header {
		if h == name {
			return j
		}
	}
	return -1
}

// ── Phases ──

// validateComparison checks that dates are present, unique and ascending.
func validateComparison(t domain.RawTable) *phase {
	p := &phase{name: "Comparison table date axis"}
	if len(t.Header) == 0 || t.Header[0] != domain.ColDate {
		p.errorf("first column is %q, want %q", first(t.Header), domain.ColDate)
		return p
	}
	seen := map[string]int{}
	prev := ""
	for i := range t.Rows {
		d := t.Cell(i, 0)
		if _, ok := domain.ParseISODay(d); !ok {
			p.errorf("row %d: unparseable date %q", i+1, d)
			continue
		}
		if j, dup := seen[d]; dup {
			p.errorf("row %d: date %s duplicates row %d", i+1, d, j)
		}
		if prev != "" && d < prev {
			p.errorf("row %d: date %s sorts before %s", i+1, d, prev)
		}
		seen[d] = i + 1
		prev = d
	}
	return p
}

// validateAnomalies checks the anomaly table is exactly the comparison rows
// with at least one ΔT column above the threshold.
func validateAnomalies(all, anomalies domain.RawTable, rep report) *phase {
	p := &phase{name: "Anomaly filter"}
	want := map[string]bool{}
	for i := range all.Rows {
		if rep.Threshold != nil && exceeds(all, i, *rep.Threshold) {
			want[all.Cell(i, 0)] = true
		}
	}
	got := map[string]bool{}
	for i := range anomalies.Rows {
		d := anomalies.Cell(i, 0)
		got[d] = true
		if !want[d] {
			p.errorf("%s is listed as anomalous but no ΔT exceeds %s", d, thresholdText(rep.Threshold))
		}
	}
	for d := range want {
		if !got[d] {
			p.errorf("%s exceeds the threshold but is missing from the anomaly table", d)
		}
	}
	return p
}

func exceeds(t domain.RawTable, i int, thr float64) bool {
	for _, col := range domain.AnomalyColumns {
		j := column(t, col)
		if j < 0 {
			continue
		}
		if domain.ParseFloat(t.Cell(i, j)).Greater(thr) {
			return true
		}
	}
	return false
}

// validateReport cross-checks the report counters and method.
func validateReport(all, anomalies domain.RawTable, rep report) *phase {
	p := &phase{name: "Threshold report consistency"}
	if rep.Rows != len(all.Rows) {
		p.errorf("rows_merged = %d, comparison table has %d", rep.Rows, len(all.Rows))
	}
	if rep.Anomalous != len(anomalies.Rows) {
		p.errorf("rows_anomalous = %d, anomaly table has %d", rep.Anomalous, len(anomalies.Rows))
	}
	switch domain.Method(rep.Method) {
	case domain.MethodOverride, domain.MethodLognormal99, domain.MethodEmpirical99:
		if rep.Threshold == nil {
			p.errorf("method %s with a null threshold", rep.Method)
		}
	case domain.MethodNoValidBaseline:
		if rep.Threshold != nil {
			p.errorf("method %s with threshold %v", rep.Method, *rep.Threshold)
		}
	default:
		p.errorf("unknown method %q", rep.Method)
	}
	return p
}

var flagColumns = []string{"robust_z_flag", "weather_norm_flag", "evt_tail_flag"}

// validateDecisions checks vote sums and decision labels, and that the eval
// table holds exactly the evaluation rows of the full table.
func validateDecisions(dir string) *phase {
	p := &phase{name: "Decision tables"}
	full, err := loadTable(filepath.Join(dir, domain.KeyScoreFull))
	if err != nil {
		p.skipped = "no score run"
		return p
	}
	eval, err := loadTable(filepath.Join(dir, domain.KeyScoreEval))
	if err != nil {
		p.errorf("full table present but eval table unreadable: %v", err)
		return p
	}

	checkVotes(p, full)
	checkVotes(p, eval)

	isEval := column(full, "is_eval")
	fullEval := 0
	for i := range full.Rows {
		if full.Cell(i, isEval) == "true" {
			fullEval++
		}
	}
	if fullEval != len(eval.Rows) {
		p.errorf("full table has %d evaluation rows, eval table has %d", fullEval, len(eval.Rows))
	}
	j := column(eval, "is_eval")
	for i := range eval.Rows {
		if eval.Cell(i, j) != "true" {
			p.errorf("eval row %d is not an evaluation row", i+1)
		}
	}
	return p
}

func checkVotes(p *phase, t domain.RawTable) {
	scoreCol, decisionCol := column(t, "anomaly_score"), column(t, "decision")
	if scoreCol < 0 || decisionCol < 0 {
		p.errorf("%s: missing anomaly_score or decision column", t.Name)
		return
	}
	for i := range t.Rows {
		votes := 0
		for _, name := range flagColumns {
			if t.Cell(i, column(t, name)) == "true" {
				votes++
			}
		}
		score, err := strconv.Atoi(t.Cell(i, scoreCol))
		if err != nil {
			p.errorf("%s row %d: anomaly_score %q", t.Name, i+1, t.Cell(i, scoreCol))
			continue
		}
		if score != votes {
			p.errorf("%s row %d: anomaly_score %d, flags sum to %d", t.Name, i+1, score, votes)
		}
		if want := domain.Decide(score); t.Cell(i, decisionCol) != string(want) {
			p.errorf("%s row %d: decision %q, want %q", t.Name, i+1, t.Cell(i, decisionCol), want)
		}
	}
}

func thresholdText(v *float64) string {
	if v == nil {
		return "undefined"
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

func first(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}
