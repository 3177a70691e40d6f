package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Output object names under the run's output prefix.
const (
	KeyAllComparison   = "All_Anomalies_Comparison_WithFusion.csv"
	KeyOnlyAnomalies   = "Only_Anomalies_Validated_WithFusion.csv"
	KeyThresholdReport = "threshold_99p.json"
	KeyScoreFull       = "anomaly_table_full.csv"
	KeyScoreEval       = "anomaly_eval.csv"
	KeyHeatwave        = "heatwave_check.csv"
)

// ReportInputs names the source objects of a threshold run.
type ReportInputs struct {
	LandsatURI    string `json:"landsat_uri"`
	DownscaledURI string `json:"downscaled_uri"`
	ConstellrURI  string `json:"constellr_uri"`
	FusionURI     string `json:"fusion_uri"`
}

// ReportOutputs names the objects a threshold run wrote.
type ReportOutputs struct {
	All       string `json:"all"`
	Anomalies string `json:"anomalies"`
}

// ThresholdReport is the provenance record persisted next to the tables.
type ThresholdReport struct {
	Threshold     float64       `json:"-"`
	Method        Method        `json:"method"`
	Percentile    float64       `json:"percentile,omitempty"`
	Inputs        ReportInputs  `json:"inputs"`
	Outputs       ReportOutputs `json:"outputs"`
	RunID         string        `json:"run_id,omitempty"`
	GeneratedAt   time.Time     `json:"generated_at"`
	BaselineCount int           `json:"baseline_count"`
	Location      string        `json:"location,omitempty"`
	Rows          int           `json:"rows_merged"`
	AnomalyRows   int           `json:"rows_anomalous"`
}

// MarshalJSON writes the threshold as threshold_deltaT_celsius, null when
// undefined.
func (r ThresholdReport) MarshalJSON() ([]byte, error) {
	type plain ThresholdReport
	var thr *float64
	if !math.IsNaN(r.Threshold) && !math.IsInf(r.Threshold, 0) {
		v := r.Threshold
		thr = &v
	}
	return json.Marshal(struct {
		Threshold *float64 `json:"threshold_deltaT_celsius"`
		plain
	}{thr, plain(r)})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (r *ThresholdReport) UnmarshalJSON(data []byte) error {
	type plain ThresholdReport
	aux := struct {
		Threshold *float64 `json:"threshold_deltaT_celsius"`
		*plain
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Threshold = math.NaN()
	if aux.Threshold != nil {
		r.Threshold = *aux.Threshold
	}
	return nil
}
