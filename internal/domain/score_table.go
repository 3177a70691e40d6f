package domain

import "strconv"

// DecisionHeader is the column layout of the decision tables.
var DecisionHeader = []string{
	"obs_date", "sensor", "baseline_group", "month", "is_train", "is_eval",
	"lst_max", "lst_mean", "delta_t", "delt_rob", "delt_rob_source",
	"delt_rob_median_train", "delt_rob_mad_train", "z_delt_rob",
	"air_tmax_c_used", "lst_air_gap", "gap_med_train", "gap_mad_train", "z_gap",
	"u_thr", "delt_rob_evt_q",
	"robust_z_flag", "weather_norm_flag", "evt_tail_flag", "anomaly_score", "decision",
}

// DecisionRecords renders scored records as rows aligned with DecisionHeader.
func DecisionRecords(records []ScoredRecord) [][]string {
	out := make([][]string, len(records))
	for i, r := range records {
		month := ""
		if r.Month != 0 {
			month = strconv.Itoa(int(r.Month))
		}
		out[i] = []string{
			FormatDay(r.ObsDate), string(r.Sensor), r.Group, month,
			strconv.FormatBool(r.IsTrain), strconv.FormatBool(r.IsEval),
			r.LSTMax.String(), r.LSTMean.String(), r.DeltaT.String(),
			r.Metric.String(), string(r.MetricSource),
			r.Median.String(), r.MAD.String(), r.Z.String(),
			r.AirTmax.String(), r.Gap.String(), r.GapMedian.String(), r.GapMAD.String(), r.ZGap.String(),
			r.TailU.String(), r.TailQuantile.String(),
			strconv.FormatBool(r.RobustZFlag), strconv.FormatBool(r.WeatherNormFlag),
			strconv.FormatBool(r.EVTTailFlag), strconv.Itoa(r.Score), string(r.Decision),
		}
	}
	return out
}

// HeatwaveHeader is the column layout of the heatwave table.
var HeatwaveHeader = []string{
	"Date", "air_tmax_C", "month_mean_C", "month_pxx_C",
	"anom_vs_month_mean_C", "above_pxx_flag", "hw_run_len", "heatwave_flag",
}

// HeatwaveRecords renders heatwave days aligned with HeatwaveHeader.
func HeatwaveRecords(days []HeatwaveDay) [][]string {
	out := make([][]string, len(days))
	for i, d := range days {
		out[i] = []string{
			FormatDay(d.Date), d.TmaxC.String(), d.MonthMean.String(), d.MonthPXX.String(),
			d.AnomalyVsMean.String(), strconv.FormatBool(d.AbovePXX),
			strconv.Itoa(d.RunLength), strconv.FormatBool(d.Heatwave),
		}
	}
	return out
}
