// Package analysis provides pure statistical primitives over tabular row
// data. It is shared by the data_analysis workflow step and the agent's
// data_analysis tool.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Row is one record of tabular data keyed by field name.
type Row = map[string]any

// FieldType is the inferred type of a column.
type FieldType string

const (
	FieldNumeric FieldType = "numeric"
	FieldString  FieldType = "string"
	FieldDate    FieldType = "date"
	FieldBoolean FieldType = "boolean"
	FieldObject  FieldType = "object"
)

// Period controls time bucketing for trends and forecasts.
type Period string

const (
	PeriodDaily     Period = "daily"
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// FieldSummary holds type-appropriate statistics for one column.
type FieldSummary struct {
	Type       FieldType      `json:"type"`
	Count      int            `json:"count"`
	NullCount  int            `json:"null_count"`
	Numeric    *NumericStats  `json:"numeric,omitempty"`
	Text       *TextStats     `json:"text,omitempty"`
	Dates      *DateStats     `json:"dates,omitempty"`
	Booleans   *BooleanStats  `json:"booleans,omitempty"`
}

type NumericStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Sum    float64 `json:"sum"`
}

type TextStats struct {
	UniqueCount int    `json:"unique_count"`
	Mode        string `json:"mode"`
}

type DateStats struct {
	Min       time.Time `json:"min"`
	Max       time.Time `json:"max"`
	RangeDays float64   `json:"range_days"`
}

type BooleanStats struct {
	TrueCount  int `json:"true_count"`
	FalseCount int `json:"false_count"`
}

// Summary is the per-field overview of a dataset.
type Summary struct {
	RowCount int                     `json:"row_count"`
	Fields   map[string]FieldSummary `json:"fields"`
}

// Summarize infers a type for every field and computes its statistics.
func Summarize(rows []Row) Summary {
	summary := Summary{
		RowCount: len(rows),
		Fields:   make(map[string]FieldSummary),
	}

	for _, field := range fieldNames(rows) {
		fs := FieldSummary{Type: inferFieldType(rows, field)}

		var nums []float64
		var dates []time.Time
		texts := make(map[string]int)
		trues, falses := 0, 0

		for _, row := range rows {
			v, ok := row[field]
			if !ok || v == nil {
				fs.NullCount++
				continue
			}
			fs.Count++
			switch fs.Type {
			case FieldNumeric:
				if n, ok := toFloat(v); ok {
					nums = append(nums, n)
				}
			case FieldDate:
				if t, ok := toDate(v); ok {
					dates = append(dates, t)
				}
			case FieldBoolean:
				if b, ok := v.(bool); ok {
					if b {
						trues++
					} else {
						falses++
					}
				}
			case FieldString:
				texts[fmt.Sprintf("%v", v)]++
			}
		}

		switch fs.Type {
		case FieldNumeric:
			if len(nums) > 0 {
				fs.Numeric = numericStats(nums)
			}
		case FieldDate:
			if len(dates) > 0 {
				sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
				min, max := dates[0], dates[len(dates)-1]
				fs.Dates = &DateStats{
					Min:       min,
					Max:       max,
					RangeDays: max.Sub(min).Hours() / 24,
				}
			}
		case FieldBoolean:
			fs.Booleans = &BooleanStats{TrueCount: trues, FalseCount: falses}
		case FieldString:
			mode, best := "", 0
			for s, n := range texts {
				if n > best {
					mode, best = s, n
				}
			}
			fs.Text = &TextStats{UniqueCount: len(texts), Mode: mode}
		}

		summary.Fields[field] = fs
	}

	return summary
}

// BucketStats holds aggregate statistics for one numeric field in one bucket.
type BucketStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Sum  float64 `json:"sum"`
}

// TrendBucket is one time bucket with per-field aggregates.
type TrendBucket struct {
	Bucket string                 `json:"bucket"`
	Count  int                    `json:"count"`
	Fields map[string]BucketStats `json:"fields"`
}

// FieldTrend summarizes direction of change for one numeric field across the
// bucketed range.
type FieldTrend struct {
	Direction     string  `json:"direction"` // up, down, flat
	PercentChange float64 `json:"percent_change"`
	First         float64 `json:"first"`
	Last          float64 `json:"last"`
}

// TrendResult is the output of Trends.
type TrendResult struct {
	DateField string                `json:"date_field"`
	Period    Period                `json:"period"`
	Buckets   []TrendBucket         `json:"buckets"`
	Trends    map[string]FieldTrend `json:"trends"`
}

// Trends buckets rows by a time period over the first date-typed field and
// aggregates every numeric field per bucket.
func Trends(rows []Row, period Period) (*TrendResult, error) {
	if period == "" {
		period = PeriodMonthly
	}
	dateField, numericFields, err := timeSeriesFields(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]Row)
	for _, row := range rows {
		t, ok := toDate(row[dateField])
		if !ok {
			continue
		}
		key := bucketKey(t, period)
		grouped[key] = append(grouped[key], row)
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := &TrendResult{
		DateField: dateField,
		Period:    period,
		Trends:    make(map[string]FieldTrend),
	}
	for _, key := range keys {
		bucket := TrendBucket{
			Bucket: key,
			Count:  len(grouped[key]),
			Fields: make(map[string]BucketStats),
		}
		for _, field := range numericFields {
			vals := collectNumeric(grouped[key], field)
			if len(vals) == 0 {
				continue
			}
			s := numericStats(vals)
			bucket.Fields[field] = BucketStats{Mean: s.Mean, Min: s.Min, Max: s.Max, Sum: s.Sum}
		}
		result.Buckets = append(result.Buckets, bucket)
	}

	if len(result.Buckets) >= 2 {
		first := result.Buckets[0]
		last := result.Buckets[len(result.Buckets)-1]
		for _, field := range numericFields {
			f, okF := first.Fields[field]
			l, okL := last.Fields[field]
			if !okF || !okL {
				continue
			}
			result.Trends[field] = fieldTrend(f.Mean, l.Mean)
		}
	}

	return result, nil
}

// Anomaly flags one outlying row value.
type Anomaly struct {
	RowIndex  int     `json:"row_index"`
	Field     string  `json:"field"`
	Value     float64 `json:"value"`
	ZScore    float64 `json:"z_score"`
	Direction string  `json:"direction"` // high or low
}

// DetectAnomalies flags values more than three standard deviations from the
// field mean.
func DetectAnomalies(rows []Row) []Anomaly {
	var anomalies []Anomaly
	for _, field := range fieldNames(rows) {
		if inferFieldType(rows, field) != FieldNumeric {
			continue
		}
		vals := collectNumeric(rows, field)
		if len(vals) < 2 {
			continue
		}
		mean := meanOf(vals)
		std := stddev(vals, mean)
		if std == 0 {
			continue
		}
		for i, row := range rows {
			v, ok := toFloat(row[field])
			if !ok {
				continue
			}
			z := (v - mean) / std
			if math.Abs(z) > 3 {
				direction := "high"
				if z < 0 {
					direction = "low"
				}
				anomalies = append(anomalies, Anomaly{
					RowIndex:  i,
					Field:     field,
					Value:     v,
					ZScore:    z,
					Direction: direction,
				})
			}
		}
	}
	return anomalies
}

// ForecastPoint is one projected future bucket value.
type ForecastPoint struct {
	Bucket string  `json:"bucket"`
	Value  float64 `json:"value"`
}

// FieldForecast holds the projection for one numeric field.
type FieldForecast struct {
	MovingAverage float64         `json:"moving_average"`
	AverageDelta  float64         `json:"average_delta"`
	Projected     []ForecastPoint `json:"projected"`
}

// ForecastResult is the output of Forecast.
type ForecastResult struct {
	DateField string                   `json:"date_field"`
	Period    Period                   `json:"period"`
	History   []TrendBucket            `json:"history"`
	Forecasts map[string]FieldForecast `json:"forecasts"`
}

const forecastHorizon = 3

// Forecast projects three future periods per numeric field using a 3-period
// simple moving average and the mean period-over-period delta.
func Forecast(rows []Row, period Period) (*ForecastResult, error) {
	trend, err := Trends(rows, period)
	if err != nil {
		return nil, err
	}

	result := &ForecastResult{
		DateField: trend.DateField,
		Period:    trend.Period,
		History:   trend.Buckets,
		Forecasts: make(map[string]FieldForecast),
	}

	for field := range collectFields(trend.Buckets) {
		var series []float64
		for _, b := range trend.Buckets {
			if s, ok := b.Fields[field]; ok {
				series = append(series, s.Mean)
			}
		}
		if len(series) < 2 {
			continue
		}

		window := series
		if len(window) > 3 {
			window = window[len(window)-3:]
		}
		ma := meanOf(window)

		var deltaSum float64
		for i := 1; i < len(series); i++ {
			deltaSum += series[i] - series[i-1]
		}
		avgDelta := deltaSum / float64(len(series)-1)

		fc := FieldForecast{MovingAverage: ma, AverageDelta: avgDelta}
		last := series[len(series)-1]
		for i := 1; i <= forecastHorizon; i++ {
			fc.Projected = append(fc.Projected, ForecastPoint{
				Bucket: fmt.Sprintf("+%d", i),
				Value:  last + avgDelta*float64(i),
			})
		}
		result.Forecasts[field] = fc
	}

	return result, nil
}

func collectFields(buckets []TrendBucket) map[string]struct{} {
	fields := make(map[string]struct{})
	for _, b := range buckets {
		for f := range b.Fields {
			fields[f] = struct{}{}
		}
	}
	return fields
}

func timeSeriesFields(rows []Row) (string, []string, error) {
	var dateField string
	var numericFields []string
	for _, field := range fieldNames(rows) {
		switch inferFieldType(rows, field) {
		case FieldDate:
			if dateField == "" {
				dateField = field
			}
		case FieldNumeric:
			numericFields = append(numericFields, field)
		}
	}
	if dateField == "" {
		return "", nil, fmt.Errorf("no date field found in data")
	}
	if len(numericFields) == 0 {
		return "", nil, fmt.Errorf("no numeric fields found in data")
	}
	return dateField, numericFields, nil
}

func bucketKey(t time.Time, period Period) string {
	switch period {
	case PeriodDaily:
		return t.Format("2006-01-02")
	case PeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodQuarterly:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case PeriodYearly:
		return t.Format("2006")
	default:
		return t.Format("2006-01")
	}
}

func fieldTrend(first, last float64) FieldTrend {
	trend := FieldTrend{First: first, Last: last, Direction: "flat"}
	if first != 0 {
		trend.PercentChange = (last - first) / math.Abs(first) * 100
	}
	switch {
	case last > first:
		trend.Direction = "up"
	case last < first:
		trend.Direction = "down"
	}
	return trend
}

// fieldNames returns the union of keys across all rows in stable order.
func fieldNames(rows []Row) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}

// inferFieldType looks at the first non-nil value of the field.
func inferFieldType(rows []Row, field string) FieldType {
	for _, row := range rows {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		switch tv := v.(type) {
		case bool:
			return FieldBoolean
		case float64, float32, int, int32, int64:
			return FieldNumeric
		case time.Time:
			return FieldDate
		case string:
			if _, ok := toDate(tv); ok {
				return FieldDate
			}
			return FieldString
		case map[string]any, []any:
			return FieldObject
		default:
			return FieldString
		}
	}
	return FieldString
}

func collectNumeric(rows []Row, field string) []float64 {
	var vals []float64
	for _, row := range rows {
		if v, ok := toFloat(row[field]); ok {
			vals = append(vals, v)
		}
	}
	return vals
}

func numericStats(vals []float64) *NumericStats {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	return &NumericStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   sum / float64(len(sorted)),
		Median: median,
		Sum:    sum,
	}
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64, mean float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(vals)))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
