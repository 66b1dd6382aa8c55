package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesRows() []Row {
	return []Row{
		{"date": "2024-01-05", "revenue": 100.0, "region": "east", "priority": true},
		{"date": "2024-01-20", "revenue": 120.0, "region": "west", "priority": false},
		{"date": "2024-02-03", "revenue": 130.0, "region": "east", "priority": true},
		{"date": "2024-02-18", "revenue": 150.0, "region": "east", "priority": false},
		{"date": "2024-03-10", "revenue": 170.0, "region": "west", "priority": true},
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(salesRows())

	assert.Equal(t, 5, summary.RowCount)

	revenue := summary.Fields["revenue"]
	assert.Equal(t, FieldNumeric, revenue.Type)
	require.NotNil(t, revenue.Numeric)
	assert.Equal(t, 100.0, revenue.Numeric.Min)
	assert.Equal(t, 170.0, revenue.Numeric.Max)
	assert.Equal(t, 670.0, revenue.Numeric.Sum)
	assert.Equal(t, 134.0, revenue.Numeric.Mean)
	assert.Equal(t, 130.0, revenue.Numeric.Median)

	region := summary.Fields["region"]
	assert.Equal(t, FieldString, region.Type)
	require.NotNil(t, region.Text)
	assert.Equal(t, 2, region.Text.UniqueCount)
	assert.Equal(t, "east", region.Text.Mode)

	date := summary.Fields["date"]
	assert.Equal(t, FieldDate, date.Type)
	require.NotNil(t, date.Dates)
	assert.InDelta(t, 65, date.Dates.RangeDays, 0.01)

	priority := summary.Fields["priority"]
	assert.Equal(t, FieldBoolean, priority.Type)
	require.NotNil(t, priority.Booleans)
	assert.Equal(t, 3, priority.Booleans.TrueCount)
	assert.Equal(t, 2, priority.Booleans.FalseCount)
}

func TestSummarizeNullCounts(t *testing.T) {
	rows := []Row{
		{"score": 1.0},
		{"score": nil},
		{},
	}
	summary := Summarize(rows)
	field := summary.Fields["score"]
	assert.Equal(t, 1, field.Count)
	assert.Equal(t, 2, field.NullCount)
}

func TestTrendsMonthly(t *testing.T) {
	result, err := Trends(salesRows(), PeriodMonthly)
	require.NoError(t, err)

	assert.Equal(t, "date", result.DateField)
	require.Len(t, result.Buckets, 3)
	assert.Equal(t, "2024-01", result.Buckets[0].Bucket)
	assert.Equal(t, "2024-03", result.Buckets[2].Bucket)

	jan := result.Buckets[0].Fields["revenue"]
	assert.Equal(t, 110.0, jan.Mean)
	assert.Equal(t, 220.0, jan.Sum)

	trend := result.Trends["revenue"]
	assert.Equal(t, "up", trend.Direction)
	assert.InDelta(t, 54.5, trend.PercentChange, 0.1)
}

func TestTrendsDefaultsToMonthly(t *testing.T) {
	result, err := Trends(salesRows(), "")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonthly, result.Period)
}

func TestTrendsNoDateField(t *testing.T) {
	_, err := Trends([]Row{{"x": 1.0}}, PeriodDaily)
	assert.Error(t, err)
}

func TestDetectAnomalies(t *testing.T) {
	rows := []Row{}
	for i := 0; i < 20; i++ {
		rows = append(rows, Row{"latency": 100.0 + float64(i%3)})
	}
	rows = append(rows, Row{"latency": 500.0})

	anomalies := DetectAnomalies(rows)
	require.Len(t, anomalies, 1)
	assert.Equal(t, 20, anomalies[0].RowIndex)
	assert.Equal(t, "latency", anomalies[0].Field)
	assert.Equal(t, "high", anomalies[0].Direction)
	assert.Greater(t, anomalies[0].ZScore, 3.0)
}

func TestDetectAnomaliesUniformSeries(t *testing.T) {
	rows := []Row{{"v": 5.0}, {"v": 5.0}, {"v": 5.0}}
	assert.Empty(t, DetectAnomalies(rows))
}

func TestForecast(t *testing.T) {
	rows := []Row{
		{"date": "2024-01-01", "units": 10.0},
		{"date": "2024-02-01", "units": 20.0},
		{"date": "2024-03-01", "units": 30.0},
		{"date": "2024-04-01", "units": 40.0},
	}
	result, err := Forecast(rows, PeriodMonthly)
	require.NoError(t, err)

	fc, ok := result.Forecasts["units"]
	require.True(t, ok)
	assert.Equal(t, 10.0, fc.AverageDelta)
	assert.Equal(t, 30.0, fc.MovingAverage)
	require.Len(t, fc.Projected, 3)
	assert.Equal(t, 50.0, fc.Projected[0].Value)
	assert.Equal(t, 60.0, fc.Projected[1].Value)
	assert.Equal(t, 70.0, fc.Projected[2].Value)
}

func TestBucketKeys(t *testing.T) {
	rows := []Row{
		{"date": "2024-05-15", "v": 1.0},
	}
	for period, want := range map[Period]string{
		PeriodDaily:     "2024-05-15",
		PeriodQuarterly: "2024-Q2",
		PeriodYearly:    "2024",
	} {
		result, err := Trends(rows, period)
		require.NoError(t, err)
		require.Len(t, result.Buckets, 1)
		assert.Equal(t, want, result.Buckets[0].Bucket)
	}
}
