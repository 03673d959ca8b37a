package services

import (
	"gonum.org/v1/gonum/stat"

	"retail-dashboard/internal/models"
)

const (
	DefaultMinObservations = 10
	minFitPoints           = 2
)

// Forecaster fits an ordinary least-squares line of units sold against the
// observation index and extrapolates it forward one day per period.
type Forecaster struct {
	MinObservations int
}

func NewForecaster(minObservations int) *Forecaster {
	return &Forecaster{MinObservations: minObservations}
}

func (f *Forecaster) required() int {
	n := f.MinObservations
	if n <= 0 {
		n = DefaultMinObservations
	}
	return max(n, minFitPoints)
}

// Forecast predicts units for the periods days after the last observation.
// The series must be ascending by date. Predictions are not clamped, so a
// falling trend may go negative.
func (f *Forecaster) Forecast(series []models.SeriesPoint, periods int) (*models.Forecast, error) {
	if periods <= 0 {
		return nil, invalidArgument("forecast periods must be positive, got %d", periods)
	}
	need := f.required()
	if len(series) < need {
		return nil, &InsufficientDataError{Have: len(series), Need: need}
	}

	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, p := range series {
		xs[i] = float64(i)
		ys[i] = p.UnitsSold
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	last := series[len(series)-1].Date
	points := make([]models.ForecastPoint, periods)
	for k := range periods {
		x := float64(len(series) + k)
		points[k] = models.ForecastPoint{
			Date:      last.AddDate(0, 0, k+1),
			UnitsSold: intercept + slope*x,
		}
	}

	return &models.Forecast{
		Slope:     slope,
		Intercept: intercept,
		Actual:    series,
		Points:    points,
	}, nil
}
