package handlers

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/starfederation/datastar-go/datastar"

	"retail-dashboard/internal/errors"
	"retail-dashboard/internal/services"
)

// dashboardQuery carries the selector state shared by the REST query string
// and the datastar signals.
type dashboardQuery struct {
	Store     string `json:"store"`
	Category  string `json:"category"`
	Start     string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End       string `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Metric    string `json:"metric" validate:"omitempty,oneof=net_sales units_sold"`
	N         int    `json:"n" validate:"gte=0,lte=1000"`
	ProductID string `json:"productId"`
	Periods   int    `json:"periods" validate:"gte=0"`
}

type queryParser struct {
	validate *validator.Validate
}

func newQueryParser() queryParser {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return queryParser{validate: v}
}

// fromURL reads the query string. A missing n falls back to the default
// ranking length.
func (p queryParser) fromURL(r *http.Request) (dashboardQuery, error) {
	v := r.URL.Query()
	q := dashboardQuery{
		Store:    v.Get("store"),
		Category: v.Get("category"),
		Start:    v.Get("start"),
		End:      v.Get("end"),
		Metric:   v.Get("metric"),
		N:        services.DefaultRankN,
	}

	var err error
	if raw := v.Get("n"); raw != "" {
		if q.N, err = strconv.Atoi(raw); err != nil {
			return q, errors.ValidationWrap(err, "n must be an integer")
		}
	}
	if raw := v.Get("periods"); raw != "" {
		if q.Periods, err = strconv.Atoi(raw); err != nil {
			return q, errors.ValidationWrap(err, "periods must be an integer")
		}
	}

	return q, p.validate.Struct(q)
}

// fromSignals reads datastar signals sent with an SSE request.
func (p queryParser) fromSignals(r *http.Request) (dashboardQuery, error) {
	q := dashboardQuery{N: services.DefaultRankN}
	if err := datastar.ReadSignals(r, &q); err != nil {
		return q, errors.ValidationWrap(err, "malformed signals")
	}
	return q, p.validate.Struct(q)
}

func (q dashboardQuery) filters() services.Filters {
	f := services.Filters{Store: q.Store, Category: q.Category}
	// Dates are already validated against the layout.
	if q.Start != "" {
		f.Start, _ = time.Parse(time.DateOnly, q.Start)
	}
	if q.End != "" {
		f.End, _ = time.Parse(time.DateOnly, q.End)
	}
	return f
}

func (q dashboardQuery) rankQuery(direction string) (services.RankQuery, error) {
	order, err := services.ParseOrder(direction)
	if err != nil {
		return services.RankQuery{}, err
	}
	metric, err := services.ParseRankMetric(q.Metric)
	if err != nil {
		return services.RankQuery{}, err
	}
	return services.RankQuery{Metric: metric, Order: order, N: q.N}, nil
}
