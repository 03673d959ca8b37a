package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"retail-dashboard/internal/errors"
	"retail-dashboard/internal/models"
	"retail-dashboard/internal/services"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	topSheet        = "Top Products"
	bottomSheet     = "Bottom Products"
)

var rankingHeader = []string{"Rank", "Product ID", "Product", "Value"}

type ExportHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	queries   queryParser
}

func NewExportHandlers(analytics *services.Analytics, logger *slog.Logger) *ExportHandlers {
	return &ExportHandlers{
		analytics: analytics,
		logger:    logger.With("component", "export"),
		queries:   newQueryParser(),
	}
}

// HandleRankings streams a workbook with the top and bottom rankings for
// the query's filters, one sheet each.
func (h *ExportHandlers) HandleRankings(w http.ResponseWriter, r *http.Request) {
	q, err := h.queries.fromURL(r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	topQ, err := q.rankQuery(string(services.Descending))
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	bottomQ := topQ
	bottomQ.Order = services.Ascending

	top, err := h.analytics.Rankings(r.Context(), q.filters(), topQ)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	bottom, err := h.analytics.Rankings(r.Context(), q.filters(), bottomQ)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}

	f, err := RankingWorkbook(string(topQ.Metric), top, bottom)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	defer f.Close()

	name := fmt.Sprintf("rankings-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := f.Write(w); err != nil {
		h.logger.ErrorContext(r.Context(), "write workbook", "error", err)
	}
}

// RankingWorkbook builds the two-sheet ranking export. The value column is
// headed by the metric name.
func RankingWorkbook(metric string, top, bottom []models.RankedProduct) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", topSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(bottomSheet); err != nil {
		f.Close()
		return nil, err
	}

	for sheet, rows := range map[string][]models.RankedProduct{topSheet: top, bottomSheet: bottom} {
		if err := writeRankingSheet(f, sheet, metric, rows); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRankingSheet(f *excelize.File, sheet, metric string, rows []models.RankedProduct) error {
	for col, title := range rankingHeader {
		if col == len(rankingHeader)-1 {
			title = fmt.Sprintf("%s (%s)", title, metric)
		}
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return err
		}
	}

	for i, r := range rows {
		values := []any{r.Rank, r.ProductID, r.ProductName, r.Value}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
