package analytics

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	authhandler "github.com/RonTitans/BillFlow/internal/domain/auth/handler"
	"github.com/RonTitans/BillFlow/pkg/server"
)

// Handler serves the dashboard and analytics endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler constructs a new handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// DashboardStats handles GET /api/dashboard/stats.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := authhandler.UserIDFromContext(r.Context())
	if !ok {
		server.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		h.logger.Error("dashboard stats failed", slog.Any("error", err))
		server.Error(w, http.StatusInternalServerError, "could not compute statistics")
		return
	}

	resp := map[string]any{
		"totalFiles":      stats.TotalFiles,
		"completedFiles":  stats.CompletedFiles,
		"pendingFiles":    stats.PendingFiles,
		"processingFiles": stats.ProcessingFiles,
		"errorFiles":      stats.ErrorFiles,
		"perfectMatches":  stats.PerfectMatches,
		"totalAmount":     stats.TotalAmount,
		"totalGap":        stats.TotalGap,
	}
	if stats.LastUploadTime != nil {
		resp["lastUploadTime"] = stats.LastUploadTime.UTC().Format(time.RFC3339)
	}
	server.JSON(w, http.StatusOK, resp)
}

// Consumption handles GET /api/analytics/consumption?year=. With
// format=xlsx the report is returned as an Excel workbook.
func (h *Handler) Consumption(w http.ResponseWriter, r *http.Request) {
	userID, ok := authhandler.UserIDFromContext(r.Context())
	if !ok {
		server.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	yearStr := r.URL.Query().Get("year")
	if yearStr == "" {
		yearStr = strconv.Itoa(time.Now().Year())
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		server.Error(w, http.StatusBadRequest, "invalid year")
		return
	}

	report, err := h.svc.Consumption(r.Context(), userID, year)
	if err != nil {
		h.logger.Error("consumption report failed", slog.Int("year", year), slog.Any("error", err))
		server.Error(w, http.StatusBadRequest, "could not build consumption report")
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="consumption-%d.xlsx"`, year))
		if err := WriteExcelReport(report, w); err != nil {
			h.logger.Warn("excel report write interrupted", slog.Any("error", err))
		}
		return
	}

	months := make([]map[string]any, 0, len(report.Months))
	for _, m := range report.Months {
		months = append(months, map[string]any{
			"month":              m.Month,
			"siteCount":          m.SiteCount,
			"peakConsumption":    m.PeakConsumption,
			"offpeakConsumption": m.OffpeakConsumption,
			"totalConsumption":   m.TotalConsumption,
			"totalCost":          m.TotalCost,
			"totalCostVat":       m.TotalCostVAT,
		})
	}
	server.JSON(w, http.StatusOK, map[string]any{
		"year":   report.Year,
		"months": months,
		"totals": map[string]any{
			"peakConsumption":    report.PeakConsumption,
			"offpeakConsumption": report.OffpeakConsumption,
			"totalConsumption":   report.TotalConsumption,
			"totalCost":          report.TotalCost,
			"totalCostVat":       report.TotalCostVAT,
		},
	})
}
