package apihttp

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"messhall-cloud/internal/analytics"
	"messhall-cloud/internal/observability/metrics"
)

// ExportHandler renders the operations report as a download. The report
// covers the overview KPIs, the per-day flow table, and the most recent
// audit entries.
type ExportHandler struct {
	store  *analytics.Store
	format string
}

// Export formats routed by main.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// NewExportHandler constructs an ExportHandler for one format.
func NewExportHandler(store *analytics.Store, format string) *ExportHandler {
	return &ExportHandler{store: store, format: format}
}

// ServeHTTP handles GET /api/v1/exports/report.<format>.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.store == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	days := intQuery(r, "days", 7, 7)
	started := time.Now()

	var (
		payload     []byte
		contentType string
		filename    string
		err         error
	)
	switch h.format {
	case FormatXLSX:
		payload, err = buildReportXLSX(h.store, days)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "operations-report.xlsx"
	case FormatPDF:
		payload, err = buildReportPDF(h.store, days)
		contentType = "application/pdf"
		filename = "operations-report.pdf"
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		metrics.ObserveExport(h.format, "error", time.Since(started))
		http.Error(w, "render report error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(h.format, "ok", time.Since(started))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
}

func buildReportPDF(store *analytics.Store, days int) ([]byte, error) {
	kpis := store.OverviewKPIs()
	flow := store.TemporalFlow(days)
	audit := store.AuditLog(analytics.AuditFilter{}, 25, 0)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Mess Hall Operations Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Average Wait (min): %.1f", kpis.AvgWaitMinutes))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Peak Congestion Day: %s", kpis.PeakCongestionDay))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Peak Congestion Hour: %s", kpis.PeakCongestionHour))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Fairness Incidents (24h): %d", kpis.FairnessIncidents24h))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sustainability Score: %d", kpis.SustainabilityScore))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Day", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg Wait (min)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg Queue", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg Capacity %", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Samples", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range flow {
		pdf.CellFormat(40, 6, row.DayKey, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", row.AvgWait), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", row.AvgQueue), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", row.AvgCapacity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", row.Samples), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Event Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, "Action", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Risk", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, entry := range audit {
		pdf.CellFormat(45, 6, entry.Timestamp.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, entry.EventType, "1", 0, "L", false, 0, "")
		pdf.CellFormat(55, 6, entry.Action, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, entry.RiskLevel, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildReportXLSX(store *analytics.Store, days int) ([]byte, error) {
	kpis := store.OverviewKPIs()
	flow := store.TemporalFlow(days)
	audit := store.AuditLog(analytics.AuditFilter{}, 100, 0)
	sustain := store.SustainabilityLog(50)

	f := excelize.NewFile()
	overviewSheet := "overview"
	flowSheet := "flow"
	auditSheet := "audit"
	sustainSheet := "sustainability"
	f.SetSheetName("Sheet1", overviewSheet)
	f.NewSheet(flowSheet)
	f.NewSheet(auditSheet)
	f.NewSheet(sustainSheet)

	_ = f.SetCellValue(overviewSheet, "A1", "Mess Hall Operations Report")
	_ = f.SetCellValue(overviewSheet, "A3", "Generated")
	_ = f.SetCellValue(overviewSheet, "B3", time.Now().Format(time.RFC3339))
	_ = f.SetCellValue(overviewSheet, "A4", "Average Wait (min)")
	_ = f.SetCellValue(overviewSheet, "B4", kpis.AvgWaitMinutes)
	_ = f.SetCellValue(overviewSheet, "A5", "Peak Congestion Day")
	_ = f.SetCellValue(overviewSheet, "B5", kpis.PeakCongestionDay)
	_ = f.SetCellValue(overviewSheet, "A6", "Peak Congestion Hour")
	_ = f.SetCellValue(overviewSheet, "B6", kpis.PeakCongestionHour)
	_ = f.SetCellValue(overviewSheet, "A7", "Fairness Incidents (24h)")
	_ = f.SetCellValue(overviewSheet, "B7", kpis.FairnessIncidents24h)
	_ = f.SetCellValue(overviewSheet, "A8", "Sustainability Score")
	_ = f.SetCellValue(overviewSheet, "B8", kpis.SustainabilityScore)

	_ = f.SetCellValue(flowSheet, "A1", "Day")
	_ = f.SetCellValue(flowSheet, "B1", "Avg Wait (min)")
	_ = f.SetCellValue(flowSheet, "C1", "Avg Queue")
	_ = f.SetCellValue(flowSheet, "D1", "Avg Capacity %")
	_ = f.SetCellValue(flowSheet, "E1", "Samples")
	for i, row := range flow {
		n := i + 2
		_ = f.SetCellValue(flowSheet, fmt.Sprintf("A%d", n), row.DayKey)
		_ = f.SetCellValue(flowSheet, fmt.Sprintf("B%d", n), row.AvgWait)
		_ = f.SetCellValue(flowSheet, fmt.Sprintf("C%d", n), row.AvgQueue)
		_ = f.SetCellValue(flowSheet, fmt.Sprintf("D%d", n), row.AvgCapacity)
		_ = f.SetCellValue(flowSheet, fmt.Sprintf("E%d", n), row.Samples)
	}

	_ = f.SetCellValue(auditSheet, "A1", "Time")
	_ = f.SetCellValue(auditSheet, "B1", "Event Type")
	_ = f.SetCellValue(auditSheet, "C1", "User")
	_ = f.SetCellValue(auditSheet, "D1", "Action")
	_ = f.SetCellValue(auditSheet, "E1", "Risk")
	for i, entry := range audit {
		n := i + 2
		_ = f.SetCellValue(auditSheet, fmt.Sprintf("A%d", n), entry.Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(auditSheet, fmt.Sprintf("B%d", n), entry.EventType)
		_ = f.SetCellValue(auditSheet, fmt.Sprintf("C%d", n), entry.UserID)
		_ = f.SetCellValue(auditSheet, fmt.Sprintf("D%d", n), entry.Action)
		_ = f.SetCellValue(auditSheet, fmt.Sprintf("E%d", n), entry.RiskLevel)
	}

	_ = f.SetCellValue(sustainSheet, "A1", "Time")
	_ = f.SetCellValue(sustainSheet, "B1", "Score")
	_ = f.SetCellValue(sustainSheet, "C1", "Completion %")
	_ = f.SetCellValue(sustainSheet, "D1", "Waste %")
	_ = f.SetCellValue(sustainSheet, "E1", "Daily Waste (kg)")
	_ = f.SetCellValue(sustainSheet, "F1", "Waste Trend")
	for i, sample := range sustain {
		n := i + 2
		_ = f.SetCellValue(sustainSheet, fmt.Sprintf("A%d", n), sample.Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(sustainSheet, fmt.Sprintf("B%d", n), sample.Score)
		_ = f.SetCellValue(sustainSheet, fmt.Sprintf("C%d", n), sample.CompletionRatio)
		_ = f.SetCellValue(sustainSheet, fmt.Sprintf("D%d", n), sample.WasteRatio)
		_ = f.SetCellValue(sustainSheet, fmt.Sprintf("E%d", n), sample.DailyWasteKg)
		_ = f.SetCellValue(sustainSheet, fmt.Sprintf("F%d", n), sample.WasteTrend)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
