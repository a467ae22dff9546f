package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
	"github.com/noah-isme/starboard-api/pkg/export"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportResult carries a rendered standings file.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders archived monthly standings as downloadable files.
type ExportService struct {
	standings historicalStandingsProvider
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(standings historicalStandingsProvider, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{standings: standings, csv: csv, pdf: pdf, logger: logger}
}

// MonthlyClassStandings renders the archived class leaderboard of one
// league and month.
func (s *ExportService) MonthlyClassStandings(ctx context.Context, league, monthKey string, format ExportFormat) (*ExportResult, error) {
	standings, err := s.standings.HistoricalClassStandings(ctx, league, monthKey)
	if err != nil {
		return nil, err
	}
	table := export.Table{
		Title:   fmt.Sprintf("Class Standings %s %s", league, monthKey),
		Headers: []string{"Rank", "Class", "Stars", "Students"},
	}
	for _, st := range standings {
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("%d", st.Rank),
			st.Name,
			formatStars(st.MonthlyStars),
			fmt.Sprintf("%d", st.StudentCount),
		})
	}
	name := fmt.Sprintf("class_standings_%s_%s", sanitizeFilename(league), monthKey)
	return s.render(table, name, format)
}

// MonthlyStudentStandings renders the archived student leaderboard of
// one class and month.
func (s *ExportService) MonthlyStudentStandings(ctx context.Context, classID, monthKey string, format ExportFormat) (*ExportResult, error) {
	standings, err := s.standings.HistoricalStudentStandings(ctx, classID, monthKey)
	if err != nil {
		return nil, err
	}
	table := export.Table{
		Title:   fmt.Sprintf("Student Standings %s", monthKey),
		Headers: []string{"Rank", "Student", "Stars"},
	}
	for _, st := range standings {
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("%d", st.Rank),
			st.FullName,
			formatStars(st.Score),
		})
	}
	name := fmt.Sprintf("student_standings_%s_%s", sanitizeFilename(classID), monthKey)
	return s.render(table, name, format)
}

func (s *ExportService) render(table export.Table, name string, format ExportFormat) (*ExportResult, error) {
	switch format {
	case FormatCSV:
		payload, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Filename: name + ".csv", ContentType: "text/csv", Payload: payload}, nil
	case FormatPDF:
		payload, err := s.pdf.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Filename: name + ".pdf", ContentType: "application/pdf", Payload: payload}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func formatStars(v float64) string {
	out := fmt.Sprintf("%.2f", v)
	out = strings.TrimRight(out, "0")
	return strings.TrimRight(out, ".")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}
