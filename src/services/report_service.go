package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xuri/excelize/v2"

	"reportscheduler/src/models"
	"reportscheduler/src/schemas"
)

type ReportServiceI interface {
	Generate(ctx context.Context, report *models.SavedReport) (*schemas.ReportResult, error)
	Export(result *schemas.ReportResult, format models.ReportFormat) (*schemas.ReportFile, error)
}

// ReportService turns a saved report definition into a dataframe and exports
// it as a CSV or XLSX attachment. The definition's query is treated as
// opaque: whatever rows it yields become the report.
type ReportService struct {
	DB *pgxpool.Pool
}

func NewReportService(db *pgxpool.Pool) *ReportService {
	return &ReportService{DB: db}
}

func (rs *ReportService) Generate(ctx context.Context, report *models.SavedReport) (*schemas.ReportResult, error) {
	rows, err := rs.DB.Query(ctx, report.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to run report query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = string(field.Name)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("report query returned no columns")
	}

	var records [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read report row: %w", err)
		}
		record := make([]string, len(values))
		for i, value := range values {
			if value == nil {
				record[i] = ""
				continue
			}
			record[i] = fmt.Sprint(value)
		}
		records = append(records, record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read report rows: %w", err)
	}

	// All columns stay string series so values round-trip into the export
	// exactly as Postgres rendered them.
	var df dataframe.DataFrame
	if len(records) > 0 {
		df = dataframe.LoadRecords(append([][]string{columns}, records...), dataframe.DetectTypes(false))
	} else {
		columnSeries := make([]series.Series, len(columns))
		for i, name := range columns {
			columnSeries[i] = series.New([]string{}, series.String, name)
		}
		df = dataframe.New(columnSeries...)
	}
	if df.Err != nil {
		return nil, fmt.Errorf("failed to assemble report dataframe: %w", df.Err)
	}

	return &schemas.ReportResult{Name: report.Name, Data: &df}, nil
}

func (rs *ReportService) Export(result *schemas.ReportResult, format models.ReportFormat) (*schemas.ReportFile, error) {
	switch format {
	case models.FormatCSV:
		return exportCSV(result)
	case models.FormatXLSX:
		return exportXLSX(result)
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

func exportCSV(result *schemas.ReportResult) (*schemas.ReportFile, error) {
	var buf bytes.Buffer
	if err := result.Data.WriteCSV(&buf); err != nil {
		return nil, err
	}

	return &schemas.ReportFile{
		FileName: reportFileName(result.Name, models.FormatCSV),
		Format:   string(models.FormatCSV),
		Content:  buf.Bytes(),
	}, nil
}

func exportXLSX(result *schemas.ReportResult) (*schemas.ReportFile, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Report"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for col, name := range result.Columns() {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for row, record := range result.Records() {
		for col, value := range record {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	return &schemas.ReportFile{
		FileName: reportFileName(result.Name, models.FormatXLSX),
		Format:   string(models.FormatXLSX),
		Content:  buf.Bytes(),
	}, nil
}

func reportFileName(name string, format models.ReportFormat) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "_")
	if slug == "" {
		slug = "report"
	}
	return fmt.Sprintf("%s_%s.%s", slug, time.Now().UTC().Format("2006-01-02"), format)
}
