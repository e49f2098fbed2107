package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"coachplanner/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

var agendaColumns = []string{"Date", "Time", "Client", "Training", "Token"}

// AgendaExporter writes coach agendas as xlsx workbooks, one sheet per month.
type AgendaExporter struct {
	dir    string
	logger *zerolog.Logger
}

func NewAgendaExporter(dir string, logger *zerolog.Logger) *AgendaExporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AgendaExporter{dir: dir, logger: logger}
}

// ExportCoachAgenda renders entries into an in-memory workbook.
func (e *AgendaExporter) ExportCoachAgenda(entries []*models.AgendaEntry, from, to time.Time) (*bytes.Buffer, error) {
	f, err := buildWorkbook(entries, from, to)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return buf, nil
}

// SaveCoachAgenda writes the workbook into the export directory and returns its path.
func (e *AgendaExporter) SaveCoachAgenda(coachID string, entries []*models.AgendaEntry, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := buildWorkbook(entries, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(e.dir, FileName(coachID, from, to))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("appointments", len(entries)).Msg("agenda exported")
	return filePath, nil
}

func FileName(coachID string, from, to time.Time) string {
	return fmt.Sprintf("agenda_%s_%s_to_%s.xlsx", coachID, from.Format(models.DateLayout), to.Format(models.DateLayout))
}

// SheetName is the month sheet an appointment date belongs to.
func SheetName(date time.Time) string {
	return date.Format("2006-01")
}

func buildWorkbook(entries []*models.AgendaEntry, from, to time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating header style: %w", err)
	}

	sorted := append([]*models.AgendaEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].StartHour < sorted[j].StartHour
	})

	months := monthsBetween(from, to)
	for _, entry := range sorted {
		name := SheetName(entry.Date)
		if !contains(months, name) {
			months = append(months, name)
		}
	}
	sort.Strings(months)
	if len(months) == 0 {
		months = []string{SheetName(from)}
	}

	nextRow := make(map[string]int, len(months))
	for _, name := range months {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("error creating sheet: %w", err)
		}
		for i, title := range agendaColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(name, cell, title)
		}
		_ = f.SetCellStyle(name, "A1", "E1", headerStyle)
		_ = f.SetColWidth(name, "A", "B", 12)
		_ = f.SetColWidth(name, "C", "D", 28)
		_ = f.SetColWidth(name, "E", "E", 38)
		nextRow[name] = 2
	}

	for _, entry := range sorted {
		name := SheetName(entry.Date)
		row := nextRow[name]
		client := entry.ClientName
		if client == "" {
			client = entry.ClientEmail
		} else if entry.ClientEmail != "" {
			client = fmt.Sprintf("%s <%s>", entry.ClientName, entry.ClientEmail)
		}
		values := []interface{}{entry.DateString(), entry.TimeLabel(), client, entry.TrainingName, entry.ManageToken}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row: %w", err)
		}
		nextRow[name] = row + 1
	}

	if idx, err := f.GetSheetIndex(months[0]); err == nil {
		f.SetActiveSheet(idx)
	}
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func monthsBetween(from, to time.Time) []string {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil
	}
	var months []string
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
	for !cur.After(to) {
		months = append(months, SheetName(cur))
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
