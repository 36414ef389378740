// Package exporter writes operator-facing exports of the license
// ledger. The Excel export backs the export_licenses admin command;
// the CSV variant exists for tooling that prefers plain text.
package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"keywarden/internal/license"
)

// Exporter writes license exports under a base directory.
type Exporter struct {
	dir string
}

// New creates an exporter rooted at dir, creating it if needed.
func New(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &Exporter{dir: dir}, nil
}

var headers = []string{
	"Key", "Status", "Owner", "Created", "Redeemed", "Expires", "Created By", "Revoked By", "Revoke Reason",
}

func rowFor(l *license.License) []string {
	return []string{
		l.Key,
		string(l.Status),
		l.OwnerID,
		formatStamp(&l.CreatedAt),
		formatStamp(l.RedeemedAt),
		expiryCell(l),
		l.CreatedBy,
		l.RevokedBy,
		l.RevokeReason,
	}
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func expiryCell(l *license.License) string {
	if l.IsLifetime() {
		return "Never"
	}
	return formatStamp(l.ExpiresAt)
}

// ExportXLSX writes the licenses to a timestamped Excel workbook and
// returns its path.
func (e *Exporter) ExportXLSX(licenses []*license.License, at time.Time) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Licenses"
	f.SetSheetName("Sheet1", sheet)

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return "", err
		}
	}

	for i, l := range licenses {
		for col, value := range rowFor(l) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return "", err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return "", err
			}
		}
	}

	path := filepath.Join(e.dir, fmt.Sprintf("licenses_%s.xlsx", at.UTC().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

// ExportCSV writes the licenses to a timestamped CSV file and returns
// its path.
func (e *Exporter) ExportCSV(licenses []*license.License, at time.Time) (string, error) {
	path := filepath.Join(e.dir, fmt.Sprintf("licenses_%s.csv", at.UTC().Format("20060102_150405")))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(headers); err != nil {
		return "", err
	}
	for _, l := range licenses {
		if err := w.Write(rowFor(l)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return path, nil
}
