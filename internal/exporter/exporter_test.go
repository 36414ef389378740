package exporter

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"keywarden/internal/license"
)

func sampleLicenses() []*license.License {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	redeemed := created.Add(time.Hour)
	expires := created.Add(30 * 24 * time.Hour)
	return []*license.License{
		{
			Key: "AAAA-0000-0000-0001", Status: license.StatusRedeemed, OwnerID: "user-1",
			CreatedAt: created, RedeemedAt: &redeemed, ExpiresAt: &expires, CreatedBy: "admin-1",
		},
		{
			Key: "AAAA-0000-0000-0002", Status: license.StatusUnused,
			CreatedAt: created, CreatedBy: "admin-1",
		},
	}
}

func TestExportXLSX(t *testing.T) {
	e, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := e.ExportXLSX(sampleLicenses(), time.Now())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Licenses")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Key", rows[0][0])
	assert.Equal(t, "AAAA-0000-0000-0001", rows[1][0])
	assert.Equal(t, "redeemed", rows[1][1])
	assert.Equal(t, "user-1", rows[1][2])
	assert.Equal(t, "Never", rows[2][5], "lifetime license has no expiry")
}

func TestExportCSV(t *testing.T) {
	e, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := e.ExportCSV(sampleLicenses(), time.Now())
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "AAAA-0000-0000-0002", records[2][0])
	assert.Equal(t, "unused", records[2][1])
}
