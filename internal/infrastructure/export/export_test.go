package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/oliehub/backend/internal/domain/integration"
)

func sampleEntries() []integration.SyncLogEntry {
	ts := time.Date(2024, 3, 5, 13, 0, 0, 0, time.FixedZone("BRT", -3*60*60))
	return []integration.SyncLogEntry{
		{ID: 2, Type: integration.SyncTypeProducts, Count: 0, Status: integration.SyncStatusError, Details: "tiny: upstream timeout, retry later", Timestamp: ts},
		{ID: 1, Type: integration.SyncTypeOrders, Count: 7, Status: integration.SyncStatusSuccess, Details: "3 rows rejected by validation", Timestamp: ts.Add(-time.Minute)},
	}
}

func TestRow(t *testing.T) {
	row := Row(sampleEntries()[0])
	assert.Equal(t, []string{"2", "products", "0", "error", "2024-03-05T16:00:00Z", "tiny: upstream timeout, retry later"}, row)
	assert.Len(t, row, len(Columns))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleEntries()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Columns, records[0])
	// details with a comma survive quoting
	assert.Equal(t, "tiny: upstream timeout, retry later", records[1][5])
	assert.Equal(t, "7", records[2][2])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "id,type,count,status,timestamp,details\n", buf.String())
}

func TestCSVWriter_Options(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(WithDelimiter(';'), WithBOM(true))
	require.NoError(t, w.Write(&buf, sampleEntries()[1:]))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, string(out[3:]), "id;type;count;status;timestamp;details\n")
	assert.Contains(t, string(out), "1;orders;7;success;")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleEntries()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"2", "products", "0", "error", "2024-03-05T16:00:00Z", "tiny: upstream timeout, retry later"}, rows[1])
	assert.Equal(t, "3 rows rejected by validation", rows[2][5])
}
