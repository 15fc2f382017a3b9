package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<register>
  <tender>
    <id>T-1</id>
    <title>Road maintenance</title>
    <category>construction</category>
    <institution>City of Northfield</institution>
    <published_at>2025-05-01</published_at>
    <closing_at>2025-05-15</closing_at>
    <estimated_value>100000</estimated_value>
    <status>awarded</status>
    <awarded_at>2025-06-01</awarded_at>
    <actual_value>98000</actual_value>
    <cpv_code>45233141</cpv_code>
    <bidders>
      <bidder><company>Alpha Build</company><bid_amount>98000</bid_amount><rank>1</rank><winner>true</winner></bidder>
      <bidder><company>Borealis Ltd</company><bid_amount>101000</bid_amount><rank>2</rank></bidder>
    </bidders>
  </tender>
  <tender>
    <id>T-2</id>
    <title>Office supplies</title>
    <category>supplies</category>
    <institution>Ministry of Works</institution>
    <published_at>2025-05-03</published_at>
    <estimated_value>5000</estimated_value>
  </tender>
</register>`

func TestStreamTenders(t *testing.T) {
	tenderCh, errCh := streamTenders(context.Background(), strings.NewReader(feedXML))

	var tenders []xmlTender
	for tender := range tenderCh {
		tenders = append(tenders, tender)
	}
	require.NoError(t, <-errCh)

	require.Len(t, tenders, 2)
	assert.Equal(t, "T-1", tenders[0].ID)
	assert.Equal(t, "awarded", tenders[0].Status)
	require.Len(t, tenders[0].Bidders, 2)
	assert.True(t, tenders[0].Bidders[0].Winner)
	assert.Empty(t, tenders[1].Bidders)
}

func TestLoadXML(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"tenders"}, tenderColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"bidders"}, bidderColumns).WillReturnResult(2)

	res, err := NewLoader(mock).LoadXML(context.Background(), strings.NewReader(feedXML))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Tenders)
	assert.Equal(t, int64(2), res.Bidders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadXMLBadTimestamp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	bad := `<register><tender><id>T-1</id><published_at>not-a-date</published_at></tender></register>`
	_, err = NewLoader(mock).LoadXML(context.Background(), strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable timestamp")
}

func writeTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("tenders")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().Value = v
		}
	}
	path := filepath.Join(t.TempDir(), "dump.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadXLSX(t *testing.T) {
	path := writeTestXLSX(t, [][]string{
		xlsxColumns,
		{"T-1", "Road maintenance", "construction", "City of Northfield",
			"2025-05-01", "2025-05-15", "100000", "0", "active", "open", "lowest_price", "45233141"},
		{"T-2", "Office supplies", "supplies", "Ministry of Works",
			"2025-05-03", "", "5000", "0", "active", "open", "lowest_price", ""},
	})

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"tenders"}, tenderColumns).WillReturnResult(2)

	res, err := NewLoader(mock).LoadXLSX(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Tenders)
	assert.Equal(t, int64(0), res.Bidders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadXLSXRejectsBadHeader(t *testing.T) {
	path := writeTestXLSX(t, [][]string{
		{"wrong", "header"},
	})

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewLoader(mock).LoadXLSX(context.Background(), path)
	require.Error(t, err)
}
