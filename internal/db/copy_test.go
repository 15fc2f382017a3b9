package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "flagged_tenders_staging", []string{"tender_id"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"flagged_tenders_staging"}, []string{"tender_id"}).
		WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "flagged_tenders_staging", []string{"tender_id"}, [][]any{{"T-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO flagged_tenders_staging")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_InsertsRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"tender_id", "risk_score"}
	mock.ExpectCopyFrom(pgx.Identifier{"flagged_tenders_staging"}, cols).
		WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "flagged_tenders_staging", cols, [][]any{
		{"T-1", 80},
		{"T-2", 45},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
