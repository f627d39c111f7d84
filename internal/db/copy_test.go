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
	n, err := CopyFrom(context.TODO(), nil, "source_records", []string{"id", "doc"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"source_records"}, []string{"id", "doc"}).WillReturnResult(2)

	rows := [][]any{{"a", []byte(`{}`)}, {"b", []byte(`{}`)}}
	n, err := CopyFrom(context.Background(), mock, "source_records", []string{"id", "doc"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_ShortWrite(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"source_records"}, []string{"id"}).WillReturnResult(1)

	_, err = CopyFrom(context.Background(), mock, "source_records", []string{"id"}, [][]any{{"a"}, {"b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrote 1 of 2 rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"source_records"}, []string{"id"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "source_records", []string{"id"}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO source_records")
	assert.NoError(t, mock.ExpectationsWereMet())
}
