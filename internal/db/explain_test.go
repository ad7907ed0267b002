package db

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresClient_Explain(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	plan := `[{"Plan": {"Node Type": "Seq Scan", "Relation Name": "users"}}]`

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL statement_timeout = '750ms'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN (VERBOSE, FORMAT JSON) SELECT id FROM users LIMIT $1")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(plan))
	mock.ExpectRollback()

	client := NewPostgresClientFromDB(db)
	got, err := client.Explain(context.Background(), "SELECT id FROM users LIMIT :limit;", map[string]any{"limit": 10}, 750*time.Millisecond)
	require.NoError(t, err)
	assert.JSONEq(t, plan, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClient_Explain_PlannerError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("EXPLAIN").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	client := NewPostgresClientFromDB(db)
	_, err = client.Explain(context.Background(), "SELECT * FROM missing", nil, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClient_Explain_MissingBind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	client := NewPostgresClientFromDB(db)
	_, err = client.Explain(context.Background(), "SELECT * FROM users WHERE id = :id", nil, time.Second)
	assert.ErrorIs(t, err, ErrMissingParam)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClient_SampleValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "status"::text FROM "public"."orders" WHERE "status" IS NOT NULL LIMIT $1`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("new").AddRow("paid"))
	mock.ExpectRollback()

	client := NewPostgresClientFromDB(db)
	values, err := client.SampleValues(context.Background(), "public", "orders", "status", 3, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "paid"}, values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClient_ReadOnly_NoTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectRollback()

	client := NewPostgresClientFromDB(db)
	timing, err := client.ReadOnly(context.Background(), 0, func(ctx context.Context, tx *sql.Tx) error {
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, timing.Acquire, time.Duration(0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalTimeoutStatement(t *testing.T) {
	assert.Equal(t, "SET LOCAL statement_timeout = '2000ms'", localTimeoutStatement(2*time.Second))
	assert.Equal(t, "SET LOCAL statement_timeout = '1ms'", localTimeoutStatement(time.Microsecond))
}
