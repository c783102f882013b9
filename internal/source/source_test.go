package source

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qupid/dq-suggestions/internal/config"
)

// fakeHandler satisfies DialectHandler with postgres-flavored quoting
// over a sqlmock-backed pool.
type fakeHandler struct {
	columns []ColumnInfo
}

func (f fakeHandler) CreateCloudSQLPool(config.SourceConfig) (*sql.DB, error) { return nil, nil }
func (f fakeHandler) CreateStandardPool(config.SourceConfig) (*sql.DB, error) { return nil, nil }
func (f fakeHandler) QuoteIdentifier(name string) string                      { return `"` + name + `"` }
func (f fakeHandler) SampleQuery(quotedTable string, limit int) string {
	return "SELECT * FROM " + quotedTable + " LIMIT 5"
}
func (f fakeHandler) DefaultSchema() string { return "public" }
func (f fakeHandler) ListTables(context.Context, *DB, string) ([]string, error) {
	return []string{"orders"}, nil
}
func (f fakeHandler) ListColumns(context.Context, *DB, string, string) ([]ColumnInfo, error) {
	return f.columns, nil
}

func newMockDB(t *testing.T, handler DialectHandler) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return &DB{Pool: pool, Handler: handler}, mock
}

func TestGetDialectHandlerUnknown(t *testing.T) {
	_, err := GetDialectHandler("oracle")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database dialect")
}

func TestRegisterDialectHandlerOverwrite(t *testing.T) {
	first := fakeHandler{columns: []ColumnInfo{{Name: "a"}}}
	second := fakeHandler{columns: []ColumnInfo{{Name: "b"}}}

	RegisterDialectHandler("test-dialect", first)
	RegisterDialectHandler("test-dialect", second)

	got, err := GetDialectHandler("test-dialect")
	require.NoError(t, err)
	cols, err := got.ListColumns(context.Background(), nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, "b", cols[0].Name)
}

func TestTableRowCount(t *testing.T) {
	db, mock := newMockDB(t, fakeHandler{})

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "public"\."orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := db.TableRowCount(context.Background(), "", "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableSample(t *testing.T) {
	handler := fakeHandler{columns: []ColumnInfo{
		{Name: "id", DataType: "bigint"},
		{Name: "email", DataType: "varchar"},
	}}
	db, mock := newMockDB(t, handler)

	mock.ExpectQuery(`SELECT \* FROM "public"\."users" LIMIT 5`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(int64(1), []byte("a@example.com")).
			AddRow(int64(2), nil))

	sample, err := db.TableSample(context.Background(), "public", "users", 5)
	require.NoError(t, err)

	require.Len(t, sample.Columns, 2)
	assert.Equal(t, "email", sample.Columns[1].Name)

	require.Len(t, sample.Rows, 2)
	assert.Equal(t, int64(1), sample.Rows[0]["id"])
	// Byte slices come back as strings so the sample serializes cleanly.
	assert.Equal(t, "a@example.com", sample.Rows[0]["email"])
	assert.Nil(t, sample.Rows[1]["email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableSampleNoColumns(t *testing.T) {
	db, _ := newMockDB(t, fakeHandler{})

	_, err := db.TableSample(context.Background(), "public", "ghost", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no columns or does not exist")
}

func TestTableSampleQueryError(t *testing.T) {
	handler := fakeHandler{columns: []ColumnInfo{{Name: "id", DataType: "int"}}}
	db, mock := newMockDB(t, handler)

	mock.ExpectQuery(`SELECT \* FROM "public"\."users" LIMIT 5`).
		WillReturnError(sql.ErrConnDone)

	_, err := db.TableSample(context.Background(), "public", "users", 5)
	assert.Error(t, err)
}
