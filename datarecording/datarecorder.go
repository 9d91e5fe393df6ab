// Package datarecording stores rows of flat structs into SQLite tables.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
)

// ErrFileExists is returned when the database file is already present.
var ErrFileExists = errors.New("database file already exists")

// ErrInvalidEntry is returned when a row struct has a field that cannot be
// stored in a column.
var ErrInvalidEntry = errors.New("entry is invalid")

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers a same-type row for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns a slice containing names of all tables
	ListTables() []string

	// Flush writes all the buffered rows into the database.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

type table struct {
	structType reflect.Type
	entries    []any
}

// SQLiteWriter is the writer that writes data into SQLite database
type SQLiteWriter struct {
	*sql.DB

	path       string
	tables     map[string]*table
	tableNames []string
	batchSize  int
	entryCount int
	closed     bool
}

// New creates a SQLite DataRecorder at path. The file must not exist.
func New(path string) (*SQLiteWriter, error) {
	_, err := os.Stat(path)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrFileExists)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	w := NewWithDB(db)
	w.path = path

	return w, nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) *SQLiteWriter {
	return &SQLiteWriter{
		DB:        db,
		batchSize: 10000,
		tables:    make(map[string]*table),
	}
}

// WithBatchSize sets how many rows are buffered before an automatic flush.
func (t *SQLiteWriter) WithBatchSize(n int) *SQLiteWriter {
	if n < 1 {
		n = 1
	}

	t.batchSize = n

	return t
}

// Path returns the database file path, empty when created from a *sql.DB.
func (t *SQLiteWriter) Path() string {
	return t.path
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// checkStructFields accepts scalar fields and pointers to scalars. A nil
// pointer is stored as NULL.
func checkStructFields(entry any) error {
	types := reflect.TypeOf(entry)
	if types.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s is not a struct", ErrInvalidEntry, types)
	}

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}

		if !isAllowedKind(fieldType.Kind()) {
			return fmt.Errorf("%w: field %s has type %s",
				ErrInvalidEntry, field.Name, field.Type)
		}
	}

	return nil
}

// CreateTable creates a table named after tableName.
func (t *SQLiteWriter) CreateTable(tableName string, sampleEntry any) error {
	if err := checkStructFields(sampleEntry); err != nil {
		return err
	}

	n := structs.Names(sampleEntry)
	fields := strings.Join(n, ", \n\t")

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`
	if _, err := t.Exec(createTableSQL); err != nil {
		return fmt.Errorf("creating table %s: %w", tableName, err)
	}

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
	t.tableNames = append(t.tableNames, tableName)

	return nil
}

// InsertData buffers a row. Rows are written when the batch is full or on
// Flush.
func (t *SQLiteWriter) InsertData(tableName string, entry any) error {
	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("table %s stores %s, got %s",
			tableName, table.structType, reflect.TypeOf(entry)))
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		return t.Flush()
	}

	return nil
}

// ListTables returns the tables in creation order.
func (t *SQLiteWriter) ListTables() []string {
	return append([]string(nil), t.tableNames...)
}

// Flush writes all the buffered rows in one transaction.
func (t *SQLiteWriter) Flush() error {
	if t.entryCount == 0 {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	for _, tableName := range t.tableNames {
		table := t.tables[tableName]
		if len(table.entries) == 0 {
			continue
		}

		if err := insertAll(tx, tableName, table.entries); err != nil {
			_ = tx.Rollback()
			return err
		}

		table.entries = nil
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	t.entryCount = 0

	return nil
}

func insertAll(tx *sql.Tx, tableName string, entries []any) error {
	stmt, err := tx.Prepare(insertStatement(tableName, entries[0]))
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", tableName, err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		v := []any{}

		values := reflect.ValueOf(entry)
		for i := 0; i < values.NumField(); i++ {
			v = append(v, values.Field(i).Interface())
		}

		if _, err := stmt.Exec(v...); err != nil {
			return fmt.Errorf("inserting into %s: %w", tableName, err)
		}
	}

	return nil
}

func insertStatement(tableName string, entry any) string {
	n := structs.Names(entry)
	for i := 0; i < len(n); i++ {
		n[i] = "?"
	}

	entryToFill := "(" + strings.Join(n, ", ") + ")"

	return "INSERT INTO " + tableName + " VALUES " + entryToFill
}

// Close flushes the remaining rows and closes the database. Calling Close
// more than once is allowed.
func (t *SQLiteWriter) Close() error {
	if t.closed {
		return nil
	}

	t.closed = true

	flushErr := t.Flush()
	closeErr := t.DB.Close()

	return errors.Join(flushErr, closeErr)
}
