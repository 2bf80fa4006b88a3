package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"AirNode/internal/model"
	"AirNode/internal/parser"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSink inserts readings into a single table; absent values are stored as NULL.
type SQLiteSink struct {
	db     *sql.DB
	table  string
	insert string
}

// OpenSQLite opens the database at path (":memory:" works) and creates table if needed.
func OpenSQLite(path, table string) (*SQLiteSink, error) {
	if !tableName.MatchString(table) {
		return nil, errors.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	temp REAL,
	ch2o REAL,
	tvoc REAL,
	co2 REAL
)`, table)
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "create table %s", table)
	}
	return &SQLiteSink{
		db:     db,
		table:  table,
		insert: fmt.Sprintf("INSERT INTO %s (timestamp, temp, ch2o, tvoc, co2) VALUES (?, ?, ?, ?, ?)", table),
	}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

// Dispatch inserts r.
func (s *SQLiteSink) Dispatch(ctx context.Context, r model.Reading) error {
	_, err := s.db.ExecContext(ctx, s.insert,
		r.Time.Format(parser.TimeLayout),
		nullable(r.Temperature), nullable(r.CH2O), nullable(r.TVOC), nullable(r.CO2))
	return err
}

// Recent returns up to n rows, newest first. Row.ID is the table id.
func (s *SQLiteSink) Recent(ctx context.Context, n int) ([]Row, error) {
	q := fmt.Sprintf("SELECT id, timestamp, temp, ch2o, tvoc, co2 FROM %s ORDER BY id DESC LIMIT ?", s.table)
	rs, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		var row Row
		var temp, ch2o, tvoc, co2 sql.NullFloat64
		if err := rs.Scan(&row.ID, &row.Timestamp, &temp, &ch2o, &tvoc, &co2); err != nil {
			return nil, err
		}
		row.Temp, row.CH2O, row.TVOC, row.CO2 = ptr(temp), ptr(ch2o), ptr(tvoc), ptr(co2)
		rows = append(rows, row)
	}
	return rows, rs.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Float(v.Float64)
}
