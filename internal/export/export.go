// Package export writes timeline periods to external formats: CSV for
// spreadsheets and SQLite for ad-hoc querying.
package export

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/anne-gert/TimeKeeper/internal/timeline"
)

// CSV writes one record per period. Times are rendered in loc; the raw
// duration stays in seconds so spreadsheets can aggregate it.
func CSV(w io.Writer, periods []timeline.Period, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "timer", "start", "end", "duration_seconds"}); err != nil {
		return err
	}
	for _, p := range periods {
		start := time.Unix(p.Start, 0).In(loc)
		end := time.Unix(p.End, 0).In(loc)
		rec := []string{
			start.Format("2006-01-02"),
			string(p.Timer),
			start.Format(time.RFC3339),
			end.Format(time.RFC3339),
			strconv.FormatInt(p.Duration(), 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const schema = `
CREATE TABLE IF NOT EXISTS periods (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timer TEXT NOT NULL,
	start_unix INTEGER NOT NULL,
	end_unix INTEGER NOT NULL,
	started_at TEXT NOT NULL,
	ended_at TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_periods_timer ON periods(timer);
CREATE INDEX IF NOT EXISTS idx_periods_start ON periods(start_unix);
`

// SQLite writes the periods into a database file, replacing the periods
// table so repeated exports stay idempotent.
func SQLite(path string, periods []timeline.Period, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM periods"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear periods: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO periods (timer, start_unix, end_unix, started_at, ended_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range periods {
		_, err := stmt.Exec(
			string(p.Timer),
			p.Start,
			p.End,
			time.Unix(p.Start, 0).In(loc).Format(time.RFC3339),
			time.Unix(p.End, 0).In(loc).Format(time.RFC3339),
			p.Duration(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert period: %w", err)
		}
	}
	return tx.Commit()
}
