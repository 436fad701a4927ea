// Package qcledger keeps a SQLite record of everything QC reconciliation has
// removed, so that a rejected assay can be traced after the configuration
// document has been rewritten.
package qcledger

import (
	"strings"
	"time"

	"github.com/carbocation/exprqc/reconcile"
	"github.com/carbocation/pfx"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"
)

// Kind says what sort of design object a rejection removed.
type Kind string

const (
	KindAssay    Kind = "assay"
	KindGroup    Kind = "group"
	KindContrast Kind = "contrast"
)

const schema = `CREATE TABLE IF NOT EXISTS qc_rejection (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	experiment TEXT NOT NULL,
	platform TEXT NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS qc_rejection_experiment ON qc_rejection (experiment);`

// Rejection is one removed assay, group or contrast. Entries written by the
// same Record call share a RunID.
type Rejection struct {
	ID         int64     `db:"id"`
	RunID      string    `db:"run_id"`
	Experiment string    `db:"experiment"`
	Platform   string    `db:"platform"`
	Name       string    `db:"name"`
	Kind       Kind      `db:"kind"`
	RecordedAt time.Time `db:"recorded_at"`
}

type Ledger struct {
	DB *sqlx.DB
}

// Open connects to (and if needed creates) the ledger database at path.
func Open(path string) (*Ledger, error) {
	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &Ledger{DB: db}, nil
}

func (l *Ledger) Close() error {
	return l.DB.Close()
}

// Record stores everything a reconciliation removed, in one transaction.
// Results that removed nothing write nothing.
func (l *Ledger) Record(experiment string, res reconcile.Result) error {
	now := time.Now().UTC()
	runID := uuid.NewString()

	rows := make([]Rejection, 0, len(res.RemovedAssays)+len(res.RemovedGroups)+len(res.RemovedContrasts))
	for _, set := range []struct {
		kind  Kind
		names []string
	}{
		{KindAssay, res.RemovedAssays},
		{KindGroup, res.RemovedGroups},
		{KindContrast, res.RemovedContrasts},
	} {
		for _, name := range set.names {
			rows = append(rows, Rejection{
				RunID:      runID,
				Experiment: experiment,
				Platform:   res.Platform,
				Name:       name,
				Kind:       set.kind,
				RecordedAt: now,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := l.DB.Beginx()
	if err != nil {
		return pfx.Err(err)
	}
	for _, row := range rows {
		if _, err := tx.NamedExec(`INSERT INTO qc_rejection (run_id, experiment, platform, name, kind, recorded_at)
			VALUES (:run_id, :experiment, :platform, :name, :kind, :recorded_at)`, row); err != nil {
			tx.Rollback()
			return pfx.Err(err)
		}
	}

	return pfx.Err(tx.Commit())
}

// Rejections lists an experiment's ledger entries in the order they were
// recorded.
func (l *Ledger) Rejections(experiment string) ([]Rejection, error) {
	out := make([]Rejection, 0)
	if err := l.DB.Select(&out, `SELECT id, run_id, experiment, platform, name, kind, recorded_at
		FROM qc_rejection WHERE experiment = ? ORDER BY id`, experiment); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

// RejectionsSince lists every ledger entry recorded at or after since, across
// experiments, oldest first.
func (l *Ledger) RejectionsSince(since time.Time) ([]Rejection, error) {
	out := make([]Rejection, 0)
	if err := l.DB.Select(&out, `SELECT id, run_id, experiment, platform, name, kind, recorded_at
		FROM qc_rejection WHERE recorded_at >= ? ORDER BY id`, since.UTC()); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}
