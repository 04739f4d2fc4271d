package orders

import (
	"context"
	"database/sql"
	"time"

	"ordervault/services/orders/db"
)

// Journal is a write-ahead record of job progress. A job id is marked
// before its extraction starts and again once it completes, so a
// process killed mid-run still knows afterwards which records were
// finished even if the final snapshot write never happened.
type Journal struct {
	db *sql.DB
}

func OpenJournal(path string) (*Journal, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = database.Exec(db.Schema)
	if err != nil {
		database.Close()
		return nil, err
	}
	return &Journal{db: database}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin marks a job as dispatched. Re-running a previously attempted
// id just refreshes its start marker.
func (j *Journal) Begin(ctx context.Context, id string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO job_log (id, started_at, completed_at)
		VALUES (?, ?, NULL)
		ON CONFLICT (id) DO UPDATE SET started_at = excluded.started_at, completed_at = NULL
	`, id, time.Now().Unix())
	return err
}

func (j *Journal) Complete(ctx context.Context, id string) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE job_log SET completed_at = ? WHERE id = ?
	`, time.Now().Unix(), id)
	return err
}

func (j *Journal) CompletedIDs(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id FROM job_log WHERE completed_at IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
