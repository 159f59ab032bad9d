package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"osce-station/internal/station"
)

var ErrReportNotFound = errors.New("report not found")

// Archive keeps finished station reports in the station_reports table.
type Archive struct {
	db *sql.DB
}

func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) Save(ctx context.Context, r *station.FeedbackReport) error {
	if r.SessionID == uuid.Nil {
		return errors.New("report has no session id")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO station_reports (session_id, case_id, report, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id) DO UPDATE SET
			case_id = $2,
			report = $3
	`
	_, err = a.db.ExecContext(ctx, query, r.SessionID, r.CaseID, body)
	return err
}

func (a *Archive) Get(ctx context.Context, sessionID uuid.UUID) (*station.FeedbackReport, error) {
	var body []byte
	err := a.db.QueryRowContext(ctx, `SELECT report FROM station_reports WHERE session_id = $1`, sessionID).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", sessionID, ErrReportNotFound)
		}
		return nil, err
	}
	return decodeReport(body)
}

// ListByCase returns the newest reports for a case first.
func (a *Archive) ListByCase(ctx context.Context, caseID string, limit int) ([]*station.FeedbackReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT report FROM station_reports
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, caseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*station.FeedbackReport
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		r, err := decodeReport(body)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Purge deletes reports archived before cutoff and returns how many went.
func (a *Archive) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM station_reports WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge reports: %w", err)
	}
	return res.RowsAffected()
}

func decodeReport(body []byte) (*station.FeedbackReport, error) {
	var r station.FeedbackReport
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}
