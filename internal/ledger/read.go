package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/proofdex/proofdex/internal/proof"
)

// StatusRow is one persisted obligation decision.
type StatusRow struct {
	Round int
	StatusRecord
}

// RunStatuses returns every status of a run in deterministic order:
// ORDER BY round, file, fn, kind, po_index. Two ledgers of the same run
// yield byte-identical listings.
func (l *Ledger) RunStatuses(ctx context.Context, runID string) ([]StatusRow, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT round, file, fn, kind, po_index, apiid, status, deps, diagnostic, explanation
		FROM statuses
		WHERE run_id = ?
		ORDER BY round ASC, file ASC, fn ASC, kind ASC, po_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer rows.Close()
	return scanStatusRows(rows)
}

// History returns the per-round decisions of one obligation in round order.
func (l *Ledger) History(ctx context.Context, runID, file, fn, kind string, poIndex int) ([]StatusRow, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT round, file, fn, kind, po_index, apiid, status, deps, diagnostic, explanation
		FROM statuses
		WHERE run_id = ? AND file = ? AND fn = ? AND kind = ? AND po_index = ?
		ORDER BY round ASC
	`, runID, file, fn, kind, poIndex)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanStatusRows(rows)
}

// Rounds returns the number of committed rounds for a run.
func (l *Ledger) Rounds(ctx context.Context, runID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rounds WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rounds: %w", err)
	}
	return n, nil
}

// LatestRun returns the most recently started run id, or "" when the
// ledger is empty. UUIDv7 ids sort by start time.
func (l *Ledger) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := l.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return id, nil
}

func scanStatusRows(rows *sql.Rows) ([]StatusRow, error) {
	var out []StatusRow
	for rows.Next() {
		var r StatusRow
		var status, deps, diag string
		if err := rows.Scan(&r.Round, &r.File, &r.Fn, &r.Kind, &r.POIndex, &r.APIID,
			&status, &deps, &diag, &r.Explanation); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		st, err := proof.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		r.Status = st
		if err := json.Unmarshal([]byte(deps), &r.Deps); err != nil {
			return nil, fmt.Errorf("decode deps: %w", err)
		}
		if err := json.Unmarshal([]byte(diag), &r.Diagnostic); err != nil {
			return nil, fmt.Errorf("decode diagnostic: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}
	if out == nil {
		out = []StatusRow{}
	}
	return out, nil
}
