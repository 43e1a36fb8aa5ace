package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/proofdex/proofdex/internal/proof"
)

// Run identifies one analysis run in the ledger.
type Run struct {
	ID             string
	Project        string
	ManifestDigest string
}

// StatusRecord is one obligation decision to append for a round.
type StatusRecord struct {
	File        string
	Fn          string
	Kind        string
	POIndex     int
	APIID       int
	Status      proof.Status
	Deps        proof.Dependencies
	Diagnostic  proof.Diagnostic
	Explanation string
}

// RecordFor builds a status record from an obligation.
func RecordFor(file, fn string, o *proof.Obligation) StatusRecord {
	return StatusRecord{
		File:        file,
		Fn:          fn,
		Kind:        proof.KindLabel(o.Kind),
		POIndex:     o.Index,
		APIID:       o.APIID(),
		Status:      o.Status,
		Deps:        o.Deps,
		Diagnostic:  o.Diagnostic,
		Explanation: o.Explanation,
	}
}

// BeginRun registers a new run and returns its token. Tokens are UUIDv7,
// so lexicographic order on run ids follows wall-clock start order.
func (l *Ledger) BeginRun(ctx context.Context, project, manifestDigest string) (Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Run{}, fmt.Errorf("run token: %w", err)
	}
	run := Run{ID: id.String(), Project: project, ManifestDigest: manifestDigest}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO runs (id, project, manifest_digest, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, project, manifestDigest, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// CommitRound appends a completed round and its status decisions in one
// transaction. An aborted round leaves no trace; a re-committed round is a
// no-op thanks to ON CONFLICT DO NOTHING on the status key.
func (l *Ledger) CommitRound(ctx context.Context, run Run, round, dirty int, records []StatusRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin round %d: %w", round, err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds (run_id, round, dirty, committed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (run_id, round) DO NOTHING
	`, run.ID, round, dirty, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert round %d: %w", round, err)
	}

	for _, rec := range records {
		deps, err := json.Marshal(rec.Deps)
		if err != nil {
			return fmt.Errorf("encode deps for %s/%s/%d: %w", rec.File, rec.Fn, rec.POIndex, err)
		}
		diag, err := json.Marshal(rec.Diagnostic)
		if err != nil {
			return fmt.Errorf("encode diagnostic for %s/%s/%d: %w", rec.File, rec.Fn, rec.POIndex, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO statuses (run_id, round, file, fn, kind, po_index, apiid, status, deps, diagnostic, explanation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, round, file, fn, kind, po_index) DO NOTHING
		`, run.ID, round, rec.File, rec.Fn, rec.Kind, rec.POIndex, rec.APIID,
			string(rec.Status), string(deps), string(diag), rec.Explanation)
		if err != nil {
			return fmt.Errorf("insert status %s/%s/%s/%d: %w", rec.File, rec.Fn, rec.Kind, rec.POIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round %d: %w", round, err)
	}
	return nil
}
