// Package ledger records the status history of proof obligations in an
// append-only SQLite database. Each analysis run gets a row in runs, each
// completed round a row in rounds, and every obligation decision a row in
// statuses. Nothing is ever updated in place: re-running a round inserts
// nothing new thanks to the unique status key, and reads order rows
// deterministically so two ledgers of the same run compare equal.
package ledger
