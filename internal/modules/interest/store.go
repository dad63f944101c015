// README: Interest store backed by PostgreSQL; assignment commit is one transaction.
package interest

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"camionback/internal/modules/request"
	"camionback/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Upsert keeps at most one row per (request, transporter). A resubmission
// refreshes the availability date and reactivates a previously invalidated
// signal; it never duplicates.
func (s *Store) Upsert(ctx context.Context, sig *Signal) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO interest_signals (id, request_id, transporter_id, availability_date, hidden, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (request_id, transporter_id)
		DO UPDATE SET availability_date = EXCLUDED.availability_date,
		              state = 'active'
		RETURNING id, hidden, created_at`,
		string(sig.ID), string(sig.RequestID), string(sig.TransporterID),
		sig.AvailabilityDate, sig.Hidden, string(sig.State), sig.CreatedAt,
	).Scan(&sig.ID, &sig.Hidden, &sig.CreatedAt)
}

// Withdraw deletes an active signal only. Settled rows (committed or
// invalidated at assignment) are part of the audit trail and stay put.
func (s *Store) Withdraw(ctx context.Context, requestID, transporterID types.ID) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM interest_signals
		WHERE request_id = $1 AND transporter_id = $2 AND state = 'active'`,
		string(requestID), string(transporterID),
	)
	return err
}

func (s *Store) ListByRequest(ctx context.Context, requestID types.ID) ([]Signal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, request_id, transporter_id, availability_date, hidden, state, created_at
		FROM interest_signals
		WHERE request_id = $1
		ORDER BY created_at`,
		string(requestID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []Signal
	for rows.Next() {
		var sig Signal
		if err := rows.Scan(&sig.ID, &sig.RequestID, &sig.TransporterID, &sig.AvailabilityDate, &sig.Hidden, &sig.State, &sig.CreatedAt); err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

func (s *Store) SetHidden(ctx context.Context, signalID types.ID, hidden bool) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE interest_signals SET hidden = $1 WHERE id = $2`,
		hidden, string(signalID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CommitAssignment performs the at-most-once commitment. The conditional
// UPDATE on requests.status is the mutual-exclusion point: a concurrent winner
// turns this into a zero-row update and the loser is told why. The interest
// and legacy offer tables are settled in the same transaction.
func (s *Store) CommitAssignment(ctx context.Context, requestID, transporterID types.ID, transporterFee, platformFee int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE requests
		SET status = 'accepted',
		    status_version = status_version + 1,
		    transporter_id = $2,
		    transporter_fee = $3,
		    platform_fee = $4,
		    client_total = $3 + $4
		WHERE id = $1 AND status = 'published_for_matching'`,
		string(requestID), string(transporterID), transporterFee, platformFee,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.classifyCommitFailure(ctx, requestID)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE interest_signals SET state = 'committed'
		WHERE request_id = $1 AND transporter_id = $2 AND state = 'active'`,
		string(requestID), string(transporterID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// No active signal: roll the status change back by aborting.
		return ErrNoInterest
	}

	if _, err := tx.Exec(ctx, `
		UPDATE interest_signals SET state = 'invalidated'
		WHERE request_id = $1 AND transporter_id <> $2 AND state = 'active'`,
		string(requestID), string(transporterID),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE offers SET status = 'rejected'
		WHERE request_id = $1 AND status = 'pending'`,
		string(requestID),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO request_events (request_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, 'published_for_matching', 'accepted', 'coordinator', NULL, $2)`,
		string(requestID), time.Now(),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// classifyCommitFailure turns a lost CAS into the right typed error.
func (s *Store) classifyCommitFailure(ctx context.Context, requestID types.ID) error {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM requests WHERE id = $1`, string(requestID)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return request.ErrNotFound
	}
	if err != nil {
		return err
	}
	switch request.Status(status) {
	case request.StatusAccepted, request.StatusInProgress, request.StatusCompleted:
		return request.ErrAlreadyAssigned
	default:
		return request.ErrInvalidTransition
	}
}
