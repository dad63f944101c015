// README: Offer store backed by PostgreSQL.
package offer

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

func (s *Store) Insert(ctx context.Context, o *Offer) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO offers (id, request_id, transporter_id, amount, load_type, pickup_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(o.ID), string(o.RequestID), string(o.TransporterID),
		o.Amount, o.LoadType, o.PickupDate, string(o.Status), o.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Offer, error) {
	var o Offer
	err := s.db.QueryRow(ctx, `
		SELECT id, request_id, transporter_id, amount, load_type, pickup_date, status, created_at
		FROM offers
		WHERE id = $1`, string(id),
	).Scan(&o.ID, &o.RequestID, &o.TransporterID, &o.Amount, &o.LoadType, &o.PickupDate, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, request.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListByRequest(ctx context.Context, requestID types.ID) ([]Offer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, request_id, transporter_id, amount, load_type, pickup_date, status, created_at
		FROM offers
		WHERE request_id = $1
		ORDER BY created_at`, string(requestID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []Offer
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.ID, &o.RequestID, &o.TransporterID, &o.Amount, &o.LoadType, &o.PickupDate, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// AcceptOffer is the legacy twin of the assignment commit: same conditional
// write on requests.status, so the offer and interest paths cannot both win.
func (s *Store) AcceptOffer(ctx context.Context, offerID types.ID, platformFee int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var o Offer
	err = tx.QueryRow(ctx, `
		SELECT id, request_id, transporter_id, amount, status
		FROM offers
		WHERE id = $1
		FOR UPDATE`, string(offerID),
	).Scan(&o.ID, &o.RequestID, &o.TransporterID, &o.Amount, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return request.ErrNotFound
	}
	if err != nil {
		return err
	}
	if o.Status != StatusPending {
		return request.ErrInvalidTransition
	}

	tag, err := tx.Exec(ctx, `
		UPDATE requests
		SET status = 'accepted',
		    status_version = status_version + 1,
		    transporter_id = $2,
		    transporter_fee = $3,
		    platform_fee = $4,
		    client_total = $3 + $4
		WHERE id = $1 AND status = 'published_for_matching'`,
		string(o.RequestID), string(o.TransporterID), o.Amount, platformFee,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return classifyCommitFailure(ctx, tx, o.RequestID)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE offers SET status = 'accepted' WHERE id = $1`, string(o.ID),
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE offers SET status = 'rejected'
		WHERE request_id = $1 AND id <> $2 AND status = 'pending'`,
		string(o.RequestID), string(o.ID),
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE interest_signals SET state = 'invalidated'
		WHERE request_id = $1 AND state = 'active'`,
		string(o.RequestID),
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO request_events (request_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, 'published_for_matching', 'accepted', 'coordinator', NULL, $2)`,
		string(o.RequestID), time.Now(),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) SetStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE offers SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func classifyCommitFailure(ctx context.Context, tx pgx.Tx, requestID types.ID) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM requests WHERE id = $1`, string(requestID)).Scan(&status)
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
