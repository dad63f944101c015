// README: Request store backed by PostgreSQL; transitions are conditional updates.
package request

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"camionback/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const requestColumns = `
	id, reference, client_id,
	origin_city, origin_address, destination_city, destination_address, distance_km,
	cargo_category, description, estimated_weight, floor_origin, floor_dest, has_elevator,
	desired_date,
	client_total, transporter_fee, platform_fee, price_confidence,
	status, status_version, coordination_status,
	coordinator_id, transporter_id, hidden,
	archive_reason, archive_comment, cancel_reason,
	created_at, qualified_at, published_for_matching_at, coordination_updated_at`

func (s *Store) Create(ctx context.Context, r *Request) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO requests (
			id, reference, client_id,
			origin_city, origin_address, destination_city, destination_address, distance_km,
			cargo_category, description, estimated_weight, floor_origin, floor_dest, has_elevator,
			desired_date, status, status_version, coordination_status, hidden, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20
		)`,
		string(r.ID), r.Reference, string(r.ClientID),
		r.OriginCity, r.OriginAddress, r.DestinationCity, r.DestinationAddress, r.DistanceKm,
		r.CargoCategory, r.Description, r.EstimatedWeight, r.FloorOrigin, r.FloorDest, r.HasElevator,
		r.DesiredDate, string(r.Status), r.StatusVersion, string(r.CoordinationStatus), r.Hidden, r.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, string(id))
	return scanRequest(row)
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	var coordinatorID, transporterID *string
	err := row.Scan(
		&r.ID, &r.Reference, &r.ClientID,
		&r.OriginCity, &r.OriginAddress, &r.DestinationCity, &r.DestinationAddress, &r.DistanceKm,
		&r.CargoCategory, &r.Description, &r.EstimatedWeight, &r.FloorOrigin, &r.FloorDest, &r.HasElevator,
		&r.DesiredDate,
		&r.ClientTotal, &r.TransporterFee, &r.PlatformFee, &r.PriceConfidence,
		&r.Status, &r.StatusVersion, &r.CoordinationStatus,
		&coordinatorID, &transporterID, &r.Hidden,
		&r.ArchiveReason, &r.ArchiveComment, &r.CancelReason,
		&r.CreatedAt, &r.QualifiedAt, &r.PublishedForMatchingAt, &r.CoordinationUpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if coordinatorID != nil {
		v := types.ID(*coordinatorID)
		r.CoordinatorID = &v
	}
	if transporterID != nil {
		v := types.ID(*transporterID)
		r.TransporterID = &v
	}
	return &r, nil
}

// UpdateStatus is the single conditional write every transition goes through:
// the row is matched on (id, status, status_version) so a concurrent transition
// makes this a zero-row update, reported as ok=false. Timestamps are stamped
// only on their first relevant transition; Restamp overrides that for explicit
// requalification.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, upd Update) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE requests
		SET status = $1,
		    status_version = status_version + 1,
		    client_total = COALESCE($2, client_total),
		    transporter_fee = COALESCE($3, transporter_fee),
		    platform_fee = COALESCE($4, platform_fee),
		    price_confidence = COALESCE($5, price_confidence),
		    distance_km = COALESCE($6, distance_km),
		    cancel_reason = COALESCE($7, cancel_reason),
		    archive_reason = CASE WHEN $10 THEN NULL ELSE COALESCE($8, archive_reason) END,
		    archive_comment = CASE WHEN $10 THEN NULL ELSE COALESCE($9, archive_comment) END,
		    transporter_id = CASE WHEN $11 THEN NULL ELSE transporter_id END,
		    qualified_at = CASE WHEN $1 = 'published_for_matching' AND qualified_at IS NULL THEN NOW() ELSE qualified_at END,
		    published_for_matching_at = CASE
		        WHEN $12 THEN NOW()
		        WHEN $1 = 'published_for_matching' AND published_for_matching_at IS NULL THEN NOW()
		        ELSE published_for_matching_at END
		WHERE id = $13 AND status = $14 AND status_version = $15`,
		string(to),
		upd.ClientTotal,
		upd.TransporterFee,
		upd.PlatformFee,
		upd.PriceConfidence,
		upd.DistanceKm,
		upd.CancelReason,
		upd.ArchiveReason,
		upd.ArchiveComment,
		upd.ClearArchive,
		upd.ClearTransporter,
		upd.Restamp,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Requalify is the transactional twin of UpdateStatus for the one transition
// that must also settle the interest table: the stale pool is wiped in the
// same transaction as the status CAS, so a concurrent assignment either
// commits before this (and the CAS loses) or finds an empty pool after.
func (s *Store) Requalify(ctx context.Context, id types.ID, from Status, version int) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE requests
		SET status = 'published_for_matching',
		    status_version = status_version + 1,
		    transporter_id = NULL,
		    published_for_matching_at = NOW()
		WHERE id = $1 AND status = $2 AND status_version = $3`,
		string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM interest_signals WHERE request_id = $1`,
		string(id),
	); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) SetCoordination(ctx context.Context, id types.ID, status *CoordinationStatus, coordinatorID *types.ID) (bool, error) {
	var st *string
	if status != nil {
		v := string(*status)
		st = &v
	}
	var coord *string
	if coordinatorID != nil {
		v := string(*coordinatorID)
		coord = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE requests
		SET coordination_status = COALESCE($1, coordination_status),
		    coordinator_id = COALESCE($2, coordinator_id),
		    coordination_updated_at = NOW()
		WHERE id = $3`,
		st, coord, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetVisibility(ctx context.Context, id types.ID, hidden bool) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE requests SET hidden = $1 WHERE id = $2`, hidden, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AddNote(ctx context.Context, n *Note) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO request_notes (request_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4)`,
		string(n.RequestID), string(n.AuthorID), n.Body, n.CreatedAt,
	)
	return err
}

func (s *Store) ListNotes(ctx context.Context, id types.ID) ([]Note, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, request_id, author_id, body, created_at
		FROM request_notes
		WHERE request_id = $1
		ORDER BY created_at`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.RequestID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO request_events (request_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RequestID), string(e.FromStatus), string(e.ToStatus), e.ActorType, actorID, e.CreatedAt,
	)
	return err
}
