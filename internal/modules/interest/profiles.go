// README: Transporter profile read model (collaborator boundary).
package interest

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"camionback/internal/modules/request"
	"camionback/internal/types"
)

// ProfileStore reads transporter profile data maintained by the user system.
type ProfileStore struct {
	db *pgxpool.Pool
}

func NewProfileStore(db *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Profile(ctx context.Context, transporterID types.ID) (*TransporterProfile, error) {
	p := TransporterProfile{ID: transporterID}
	err := s.db.QueryRow(ctx, `
		SELECT name, phone, rating, truck_photo_urls
		FROM transporters
		WHERE id = $1`, string(transporterID),
	).Scan(&p.Name, &p.Phone, &p.Rating, &p.TruckPhotoURLs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, request.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
