package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
)

// FamilyStore is the authoritative store of family groups. The whole
// aggregate (members and invitations included) reads and writes as one
// record; Update is a compare-and-set on (id, last_modified) so mutations
// to a single group serialize.
type FamilyStore interface {
	Create(ctx context.Context, group *models.FamilyGroup) error
	FindByID(ctx context.Context, id string) (*models.FamilyGroup, error)
	FindByUser(ctx context.Context, userID string) ([]*models.FamilyGroup, error)
	FindByInvitationToken(ctx context.Context, token string) (*models.FamilyGroup, error)
	FindWithPendingInvitationsFor(ctx context.Context, email string) ([]*models.FamilyGroup, error)
	FindWithOverduePendingInvitations(ctx context.Context, now time.Time) ([]*models.FamilyGroup, error)
	Update(ctx context.Context, group *models.FamilyGroup, expectedLastModified time.Time) error
	// Save writes the group unconditionally. Used by degraded-mode
	// reconciliation, never by request handling.
	Save(ctx context.Context, group *models.FamilyGroup) error
}

type pgFamilyStore struct {
	pool *pgxpool.Pool
}

func NewFamilyStore(pool *pgxpool.Pool) FamilyStore {
	return &pgFamilyStore{pool: pool}
}

const familyColumns = `id, name, description, created_by, created_at, last_modified, status, settings, members, invitations`

func scanFamilyGroup(row pgx.Row) (*models.FamilyGroup, error) {
	g := &models.FamilyGroup{}
	var settings, members, invitations []byte
	err := row.Scan(
		&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.CreatedAt,
		&g.LastModified, &g.Status, &settings, &members, &invitations,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &g.Settings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(members, &g.Members); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(invitations, &g.Invitations); err != nil {
		return nil, err
	}
	return g, nil
}

func familyJSON(g *models.FamilyGroup) (settings, members, invitations []byte, err error) {
	if settings, err = json.Marshal(g.Settings); err != nil {
		return
	}
	if members, err = json.Marshal(g.Members); err != nil {
		return
	}
	invitations, err = json.Marshal(g.Invitations)
	return
}

func (r *pgFamilyStore) Create(ctx context.Context, group *models.FamilyGroup) error {
	settings, members, invitations, err := familyJSON(group)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO family_groups (id, name, description, created_by, created_at, last_modified, status, settings, members, invitations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		group.ID, group.Name, group.Description, group.CreatedBy, group.CreatedAt,
		group.LastModified, group.Status, settings, members, invitations,
	)
	return err
}

func (r *pgFamilyStore) FindByID(ctx context.Context, id string) (*models.FamilyGroup, error) {
	query := `SELECT ` + familyColumns + ` FROM family_groups WHERE id = $1`
	return scanFamilyGroup(r.pool.QueryRow(ctx, query, id))
}

func (r *pgFamilyStore) FindByUser(ctx context.Context, userID string) ([]*models.FamilyGroup, error) {
	query := `
		SELECT ` + familyColumns + `
		FROM family_groups
		WHERE created_by = $1
		   OR EXISTS (
			SELECT 1 FROM jsonb_array_elements(members) m
			WHERE m->>'user_id' = $1 AND m->>'status' = 'active'
		   )
		ORDER BY last_modified DESC
	`
	return r.queryGroups(ctx, query, userID)
}

func (r *pgFamilyStore) FindByInvitationToken(ctx context.Context, token string) (*models.FamilyGroup, error) {
	query := `
		SELECT ` + familyColumns + `
		FROM family_groups
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(invitations) i
			WHERE i->>'invitation_token' = $1
		)
		LIMIT 1
	`
	return scanFamilyGroup(r.pool.QueryRow(ctx, query, token))
}

func (r *pgFamilyStore) FindWithPendingInvitationsFor(ctx context.Context, email string) ([]*models.FamilyGroup, error) {
	query := `
		SELECT ` + familyColumns + `
		FROM family_groups
		WHERE status = 'active'
		  AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(invitations) i
			WHERE i->>'email' = $1 AND i->>'status' = 'pending'
		  )
		ORDER BY last_modified DESC
	`
	return r.queryGroups(ctx, query, email)
}

func (r *pgFamilyStore) FindWithOverduePendingInvitations(ctx context.Context, now time.Time) ([]*models.FamilyGroup, error) {
	query := `
		SELECT ` + familyColumns + `
		FROM family_groups
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(invitations) i
			WHERE i->>'status' = 'pending' AND (i->>'expires_at')::timestamptz < $1
		)
	`
	return r.queryGroups(ctx, query, now)
}

func (r *pgFamilyStore) queryGroups(ctx context.Context, query string, args ...interface{}) ([]*models.FamilyGroup, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.FamilyGroup
	for rows.Next() {
		g, err := scanFamilyGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *pgFamilyStore) Update(ctx context.Context, group *models.FamilyGroup, expectedLastModified time.Time) error {
	settings, members, invitations, err := familyJSON(group)
	if err != nil {
		return err
	}
	query := `
		UPDATE family_groups
		SET name = $3, description = $4, last_modified = $5, status = $6,
		    settings = $7, members = $8, invitations = $9
		WHERE id = $1 AND last_modified = $2
	`
	result, err := r.pool.Exec(ctx, query,
		group.ID, expectedLastModified,
		group.Name, group.Description, group.LastModified, group.Status,
		settings, members, invitations,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *pgFamilyStore) Save(ctx context.Context, group *models.FamilyGroup) error {
	settings, members, invitations, err := familyJSON(group)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO family_groups (id, name, description, created_by, created_at, last_modified, status, settings, members, invitations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
		    last_modified = EXCLUDED.last_modified, status = EXCLUDED.status,
		    settings = EXCLUDED.settings, members = EXCLUDED.members,
		    invitations = EXCLUDED.invitations
	`
	_, err = r.pool.Exec(ctx, query,
		group.ID, group.Name, group.Description, group.CreatedBy, group.CreatedAt,
		group.LastModified, group.Status, settings, members, invitations,
	)
	return err
}
