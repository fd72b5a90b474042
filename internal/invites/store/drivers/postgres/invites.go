package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/realminvite/internal/invites/domain"
	"github.com/aussiebroadwan/realminvite/internal/invites/store"
)

const inviteColumns = `id, realm, token_hash, salt, email, created_by, created_at, expires_at, max_uses, uses, revoked, roles`

// selectColumns reads roles back as text so scanning does not depend on how
// the driver surfaces jsonb.
const selectColumns = `id, realm, token_hash, salt, email, created_by, created_at, expires_at, max_uses, uses, revoked, roles::text`

type invitesRepo struct {
	db dbtx
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvite(row scanner) (domain.Invite, error) {
	var (
		inv   domain.Invite
		roles string
	)
	err := row.Scan(
		&inv.ID, &inv.Realm, &inv.TokenHash, &inv.Salt, &inv.Email, &inv.CreatedBy,
		&inv.CreatedAt, &inv.ExpiresAt, &inv.MaxUses, &inv.Uses, &inv.Revoked, &roles,
	)
	if err != nil {
		return domain.Invite{}, err
	}

	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	if inv.Roles, err = store.DecodeRoles(roles); err != nil {
		return domain.Invite{}, err
	}
	return inv, nil
}

func (r *invitesRepo) CreateInvite(ctx context.Context, inv domain.Invite) error {
	roles, err := store.EncodeRoles(inv.Roles)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO invites (`+inviteColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)`,
		inv.ID, inv.Realm, inv.TokenHash, inv.Salt, inv.Email, inv.CreatedBy,
		inv.CreatedAt, inv.ExpiresAt, inv.MaxUses, inv.Uses, inv.Revoked, roles,
	)
	return mapUniqueViolation(err)
}

func (r *invitesRepo) GetInviteByID(ctx context.Context, id string) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM invites WHERE id = $1`, id)
	inv, err := scanInvite(row)
	if err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitesRepo) ListInvites(ctx context.Context) ([]domain.Invite, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM invites ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invitesRepo) HasActiveInvite(ctx context.Context, realm, email string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM invites
			WHERE realm = $1 AND email = $2 AND NOT revoked AND expires_at > $3 AND uses < max_uses
		)`,
		realm, email, now,
	).Scan(&exists)
	return exists, err
}

func (r *invitesRepo) GetActiveInviteByTokenHash(ctx context.Context, realm, hash string, now time.Time) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM invites
		 WHERE realm = $1 AND token_hash = $2 AND NOT revoked AND expires_at > $3 AND uses < max_uses`,
		realm, hash, now,
	)
	inv, err := scanInvite(row)
	if err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return inv, nil
}

// GetActiveInviteByIDForUpdate locks the row. A transaction that waited on the
// lock re-checks the predicate against the committed row, so the loser of a
// race on the last use sees no rows.
func (r *invitesRepo) GetActiveInviteByIDForUpdate(ctx context.Context, id string, now time.Time) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM invites
		 WHERE id = $1 AND NOT revoked AND expires_at > $2 AND uses < max_uses
		 FOR UPDATE`,
		id, now,
	)
	inv, err := scanInvite(row)
	if err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitesRepo) IncrementInviteUses(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE invites SET uses = uses + 1 WHERE id = $1 AND uses < max_uses`, id)
}

func (r *invitesRepo) RevokeInvite(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE invites SET revoked = TRUE WHERE id = $1`, id)
}

func (r *invitesRepo) RevokeExpiredInvites(ctx context.Context, realm, email string, now time.Time) (int64, error) {
	return r.execCount(ctx,
		`UPDATE invites SET revoked = TRUE WHERE realm = $1 AND email = $2 AND NOT revoked AND expires_at <= $3`,
		realm, email, now,
	)
}

func (r *invitesRepo) RevokeOverusedInvites(ctx context.Context, realm, email string) (int64, error) {
	return r.execCount(ctx,
		`UPDATE invites SET revoked = TRUE WHERE realm = $1 AND email = $2 AND NOT revoked AND uses >= max_uses`,
		realm, email,
	)
}

func (r *invitesRepo) DeleteInvite(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM invites WHERE id = $1`, id)
}

func (r *invitesRepo) DeleteInvitesExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.execCount(ctx, `DELETE FROM invites WHERE expires_at < $1`, cutoff)
}

func (r *invitesRepo) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *invitesRepo) execOne(ctx context.Context, query string, args ...any) error {
	n, err := r.execCount(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
