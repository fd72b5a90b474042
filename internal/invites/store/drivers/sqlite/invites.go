package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/realminvite/internal/invites/domain"
	"github.com/aussiebroadwan/realminvite/internal/invites/store"
)

const inviteColumns = `id, realm, token_hash, salt, email, created_by, created_at, expires_at, max_uses, uses, revoked, roles`

// activePredicate expects the comparison time (unix ms) as its only argument
// after whatever precedes it in the query.
const activePredicate = `revoked = 0 AND expires_at > ? AND uses < max_uses`

type invitesRepo struct {
	db dbtx
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvite(row scanner) (domain.Invite, error) {
	var (
		inv                  domain.Invite
		createdAt, expiresAt int64
		revoked              int
		roles                string
	)
	err := row.Scan(
		&inv.ID, &inv.Realm, &inv.TokenHash, &inv.Salt, &inv.Email, &inv.CreatedBy,
		&createdAt, &expiresAt, &inv.MaxUses, &inv.Uses, &revoked, &roles,
	)
	if err != nil {
		return domain.Invite{}, err
	}

	inv.CreatedAt = fromMillis(createdAt)
	inv.ExpiresAt = fromMillis(expiresAt)
	inv.Revoked = revoked != 0
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

	revoked := 0
	if inv.Revoked {
		revoked = 1
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO invites (`+inviteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Realm, inv.TokenHash, inv.Salt, inv.Email, inv.CreatedBy,
		toMillis(inv.CreatedAt), toMillis(inv.ExpiresAt), inv.MaxUses, inv.Uses, revoked, roles,
	)
	return mapUniqueViolation(err)
}

func (r *invitesRepo) GetInviteByID(ctx context.Context, id string) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE id = ?`, id)
	inv, err := scanInvite(row)
	if err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitesRepo) ListInvites(ctx context.Context) ([]domain.Invite, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+inviteColumns+` FROM invites ORDER BY created_at DESC, id DESC`)
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
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM invites WHERE realm = ? AND email = ? AND `+activePredicate+`)`,
		realm, email, toMillis(now),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

func (r *invitesRepo) GetActiveInviteByTokenHash(ctx context.Context, realm, hash string, now time.Time) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE realm = ? AND token_hash = ? AND `+activePredicate,
		realm, hash, toMillis(now),
	)
	inv, err := scanInvite(row)
	if err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return inv, nil
}

// GetActiveInviteByIDForUpdate has no row lock clause here: sqlite has none,
// and the single connection pool already serialises transactions.
func (r *invitesRepo) GetActiveInviteByIDForUpdate(ctx context.Context, id string, now time.Time) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE id = ? AND `+activePredicate,
		id, toMillis(now),
	)
	inv, err := scanInvite(row)
	if err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitesRepo) IncrementInviteUses(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE invites SET uses = uses + 1 WHERE id = ? AND uses < max_uses`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *invitesRepo) RevokeInvite(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE invites SET revoked = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *invitesRepo) RevokeExpiredInvites(ctx context.Context, realm, email string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invites SET revoked = 1 WHERE realm = ? AND email = ? AND revoked = 0 AND expires_at <= ?`,
		realm, email, toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *invitesRepo) RevokeOverusedInvites(ctx context.Context, realm, email string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invites SET revoked = 1 WHERE realm = ? AND email = ? AND revoked = 0 AND uses >= max_uses`,
		realm, email,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *invitesRepo) DeleteInvite(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invites WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *invitesRepo) DeleteInvitesExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invites WHERE expires_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
