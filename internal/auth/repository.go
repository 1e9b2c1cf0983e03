package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, role, metadata, is_verified,
	verification_token, verification_token_expires, reset_token, reset_token_expires,
	phone, avatar_url, timezone, locale, preferences, last_login_at, last_login_ip,
	created_at, updated_at`

const notDeleted = `COALESCE((metadata->>'deleted')::boolean, false) = false`

const uniqueViolation = "23505"

// UserRepository is the postgres implementation of UserStore.
type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

var _ UserStore = (*UserRepository)(nil)

func (r *UserRepository) InsertUser(ctx context.Context, u NewUser) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		uuid.NewString(), u.Email, u.PasswordHash, u.Name, string(u.Role), u.IsVerified)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	return optionalUser(scanUser(row))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	return optionalUser(scanUser(row))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE users
		SET password_hash=$1, reset_token=NULL, reset_token_expires=NULL, updated_at=NOW()
		WHERE id=$2 AND `+notDeleted+`
		RETURNING `+userColumns, passwordHash, id)
	return optionalUser(scanUser(row))
}

func (r *UserRepository) SetVerificationToken(ctx context.Context, id, digest string, expires time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE users
		SET verification_token=$1, verification_token_expires=$2, updated_at=NOW()
		WHERE id=$3 AND is_verified=false AND `+notDeleted,
		digest, expires, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, digest string, now time.Time) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE users
		SET is_verified=true, verification_token=NULL, verification_token_expires=NULL, updated_at=$2
		WHERE verification_token=$1 AND verification_token_expires > $2
		RETURNING `+userColumns, digest, now)
	return optionalUser(scanUser(row))
}

func (r *UserRepository) SetResetToken(ctx context.Context, id, digest string, expires time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE users
		SET reset_token=$1, reset_token_expires=$2, updated_at=NOW()
		WHERE id=$3 AND `+notDeleted,
		digest, expires, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) FindByResetToken(ctx context.Context, digest string, now time.Time) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token=$1 AND reset_token_expires > $2`, digest, now)
	return optionalUser(scanUser(row))
}

func (r *UserRepository) ResetPassword(ctx context.Context, digest, passwordHash string, now time.Time) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE users
		SET password_hash=$1, reset_token=NULL, reset_token_expires=NULL, updated_at=$3
		WHERE reset_token=$2 AND reset_token_expires > $3
		RETURNING `+userColumns, passwordHash, digest, now)
	return optionalUser(scanUser(row))
}

func (r *UserRepository) SoftDelete(ctx context.Context, id string, at time.Time) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE users
		SET email='`+deletedEmailPrefix+`' || $2::text || '_' || email,
		    metadata=metadata || jsonb_build_object('deleted', true, 'deleted_at', $3::timestamptz),
		    verification_token=NULL, verification_token_expires=NULL,
		    reset_token=NULL, reset_token_expires=NULL,
		    updated_at=$3
		WHERE id=$1 AND `+notDeleted+`
		RETURNING `+userColumns, id, strconv.FormatInt(at.UnixMilli(), 10), at)
	return optionalUser(scanUser(row))
}

// UpdateProfile applies the non-nil fields of c. Preferences are merged into
// the stored object.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, c ProfileChanges) (*User, error) {
	sets := []string{}
	args := []any{}
	idx := 1

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf(`%s=$%d`, column, idx))
		args = append(args, value)
		idx++
	}

	if c.Name != nil {
		add("name", *c.Name)
	}
	if c.Phone != nil {
		add("phone", *c.Phone)
	}
	if c.Timezone != nil {
		add("timezone", *c.Timezone)
	}
	if c.Locale != nil {
		add("locale", *c.Locale)
	}
	if c.Role != nil {
		add("role", string(*c.Role))
	}
	if c.Preferences != nil {
		sets = append(sets, fmt.Sprintf(`preferences=preferences || $%d::jsonb`, idx))
		args = append(args, c.Preferences)
		idx++
	}

	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE users
		SET %s, updated_at=NOW()
		WHERE id=$%d AND %s
		RETURNING %s
	`, strings.Join(sets, ", "), idx, notDeleted, userColumns)

	return optionalUser(scanUser(r.DB.QueryRow(ctx, query, args...)))
}

func (r *UserRepository) RecordLogin(ctx context.Context, id, ip string, at time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users SET last_login_at=$1, last_login_ip=$2 WHERE id=$3
	`, at, nullIfEmpty(ip), id)
	return err
}

// SetAvatar stores url (nil clears it) and returns the previous value.
func (r *UserRepository) SetAvatar(ctx context.Context, id string, url *string) (*User, *string, error) {
	var previous sql.NullString
	row := r.DB.QueryRow(ctx, `
		WITH prev AS (SELECT avatar_url FROM users WHERE id=$2 FOR UPDATE)
		UPDATE users
		SET avatar_url=$1, updated_at=NOW()
		FROM prev
		WHERE users.id=$2 AND `+notDeleted+`
		RETURNING prev.avatar_url, `+qualified("users", userColumns), url, id)

	user, err := scanUserWith(row, &previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return user, nullStringPtr(previous), nil
}

func (r *UserRepository) ListUsers(ctx context.Context, f UserFilter) ([]User, int, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	where, args := userFilterClause(f)

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset())
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, userColumns, where, len(args)-1, len(args))

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// Stats counts live users; recent means created at or after since.
func (r *UserRepository) Stats(ctx context.Context, since time.Time) (*UserStats, error) {
	stats := &UserStats{RoleDistribution: map[Role]int{}}
	if err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_verified),
		       COUNT(*) FILTER (WHERE created_at >= $1)
		FROM users
		WHERE `+notDeleted, since).Scan(&stats.Total, &stats.Verified, &stats.Recent); err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `SELECT role, COUNT(*) FROM users WHERE `+notDeleted+` GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			role  string
			count int
		)
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		stats.RoleDistribution[Role(role)] = count
	}
	return stats, rows.Err()
}

func userFilterClause(f UserFilter) (string, []any) {
	conds := []string{notDeleted}
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Role != nil {
		conds = append(conds, "role="+next(string(*f.Role)))
	}
	if f.IsVerified != nil {
		conds = append(conds, "is_verified="+next(*f.IsVerified))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := next("%" + s + "%")
		conds = append(conds, fmt.Sprintf("(email ILIKE %s OR name ILIKE %s)", p, p))
	}
	if f.Since != nil {
		conds = append(conds, "created_at >= "+next(*f.Since))
	}
	if f.Until != nil {
		conds = append(conds, "created_at <= "+next(*f.Until))
	}
	return strings.Join(conds, " AND "), args
}

func optionalUser(u *User, err error) (*User, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func scanUser(row pgx.Row) (*User, error) {
	return scanUserWith(row)
}

// scanUserWith scans extra leading columns into lead before the user columns.
func scanUserWith(row pgx.Row, lead ...any) (*User, error) {
	var (
		u                   User
		role                string
		verificationToken   sql.NullString
		verificationExpires sql.NullTime
		resetToken          sql.NullString
		resetExpires        sql.NullTime
		phone               sql.NullString
		avatarURL           sql.NullString
		lastLoginAt         sql.NullTime
		lastLoginIP         sql.NullString
	)

	dest := append(lead,
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&role,
		&u.Metadata,
		&u.IsVerified,
		&verificationToken,
		&verificationExpires,
		&resetToken,
		&resetExpires,
		&phone,
		&avatarURL,
		&u.Timezone,
		&u.Locale,
		&u.Preferences,
		&lastLoginAt,
		&lastLoginIP,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	u.Role = Role(role)
	u.VerificationToken = nullStringPtr(verificationToken)
	u.VerificationTokenExpires = nullTimePtr(verificationExpires)
	u.ResetToken = nullStringPtr(resetToken)
	u.ResetTokenExpires = nullTimePtr(resetExpires)
	u.Phone = nullStringPtr(phone)
	u.AvatarURL = nullStringPtr(avatarURL)
	u.LastLoginAt = nullTimePtr(lastLoginAt)
	u.LastLoginIP = nullStringPtr(lastLoginIP)
	if u.Metadata == nil {
		u.Metadata = map[string]any{}
	}
	if u.Preferences == nil {
		u.Preferences = map[string]any{}
	}
	return &u, nil
}

func qualified(table, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = table + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
