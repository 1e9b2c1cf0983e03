package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `a.id, a.action, a.resource_type, a.resource_id, a.user_id,
	COALESCE(u.email, ''), COALESCE(u.name, ''),
	a.old_values, a.new_values, a.metadata, a.created_at`

type Repository struct {
	DB *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) Log(ctx context.Context, e Entry) error {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO audit_logs (id, action, resource_type, resource_id, user_id, old_values, new_values, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.NewString(), string(e.Action), e.ResourceType, nullUUID(e.ResourceID), e.UserID,
		nullMap(e.OldValues), nullMap(e.NewValues), e.Metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ForUser returns the most recent records whose actor is userID.
func (r *Repository) ForUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+recordColumns+`
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.user_id=$1
		ORDER BY a.created_at DESC
		LIMIT $2
	`, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repository) Search(ctx context.Context, f Filter) ([]Record, int, error) {
	conds := []string{"TRUE"}
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Action != "" {
		conds = append(conds, "a.action ILIKE "+next("%"+f.Action+"%"))
	}
	if f.ResourceType != "" {
		conds = append(conds, "a.resource_type="+next(f.ResourceType))
	}
	if f.UserID != "" {
		conds = append(conds, "a.user_id="+next(f.UserID))
	}
	if f.Since != nil {
		conds = append(conds, "a.created_at >= "+next(*f.Since))
	}
	if f.Until != nil {
		conds = append(conds, "a.created_at <= "+next(*f.Until))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs a WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))
	rows, err := r.DB.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE %s
		ORDER BY a.created_at DESC
		LIMIT $%d OFFSET $%d
	`, recordColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	records, err := collect(rows)
	return records, total, err
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ActionsCount: []ActionCount{}}
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&stats.TotalLogs); err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT action, COUNT(*) AS count
		FROM audit_logs
		GROUP BY action
		ORDER BY count DESC, action
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var ac ActionCount
		if err := rows.Scan(&ac.Action, &ac.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ActionsCount = append(stats.ActionsCount, ac)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := r.DB.Query(ctx, `
		SELECT `+recordColumns+`
		FROM audit_logs a
		JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	if stats.RecentActivity, err = collect(recent); err != nil {
		return nil, err
	}
	return stats, nil
}

func collect(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		var (
			rec        Record
			resourceID sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Action,
			&rec.ResourceType,
			&resourceID,
			&rec.UserID,
			&rec.UserEmail,
			&rec.UserName,
			&rec.OldValues,
			&rec.NewValues,
			&rec.Metadata,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if resourceID.Valid {
			id := resourceID.String
			rec.ResourceID = &id
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullUUID(s string) any {
	if _, err := uuid.Parse(s); err != nil {
		return nil
	}
	return s
}

func nullMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}
