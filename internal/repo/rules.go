package repo

import (
	"context"
	"database/sql"

	"standline/internal/domain"
)

const ruleCols = `id,name,description,target_entity,condition_json,action_json,is_active,version,created_by,created_at,updated_at`

func scanRule(scan func(dest ...any) error) (domain.Rule, error) {
	var rl domain.Rule
	var desc sql.NullString
	var active int
	err := scan(&rl.ID, &rl.Name, &desc, &rl.TargetEntity, &rl.ConditionJSON, &rl.ActionJSON, &active, &rl.Version, &rl.CreatedBy, &rl.CreatedAt, &rl.UpdatedAt)
	if err == sql.ErrNoRows {
		return rl, ErrNotFound
	}
	if err != nil {
		return rl, err
	}
	rl.Description = desc.String
	rl.IsActive = active == 1
	return rl, nil
}

func (r Repo) InsertRule(ctx context.Context, rl domain.Rule) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO rules(`+ruleCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rl.ID, rl.Name, nullableString(rl.Description), rl.TargetEntity, rl.ConditionJSON, rl.ActionJSON,
		boolToInt(rl.IsActive), rl.Version, rl.CreatedBy, rl.CreatedAt, rl.UpdatedAt)
	return err
}

func (r Repo) GetRule(ctx context.Context, id string) (domain.Rule, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+ruleCols+` FROM rules WHERE id=?`, id)
	return scanRule(row.Scan)
}

func (r Repo) ListRules(ctx context.Context, targetEntity string, activeOnly bool) ([]domain.Rule, error) {
	q := `SELECT ` + ruleCols + ` FROM rules WHERE 1=1`
	var args []any
	if targetEntity != "" {
		q += ` AND target_entity=?`
		args = append(args, targetEntity)
	}
	if activeOnly {
		q += ` AND is_active=1`
	}
	q += ` ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Rule
	for rows.Next() {
		rl, err := scanRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rl)
	}
	return res, rows.Err()
}

// ReplaceRule overwrites every mutable field and bumps the version. Updates
// are full replacements from the caller's perspective.
func (r Repo) ReplaceRule(ctx context.Context, rl domain.Rule) (domain.Rule, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE rules SET name=?, description=?, target_entity=?, condition_json=?, action_json=?, is_active=?, version=version+1, updated_at=? WHERE id=?`,
		rl.Name, nullableString(rl.Description), rl.TargetEntity, rl.ConditionJSON, rl.ActionJSON, boolToInt(rl.IsActive), rl.UpdatedAt, rl.ID)
	if err != nil {
		return domain.Rule{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Rule{}, ErrNotFound
	}
	return r.GetRule(ctx, rl.ID)
}
