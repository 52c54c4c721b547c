package repo

import (
	"context"
	"database/sql"

	"standline/internal/domain"
)

// Repo is the data access layer over the workspace database. Methods with a
// Tx suffix run inside a caller-owned transaction.
type Repo struct {
	DB *sql.DB
}

// ErrNotFound aliases the domain sentinel so call sites can keep matching on
// repo.ErrNotFound.
var ErrNotFound = domain.ErrNotFound

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- projects ---

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(id,name,owner_id,status,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Name, p.OwnerID, p.Status, p.CreatedAt)
	if err != nil {
		return err
	}
	return r.replaceMembers(ctx, p.ID, p.MemberIDs)
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,owner_id,status,created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.OwnerID, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.MemberIDs, err = r.ListProjectMembers(ctx, id)
	return p, err
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,owner_id,status,created_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) ListProjectMembers(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT actor_id FROM project_members WHERE project_id=? ORDER BY actor_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r Repo) replaceMembers(ctx context.Context, projectID string, members []string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM project_members WHERE project_id=?`, projectID); err != nil {
		return err
	}
	for _, m := range members {
		if _, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO project_members(project_id,actor_id) VALUES (?,?)`, projectID, m); err != nil {
			return err
		}
	}
	return nil
}

// --- standards ---

func scanStandard(scan func(dest ...any) error) (domain.Standard, error) {
	var s domain.Standard
	var desc sql.NullString
	var active int
	err := scan(&s.ID, &s.Name, &desc, &s.Category, &s.Level, &s.Weight, &s.Version, &active, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Description = desc.String
	s.IsActive = active == 1
	return s, nil
}

const standardCols = `id,name,description,category,level,weight,version,is_active,created_at,updated_at`

func (r Repo) InsertStandard(ctx context.Context, s domain.Standard) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO standards(`+standardCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.Name, nullableString(s.Description), s.Category, s.Level, s.Weight, s.Version, boolToInt(s.IsActive), s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetStandard(ctx context.Context, id string) (domain.Standard, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+standardCols+` FROM standards WHERE id=?`, id)
	return scanStandard(row.Scan)
}

func (r Repo) ListStandards(ctx context.Context, activeOnly bool) ([]domain.Standard, error) {
	q := `SELECT ` + standardCols + ` FROM standards`
	if activeOnly {
		q += ` WHERE is_active=1`
	}
	q += ` ORDER BY category, level, name`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Standard
	for rows.Next() {
		s, err := scanStandard(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpdateStandard replaces the mutable fields and bumps version.
func (r Repo) UpdateStandard(ctx context.Context, s domain.Standard) (domain.Standard, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE standards SET name=?, description=?, category=?, level=?, weight=?, is_active=?, version=version+1, updated_at=? WHERE id=?`,
		s.Name, nullableString(s.Description), s.Category, s.Level, s.Weight, boolToInt(s.IsActive), s.UpdatedAt, s.ID)
	if err != nil {
		return domain.Standard{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Standard{}, ErrNotFound
	}
	return r.GetStandard(ctx, s.ID)
}

// --- criteria ---

func scanCriterion(scan func(dest ...any) error) (domain.Criterion, error) {
	var c domain.Criterion
	var desc sql.NullString
	var mandatory int
	err := scan(&c.ID, &c.StandardID, &c.Name, &desc, &c.EvidenceType, &c.ScoringMethod, &c.MaxScore, &mandatory, &c.Order, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Description = desc.String
	c.IsMandatory = mandatory == 1
	return c, nil
}

const criterionCols = `id,standard_id,name,description,evidence_type,scoring_method,max_score,is_mandatory,ord,created_at`

func (r Repo) InsertCriterion(ctx context.Context, c domain.Criterion) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO criteria(`+criterionCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.StandardID, c.Name, nullableString(c.Description), c.EvidenceType, c.ScoringMethod, c.MaxScore, boolToInt(c.IsMandatory), c.Order, c.CreatedAt)
	return err
}

func (r Repo) GetCriterion(ctx context.Context, id string) (domain.Criterion, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+criterionCols+` FROM criteria WHERE id=?`, id)
	return scanCriterion(row.Scan)
}

func (r Repo) ListCriteria(ctx context.Context, standardID string) ([]domain.Criterion, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+criterionCols+` FROM criteria WHERE standard_id=? ORDER BY ord`, standardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Criterion
	for rows.Next() {
		c, err := scanCriterion(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
