package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"quantifier/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// ErrNotFound is returned when a project, category or quantity does not exist.
var ErrNotFound = errors.New("not found")

// Export states of a quantity row, driven by the export worker.
const (
	ExportPending = "pending"
	ExportSynced  = "synced"
	ExportError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateProject inserts a project together with its sentinel root category in
// one transaction; a project never exists without its root.
func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Project{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO projects (name, description, interval, interval_quantity, goal_mode, quantity_name, quick_add_quantities, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, string(p.Interval), nullableInt(p.IntervalQuantity),
		p.GoalMode, p.QuantityName, p.QuickAddQuantities, p.SortOrder)
	if err != nil {
		return core.Project{}, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Project{}, fmt.Errorf("project id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO categories (project_id, parent_id, name) VALUES (?, NULL, '')`, id); err != nil {
		return core.Project{}, fmt.Errorf("insert root category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Project{}, fmt.Errorf("commit project: %w", err)
	}

	p.ID = id
	slog.InfoContext(ctx, "Project created", "id", id, "name", p.Name, "interval", p.Interval)
	return p, nil
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id int64) (core.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, interval, interval_quantity, goal_mode, quantity_name, quick_add_quantities, sort_order
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, interval, interval_quantity, goal_mode, quantity_name, quick_add_quantities, sort_order
		FROM projects ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []core.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p core.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, description = ?, interval = ?, interval_quantity = ?, goal_mode = ?,
		    quantity_name = ?, quick_add_quantities = ?, sort_order = ?
		WHERE id = ?`,
		p.Name, p.Description, string(p.Interval), nullableInt(p.IntervalQuantity),
		p.GoalMode, p.QuantityName, p.QuickAddQuantities, p.SortOrder, p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(res)
}

// ListCategories returns every category of a project, parents before their
// children within the same parent ordering the tree builder expects.
func (r *SQLiteRepository) ListCategories(ctx context.Context, projectID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, COALESCE(parent_id, 0), name, description, expected_quantity, sort_order
		FROM categories
		WHERE project_id = ?
		ORDER BY (parent_id IS NOT NULL), parent_id, sort_order, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, COALESCE(parent_id, 0), name, description, expected_quantity, sort_order
		FROM categories WHERE id = ?`, id)
	return scanCategory(row)
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (project_id, parent_id, name, description, expected_quantity, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ProjectID, c.ParentID, c.Name, c.Description, nullableInt(c.ExpectedQuantity), c.SortOrder)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET parent_id = ?, name = ?, description = ?, expected_quantity = ?, sort_order = ?
		WHERE id = ?`,
		c.ParentID, c.Name, c.Description, nullableInt(c.ExpectedQuantity), c.SortOrder, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND parent_id IS NOT NULL`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) CreateQuantity(ctx context.Context, q core.Quantity) (core.Quantity, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO quantities (category_id, name, description, value, recorded_on)
		VALUES (?, ?, ?, ?, ?)`,
		q.CategoryID, q.Name, q.Description, q.Value, q.RecordedOn.Format(dateLayout))
	if err != nil {
		return core.Quantity{}, fmt.Errorf("insert quantity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Quantity{}, fmt.Errorf("quantity id: %w", err)
	}
	q.ID = id
	return q, nil
}

func (r *SQLiteRepository) GetQuantity(ctx context.Context, id int64) (core.Quantity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, category_id, name, description, value, recorded_on
		FROM quantities WHERE id = ?`, id)
	return scanQuantity(row)
}

func (r *SQLiteRepository) UpdateQuantity(ctx context.Context, q core.Quantity) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quantities
		SET category_id = ?, name = ?, description = ?, value = ?, recorded_on = ?, export_state = ?
		WHERE id = ?`,
		q.CategoryID, q.Name, q.Description, q.Value, q.RecordedOn.Format(dateLayout), ExportPending, q.ID)
	if err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteQuantity(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quantities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete quantity: %w", err)
	}
	return requireRow(res)
}

// ListQuantities returns a project's quantities, newest first, optionally
// restricted to one category and/or an inclusive date range.
func (r *SQLiteRepository) ListQuantities(ctx context.Context, projectID, categoryID int64, dr *core.DateRange, limit int) ([]core.Quantity, error) {
	query := `
		SELECT q.id, q.category_id, q.name, q.description, q.value, q.recorded_on
		FROM quantities q
		JOIN categories c ON c.id = q.category_id
		WHERE c.project_id = ?`
	args := []any{projectID}
	if categoryID != 0 {
		query += ` AND q.category_id = ?`
		args = append(args, categoryID)
	}
	if dr != nil {
		query += ` AND q.recorded_on >= ? AND q.recorded_on <= ?`
		args = append(args, dr.Start.Format(dateLayout), dr.End.Format(dateLayout))
	}
	query += ` ORDER BY q.recorded_on DESC, q.id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quantities: %w", err)
	}
	defer rows.Close()

	var quantities []core.Quantity
	for rows.Next() {
		q, err := scanQuantity(rows)
		if err != nil {
			return nil, err
		}
		quantities = append(quantities, q)
	}
	return quantities, rows.Err()
}

// SumQuantities returns the direct sum of quantity values per category for
// every category of the project, zero included, optionally filtered to an
// inclusive date range. Descendants are not rolled up here; that is the
// engine's job.
func (r *SQLiteRepository) SumQuantities(ctx context.Context, projectID int64, dr *core.DateRange) (map[int64]int64, error) {
	query := `
		SELECT c.id, COALESCE(SUM(q.value), 0)
		FROM categories c
		LEFT JOIN quantities q ON q.category_id = c.id`
	args := []any{}
	if dr != nil {
		query += ` AND q.recorded_on >= ? AND q.recorded_on <= ?`
		args = append(args, dr.Start.Format(dateLayout), dr.End.Format(dateLayout))
	}
	query += ` WHERE c.project_id = ? GROUP BY c.id`
	args = append(args, projectID)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sum quantities: %w", err)
	}
	defer rows.Close()

	sums := make(map[int64]int64)
	for rows.Next() {
		var id, sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("scan sum: %w", err)
		}
		sums[id] = sum
	}
	return sums, rows.Err()
}

// GetPendingExportQuantities returns quantities waiting for spreadsheet
// export, oldest first.
func (r *SQLiteRepository) GetPendingExportQuantities(ctx context.Context, limit int) ([]core.Quantity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_id, name, description, value, recorded_on
		FROM quantities
		WHERE export_state = ? AND export_attempts < 5
		ORDER BY id
		LIMIT ?`, ExportPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending export quantities: %w", err)
	}
	defer rows.Close()

	var quantities []core.Quantity
	for rows.Next() {
		q, err := scanQuantity(rows)
		if err != nil {
			return nil, err
		}
		quantities = append(quantities, q)
	}
	return quantities, rows.Err()
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE quantities SET export_state = ? WHERE id = ?`, ExportSynced, id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE quantities
		SET export_state = CASE WHEN export_attempts >= 4 THEN ? ELSE export_state END,
		    export_attempts = export_attempts + 1
		WHERE id = ?`, ExportError, id)
	if err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (core.Project, error) {
	var (
		p        core.Project
		interval string
		quantity sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &interval, &quantity,
		&p.GoalMode, &p.QuantityName, &p.QuickAddQuantities, &p.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, ErrNotFound
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("scan project: %w", err)
	}
	p.Interval = core.Interval(interval)
	if quantity.Valid {
		p.IntervalQuantity = &quantity.Int64
	}
	return p, nil
}

func scanCategory(row scanner) (core.Category, error) {
	var (
		c        core.Category
		expected sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.ProjectID, &c.ParentID, &c.Name, &c.Description, &expected, &c.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	if expected.Valid {
		c.ExpectedQuantity = &expected.Int64
	}
	return c, nil
}

func scanQuantity(row scanner) (core.Quantity, error) {
	var (
		q        core.Quantity
		recorded string
	)
	err := row.Scan(&q.ID, &q.CategoryID, &q.Name, &q.Description, &q.Value, &recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Quantity{}, ErrNotFound
	}
	if err != nil {
		return core.Quantity{}, fmt.Errorf("scan quantity: %w", err)
	}
	day, err := time.Parse(dateLayout, recorded)
	if err != nil {
		// Dates written by older clients may carry a time part.
		day, err = time.Parse(time.RFC3339, recorded)
		if err != nil {
			return core.Quantity{}, fmt.Errorf("parse recorded_on %q: %w", recorded, err)
		}
	}
	q.RecordedOn = core.Date{Time: core.DateOf(day)}
	return q, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
