package staff

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/licensehub/licensehub/internal/licensing"
	"github.com/licensehub/licensehub/internal/platform/db"
)

// Repository defines persistence operations for employees.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Employee, error)
	FindByID(ctx context.Context, id uuid.UUID) (Employee, error)
	DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	Create(ctx context.Context, e Employee) (Employee, error)
	List(ctx context.Context) ([]Employee, error)
	Count(ctx context.Context) (int, error)
}

const employeeColumns = `id, staff_no, name, email, password_hash, phone, address, is_locked, date_employed, created_at, updated_at, updated_by`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DB
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool db.DB) *PGRepository {
	return &PGRepository{db: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (Employee, error) {
	var (
		e         Employee
		employed  time.Time
		updatedBy *uuid.UUID
	)
	err := row.Scan(&e.ID, &e.StaffNo, &e.Name, &e.Email, &e.PasswordHash, &e.Phone, &e.Address, &e.Locked,
		&employed, &e.CreatedAt, &e.UpdatedAt, &updatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	e.DateEmployed = civil.DateOf(employed)
	if updatedBy != nil {
		e.UpdatedBy = *updatedBy
	}
	return e, nil
}

// FindByEmail fetches an employee by case-folded email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Employee, error) {
	return scanEmployee(r.db.QueryRow(ctx, `SELECT `+employeeColumns+` FROM staff WHERE email = $1`, email))
}

// FindByID fetches an employee by id.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (Employee, error) {
	return scanEmployee(r.db.QueryRow(ctx, `SELECT `+employeeColumns+` FROM staff WHERE id = $1`, id))
}

// DisplayNames resolves ids to names in one round trip. Unknown ids are omitted.
func (r *PGRepository) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, name FROM staff WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// Create inserts the employee.
func (r *PGRepository) Create(ctx context.Context, e Employee) (Employee, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	var updatedBy *uuid.UUID
	if e.UpdatedBy != uuid.Nil {
		updatedBy = &e.UpdatedBy
	}
	_, err := r.db.Exec(ctx, `INSERT INTO staff (`+employeeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.StaffNo, e.Name, e.Email, e.PasswordHash, e.Phone, e.Address, e.Locked,
		e.DateEmployed.In(time.UTC), e.CreatedAt, e.UpdatedAt, updatedBy)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok {
			if strings.Contains(constraint, "email") {
				return Employee{}, &licensing.ConflictError{Field: fieldEmail}
			}
			return Employee{}, &licensing.ConflictError{Field: fieldStaffNo}
		}
		return Employee{}, err
	}
	return e, nil
}

// List returns every employee ordered by staff number.
func (r *PGRepository) List(ctx context.Context) ([]Employee, error) {
	rows, err := r.db.Query(ctx, `SELECT `+employeeColumns+` FROM staff ORDER BY staff_no`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var employees []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return employees, nil
}

// Count returns the number of accounts.
func (r *PGRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM staff`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ Repository = (*PGRepository)(nil)
