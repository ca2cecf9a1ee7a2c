package licensing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/licensehub/licensehub/internal/platform/db"
)

const companyColumns = `id, company_id, email, name, phone, address, deploy_key, active, fingerprints, created_at, created_by, updated_at, updated_by`

// PGRegistry implements Registry on PostgreSQL. The fingerprint roster is
// stored as a JSONB array on the company row.
type PGRegistry struct {
	db db.DB
}

// NewPGRegistry constructs a PostgreSQL registry.
func NewPGRegistry(pool db.DB) *PGRegistry {
	return &PGRegistry{db: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (Company, error) {
	var (
		c   Company
		raw []byte
	)
	err := row.Scan(&c.ID, &c.CompanyID, &c.Email, &c.Name, &c.Phone, &c.Address, &c.DeployKey, &c.Active, &raw,
		&c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.Fingerprints); err != nil {
			return Company{}, fmt.Errorf("licensing: decode fingerprints: %w", err)
		}
	}
	if c.Fingerprints == nil {
		c.Fingerprints = []Fingerprint{}
	}
	return c, nil
}

func (r *PGRegistry) FindByBusinessKey(ctx context.Context, companyID, deployKey string) (Company, error) {
	row := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE company_id = $1 AND deploy_key = $2`, companyID, deployKey)
	return scanCompany(row)
}

func (r *PGRegistry) FindByID(ctx context.Context, id uuid.UUID) (Company, error) {
	row := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	return scanCompany(row)
}

func (r *PGRegistry) Create(ctx context.Context, company Company) (Company, error) {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	fps, err := encodeFingerprints(company.Fingerprints)
	if err != nil {
		return Company{}, err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO companies (`+companyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		company.ID, company.CompanyID, company.Email, company.Name, company.Phone, company.Address, company.DeployKey,
		company.Active, fps, company.CreatedAt, company.CreatedBy, company.UpdatedAt, company.UpdatedBy)
	if err != nil {
		return Company{}, mapWriteError(err)
	}
	return company, nil
}

func (r *PGRegistry) Update(ctx context.Context, id uuid.UUID, patch func(*Company) error) (Company, error) {
	var updated Company
	// The row lock serializes writers; repeatable read would abort the second one with 40001.
	err := db.WithTxOptions(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		current, err := scanCompany(tx.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		next := current.clone()
		if err := patch(&next); err != nil {
			return err
		}
		next.ID = id
		fps, err := encodeFingerprints(next.Fingerprints)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE companies SET company_id = $2, email = $3, name = $4, phone = $5, address = $6, deploy_key = $7, active = $8, fingerprints = $9, updated_at = $10, updated_by = $11 WHERE id = $1`,
			id, next.CompanyID, next.Email, next.Name, next.Phone, next.Address, next.DeployKey, next.Active, fps, next.UpdatedAt, next.UpdatedBy)
		if err != nil {
			return mapWriteError(err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return Company{}, err
	}
	return updated, nil
}

func (r *PGRegistry) List(ctx context.Context) ([]Company, error) {
	rows, err := r.db.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func encodeFingerprints(fps []Fingerprint) ([]byte, error) {
	if fps == nil {
		fps = []Fingerprint{}
	}
	raw, err := json.Marshal(fps)
	if err != nil {
		return nil, fmt.Errorf("licensing: encode fingerprints: %w", err)
	}
	return raw, nil
}

func mapWriteError(err error) error {
	constraint, ok := db.UniqueViolation(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(constraint, "email"):
		return &ConflictError{Field: fieldEmail}
	default:
		return &ConflictError{Field: fieldCompanyID}
	}
}

var _ Registry = (*PGRegistry)(nil)
