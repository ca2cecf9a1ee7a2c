package licensing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var companyColumnNames = []string{
	"id", "company_id", "email", "name", "phone", "address", "deploy_key", "active", "fingerprints",
	"created_at", "created_by", "updated_at", "updated_by",
}

func companyRows(t *testing.T, cs ...Company) *pgxmock.Rows {
	t.Helper()
	rows := pgxmock.NewRows(companyColumnNames)
	for _, c := range cs {
		raw, err := json.Marshal(c.Fingerprints)
		require.NoError(t, err)
		rows.AddRow(c.ID, c.CompanyID, c.Email, c.Name, c.Phone, c.Address, c.DeployKey, c.Active, raw,
			c.CreatedAt, c.CreatedBy, c.UpdatedAt, c.UpdatedBy)
	}
	return rows
}

func storedCompany() Company {
	at := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	admin := uuid.New()
	return Company{
		ID:        uuid.New(),
		CompanyID: "acme",
		Email:     "ops@acme.test",
		Name:      "Acme Trading",
		Phone:     "+886-2-1234",
		Address:   "1 Harbour Rd",
		DeployKey: "k-1",
		Active:    true,
		Fingerprints: []Fingerprint{
			{Value: "dev-a", LicenseType: LicenseSubscription, ExpiryDate: date(2024, 12, 31), Status: StatusActive, RegisteredAt: at},
		},
		CreatedAt: at,
		CreatedBy: admin,
		UpdatedAt: at,
		UpdatedBy: admin,
	}
}

func newMockRegistry(t *testing.T) (*PGRegistry, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPGRegistry(mock), mock
}

func TestPGFindByBusinessKey(t *testing.T) {
	reg, mock := newMockRegistry(t)
	want := storedCompany()

	mock.ExpectQuery(`SELECT (.+) FROM companies WHERE company_id = \$1 AND deploy_key = \$2`).
		WithArgs("acme", "k-1").
		WillReturnRows(companyRows(t, want))
	mock.ExpectQuery(`SELECT (.+) FROM companies WHERE company_id = \$1 AND deploy_key = \$2`).
		WithArgs("acme", "wrong").
		WillReturnError(pgx.ErrNoRows)

	got, err := reg.FindByBusinessKey(context.Background(), "acme", "k-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = reg.FindByBusinessKey(context.Background(), "acme", "wrong")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCreateMapsUniqueViolations(t *testing.T) {
	reg, mock := newMockRegistry(t)
	args := make([]any, 13)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}

	mock.ExpectExec(`INSERT INTO companies`).WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "companies_email_key"})
	mock.ExpectExec(`INSERT INTO companies`).WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "companies_company_id_key"})
	mock.ExpectExec(`INSERT INTO companies`).WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	var ce *ConflictError
	_, err := reg.Create(context.Background(), storedCompany())
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "email", ce.Field)

	_, err = reg.Create(context.Background(), storedCompany())
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "companyId", ce.Field)

	fresh := storedCompany()
	fresh.ID = uuid.Nil
	created, err := reg.Create(context.Background(), fresh)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGUpdateLocksRowAndCommits(t *testing.T) {
	reg, mock := newMockRegistry(t)
	current := storedCompany()
	args := make([]any, 11)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT (.+) FROM companies WHERE id = \$1 FOR UPDATE`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(companyRows(t, current))
	mock.ExpectExec(`UPDATE companies SET`).WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	updated, err := reg.Update(context.Background(), current.ID, func(c *Company) error {
		c.Active = false
		return nil
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, current.Fingerprints, updated.Fingerprints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGUpdateRollsBackRejectedPatch(t *testing.T) {
	reg, mock := newMockRegistry(t)
	current := storedCompany()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT (.+) FROM companies WHERE id = \$1 FOR UPDATE`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(companyRows(t, current))
	mock.ExpectRollback()

	_, err := reg.Update(context.Background(), current.ID, func(c *Company) error {
		return invalid("fingerprints[0].expiryDate", "is required for subscription licenses")
	})
	requireValidation(t, err, "fingerprints[0].expiryDate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGUpdateUnknownCompany(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT (.+) FROM companies WHERE id = \$1 FOR UPDATE`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := reg.Update(context.Background(), uuid.New(), func(*Company) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGListOrdersNewestFirst(t *testing.T) {
	reg, mock := newMockRegistry(t)
	newer, older := storedCompany(), storedCompany()
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM companies ORDER BY created_at DESC, id`).
		WillReturnRows(companyRows(t, newer, older))

	list, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
