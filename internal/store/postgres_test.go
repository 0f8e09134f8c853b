package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal-assistant/internal/common/database"
	apperrors "deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgres(database.NewPostgresFromDB(db), logger.NewTestLogger(t), time.Second), mock
}

var orgRowColumns = []string{"id", "name", "description", "website", "industry", "location", "created_at"}

// ==========================
// Organizations
// ==========================

func TestPostgres_FindOrganizationsByName(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM organizations\s+WHERE strpos\(lower\(name\), lower\(\$1\)\) > 0\s+ORDER BY id\s+LIMIT \$2`).
		WithArgs("acme", 6).
		WillReturnRows(sqlmock.NewRows(orgRowColumns).
			AddRow(1, "Acme Corp", "", "", "Manufacturing", "", now).
			AddRow(4, "Acme East", "", "", "", "Boston", now))

	orgs, err := s.FindOrganizationsByName(context.Background(), "acme", 6)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, int64(1), orgs[0].ID)
	assert.Equal(t, "Manufacturing", orgs[0].Industry)
	assert.Equal(t, "Boston", orgs[1].Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindOrganizationsByName_NoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM organizations`).
		WithArgs("zzz", 6).
		WillReturnRows(sqlmock.NewRows(orgRowColumns))

	orgs, err := s.FindOrganizationsByName(context.Background(), "zzz", 6)
	require.NoError(t, err)
	assert.NotNil(t, orgs)
	assert.Empty(t, orgs)
}

func TestPostgres_FindOrganizationsByName_QueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM organizations`).WillReturnError(errors.New("connection reset"))

	_, err := s.FindOrganizationsByName(context.Background(), "acme", 6)
	require.Error(t, err)
	assert.Equal(t, string(apperrors.ErrCodeQueryFailed), apperrors.Code(err))
}

func TestPostgres_CreateOrganization(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO organizations`).
		WithArgs("Globex", "", "", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, now))

	org, err := s.CreateOrganization(context.Background(), "Globex")
	require.NoError(t, err)
	assert.Equal(t, int64(42), org.ID)
	assert.Equal(t, "Globex", org.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetOrganization(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM organizations\s+WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(orgRowColumns).AddRow(7, "Acme Corp", "", "", "", "", time.Now()))

	org, err := s.GetOrganization(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, org)
	assert.Equal(t, "Acme Corp", org.Name)
}

func TestPostgres_GetOrganization_Missing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM organizations\s+WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(orgRowColumns))

	org, err := s.GetOrganization(context.Background(), 7)
	assert.NoError(t, err)
	assert.Nil(t, org)
}

// ==========================
// Contacts
// ==========================

func TestPostgres_GetContactsByIDs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM contacts\s+WHERE id = ANY\(\$1\)`).
		WithArgs(pq.Array([]int64{3, 99, 4})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "organization_id", "created_at"}).
			AddRow(3, "Ann", "ann@example.com", 1, time.Now()).
			AddRow(4, "Bob", "", nil, time.Now()))

	contacts, err := s.GetContactsByIDs(context.Background(), []int64{3, 99, 4})
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	require.NotNil(t, contacts[0].OrganizationID)
	assert.Equal(t, int64(1), *contacts[0].OrganizationID)
	assert.Nil(t, contacts[1].OrganizationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetContactsByIDs_EmptySkipsQuery(t *testing.T) {
	s, mock := newMockStore(t)

	contacts, err := s.GetContactsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, contacts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Deals
// ==========================

func TestPostgres_CreateDeal_WithContacts(t *testing.T) {
	s, mock := newMockStore(t)
	closeDate := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO deals`).
		WithArgs("Acme renewal", "12000.50", int64(1), "qualified", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(500, time.Now()))
	mock.ExpectQuery(`INSERT INTO deal_contacts \(deal_id, contact_id\)\s+SELECT \$1, id FROM contacts WHERE id = ANY\(\$2\)`).
		WithArgs(int64(500), pq.Array([]int64{4, 99, 3})).
		WillReturnRows(sqlmock.NewRows([]string{"contact_id"}).AddRow(3).AddRow(4))
	mock.ExpectCommit()

	deal, err := s.CreateDeal(context.Background(), models.NewDeal{
		Title:          "Acme renewal",
		AmountCents:    1200050,
		OrganizationID: 1,
		Stage:          "qualified",
		CloseDate:      &closeDate,
		ContactIDs:     []int64{4, 99, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), deal.ID)
	assert.Equal(t, []int64{4, 3}, deal.ContactIDs, "input order kept, unknown id dropped")
	assert.Equal(t, &closeDate, deal.CloseDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateDeal_NoContacts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO deals`).
		WithArgs("Renewal", "0.99", int64(2), "proposal", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(501, time.Now()))
	mock.ExpectCommit()

	deal, err := s.CreateDeal(context.Background(), models.NewDeal{
		Title:          "Renewal",
		AmountCents:    99,
		OrganizationID: 2,
		Stage:          "proposal",
	})
	require.NoError(t, err)
	assert.Empty(t, deal.ContactIDs)
	assert.NotNil(t, deal.ContactIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateDeal_RollsBackOnAttachFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO deals`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(502, time.Now()))
	mock.ExpectQuery(`INSERT INTO deal_contacts`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	deal, err := s.CreateDeal(context.Background(), models.NewDeal{
		Title:          "Renewal",
		AmountCents:    100,
		OrganizationID: 2,
		Stage:          "proposal",
		ContactIDs:     []int64{1},
	})
	require.Error(t, err)
	assert.Nil(t, deal)
	assert.Equal(t, string(apperrors.ErrCodeTransactionFailed), apperrors.Code(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LogActivity(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO activity_log`).
		WithArgs("Create", "Deal", int64(500), "created via chat").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.LogActivity(context.Background(), models.ActivityEntry{
		Action:     "Create",
		EntityType: "Deal",
		EntityID:   500,
		Details:    "created via chat",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Schema
// ==========================

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS organizations`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.Contains(t, schemaSQL, "NUMERIC(10,2)")
	assert.Contains(t, schemaSQL, "'proposal', 'qualified', 'negotiation'")
	assert.NoError(t, mock.ExpectationsWereMet())
}
