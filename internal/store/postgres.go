// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/lib/pq"

	"deal-assistant/internal/common/database"
	"deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const defaultQueryTimeout = 5 * time.Second

// Postgres is the record store behind the deal chat engine.
type Postgres struct {
	db           *database.PostgresClient
	logger       logger.Logger
	queryTimeout time.Duration
}

func NewPostgres(db *database.PostgresClient, log logger.Logger, queryTimeout time.Duration) *Postgres {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Postgres{db: db, logger: log, queryTimeout: queryTimeout}
}

// Migrate creates the tables if they do not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return errors.NewQueryFailedError("migrate", err)
	}
	s.logger.Info("Schema applied", nil)
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		return errors.NewStoreUnavailableError("ping", err)
	}
	return nil
}

const orgColumns = `id, name, COALESCE(description, ''), COALESCE(website, ''),
		COALESCE(industry, ''), COALESCE(location, ''), created_at`

func scanOrganization(row interface{ Scan(...interface{}) error }) (models.Organization, error) {
	var org models.Organization
	err := row.Scan(&org.ID, &org.Name, &org.Description, &org.Website,
		&org.Industry, &org.Location, &org.CreatedAt)
	return org, err
}

// FindOrganizationsByName is a case-insensitive substring match, oldest
// first.
func (s *Postgres) FindOrganizationsByName(ctx context.Context, fragment string, limit int) ([]models.Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT `+orgColumns+`
		FROM organizations
		WHERE strpos(lower(name), lower($1)) > 0
		ORDER BY id
		LIMIT $2`, fragment, limit)
	if err != nil {
		return nil, errors.NewQueryFailedError("find organizations", err)
	}
	defer rows.Close()

	orgs := []models.Organization{}
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, errors.NewQueryFailedError("find organizations", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryFailedError("find organizations", err)
	}
	return orgs, nil
}

func (s *Postgres) CreateOrganization(ctx context.Context, name string) (*models.Organization, error) {
	return s.InsertOrganization(ctx, models.Organization{Name: name})
}

// InsertOrganization stores a fully described organization. Used by the
// chat flow (name only) and by the sample data generator.
func (s *Postgres) InsertOrganization(ctx context.Context, org models.Organization) (*models.Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	err := s.db.QueryRow(ctx, `
		INSERT INTO organizations (name, description, website, industry, location)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		RETURNING id, created_at`,
		org.Name, org.Description, org.Website, org.Industry, org.Location,
	).Scan(&org.ID, &org.CreatedAt)
	if err != nil {
		return nil, errors.NewQueryFailedError("create organization", err)
	}

	s.logger.Info("Organization created", map[string]interface{}{
		"organizationId": org.ID,
		"name":           org.Name,
	})
	return &org, nil
}

// GetOrganization returns (nil, nil) when no row has the id.
func (s *Postgres) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	org, err := scanOrganization(s.db.QueryRow(ctx, `
		SELECT `+orgColumns+`
		FROM organizations
		WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryFailedError("get organization", err)
	}
	return &org, nil
}

func (s *Postgres) InsertContact(ctx context.Context, c models.Contact) (*models.Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	err := s.db.QueryRow(ctx, `
		INSERT INTO contacts (name, email, organization_id)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING id, created_at`,
		c.Name, c.Email, c.OrganizationID,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, errors.NewQueryFailedError("create contact", err)
	}
	return &c, nil
}

// GetContactsByIDs returns the contacts that exist, ordered by id. Unknown
// ids are left out.
func (s *Postgres) GetContactsByIDs(ctx context.Context, ids []int64) ([]models.Contact, error) {
	contacts := []models.Contact{}
	if len(ids) == 0 {
		return contacts, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT id, name, COALESCE(email, ''), organization_id, created_at
		FROM contacts
		WHERE id = ANY($1)
		ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, errors.NewQueryFailedError("get contacts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Contact
		var orgID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &orgID, &c.CreatedAt); err != nil {
			return nil, errors.NewQueryFailedError("get contacts", err)
		}
		if orgID.Valid {
			id := orgID.Int64
			c.OrganizationID = &id
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryFailedError("get contacts", err)
	}
	return contacts, nil
}

// CreateDeal inserts the deal and links its contacts in one transaction.
// Contact ids with no matching row are skipped by the INSERT ... SELECT.
func (s *Postgres) CreateDeal(ctx context.Context, nd models.NewDeal) (*models.Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	deal := &models.Deal{
		Title:          nd.Title,
		AmountCents:    nd.AmountCents,
		OrganizationID: nd.OrganizationID,
		Stage:          nd.Stage,
		CloseDate:      nd.CloseDate,
		ContactIDs:     []int64{},
	}

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO deals (title, amount, organization_id, stage, close_date)
			VALUES ($1, $2::numeric, $3, $4, $5)
			RETURNING id, created_at`,
			nd.Title, models.FormatCents(nd.AmountCents), nd.OrganizationID, nd.Stage, nd.CloseDate,
		).Scan(&deal.ID, &deal.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert deal: %w", err)
		}

		if len(nd.ContactIDs) == 0 {
			return nil
		}

		rows, err := tx.QueryContext(ctx, `
			INSERT INTO deal_contacts (deal_id, contact_id)
			SELECT $1, id FROM contacts WHERE id = ANY($2)
			RETURNING contact_id`, deal.ID, pq.Array(nd.ContactIDs))
		if err != nil {
			return fmt.Errorf("attach contacts: %w", err)
		}
		defer rows.Close()

		linked := make(map[int64]bool, len(nd.ContactIDs))
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("attach contacts: %w", err)
			}
			linked[id] = true
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("attach contacts: %w", err)
		}

		for _, id := range nd.ContactIDs {
			if linked[id] {
				deal.ContactIDs = append(deal.ContactIDs, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewTransactionFailedError(err)
	}

	if skipped := len(nd.ContactIDs) - len(deal.ContactIDs); skipped > 0 {
		s.logger.Debug("Unknown contact ids skipped", map[string]interface{}{
			"dealId":  deal.ID,
			"skipped": skipped,
		})
	}
	return deal, nil
}

func (s *Postgres) LogActivity(ctx context.Context, entry models.ActivityEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO activity_log (action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4)`,
		entry.Action, entry.EntityType, entry.EntityID, entry.Details)
	if err != nil {
		return errors.NewQueryFailedError("log activity", err)
	}
	return nil
}
