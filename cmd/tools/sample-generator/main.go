// cmd/tools/sample-generator/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"deal-assistant/internal/common/config"
	"deal-assistant/internal/common/database"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/models"
	"deal-assistant/internal/store"
)

// sampleOrg is one organization with the contacts that belong to it.
type sampleOrg struct {
	Organization models.Organization `json:"organization"`
	Contacts     []models.Contact    `json:"contacts"`
}

func buildSample(count, contactsPer int) []sampleOrg {
	out := make([]sampleOrg, 0, count)
	for i := 1; i <= count; i++ {
		org := models.Organization{
			Name:     fmt.Sprintf("Company %d", i),
			Industry: fmt.Sprintf("Industry %d", i%5),
			Location: fmt.Sprintf("City %d", i%10),
		}
		contacts := make([]models.Contact, 0, contactsPer)
		for j := 1; j <= contactsPer; j++ {
			contacts = append(contacts, models.Contact{
				Name:  fmt.Sprintf("Contact %d-%d", i, j),
				Email: fmt.Sprintf("contact%d.%d@company%d.example", i, j, i),
			})
		}
		out = append(out, sampleOrg{Organization: org, Contacts: contacts})
	}
	return out
}

// sampleWriter is the part of store.Postgres the generator uses.
type sampleWriter interface {
	InsertOrganization(ctx context.Context, org models.Organization) (*models.Organization, error)
	InsertContact(ctx context.Context, c models.Contact) (*models.Contact, error)
}

func insertSample(ctx context.Context, w sampleWriter, sample []sampleOrg) (orgs, contacts int, err error) {
	for _, s := range sample {
		org, err := w.InsertOrganization(ctx, s.Organization)
		if err != nil {
			return orgs, contacts, fmt.Errorf("insert %s: %w", s.Organization.Name, err)
		}
		orgs++
		for _, c := range s.Contacts {
			id := org.ID
			c.OrganizationID = &id
			if _, err := w.InsertContact(ctx, c); err != nil {
				return orgs, contacts, fmt.Errorf("insert contact %s: %w", c.Name, err)
			}
			contacts++
		}
	}
	return orgs, contacts, nil
}

func main() {
	count := flag.Int("count", 30, "Number of organizations to generate")
	contactsPer := flag.Int("contacts", 2, "Contacts per organization")
	dryRun := flag.Bool("dry-run", false, "Print the sample as JSON instead of inserting it")
	configPath := flag.String("config", "", "Config file (default: configs/config.yaml)")
	flag.Parse()

	sample := buildSample(*count, *contactsPer)

	if *dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sample); err != nil {
			fmt.Fprintf(os.Stderr, "encode sample: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured("info", "console")

	db, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := store.NewPostgres(db, log, 0)
	if err := pg.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	orgs, contacts, err := insertSample(ctx, pg, sample)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("Inserted %d organizations and %d contacts\n", orgs, contacts)
}
