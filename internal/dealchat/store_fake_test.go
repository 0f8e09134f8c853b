package dealchat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"deal-assistant/internal/models"
)

// ==========================
// In-memory Store
// ==========================

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	orgs     map[int64]models.Organization
	contacts map[int64]models.Contact
	deals    []models.Deal
	activity []models.ActivityEntry

	// failWith, when set, is returned by every call.
	failWith error
	// vanish lists organization ids GetOrganization pretends are gone.
	vanish map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID:   100,
		orgs:     make(map[int64]models.Organization),
		contacts: make(map[int64]models.Contact),
		vanish:   make(map[int64]bool),
	}
}

func (s *memStore) addOrg(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[id] = models.Organization{ID: id, Name: name, CreatedAt: time.Now()}
}

func (s *memStore) addContact(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[id] = models.Contact{ID: id, Name: name, CreatedAt: time.Now()}
}

func (s *memStore) FindOrganizationsByName(_ context.Context, fragment string, limit int) ([]models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	needle := strings.ToLower(fragment)
	var out []models.Organization
	for _, org := range s.orgs {
		if strings.Contains(strings.ToLower(org.Name), needle) {
			out = append(out, org)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CreateOrganization(_ context.Context, name string) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.nextID++
	org := models.Organization{ID: s.nextID, Name: name, CreatedAt: time.Now()}
	s.orgs[org.ID] = org
	return &org, nil
}

func (s *memStore) GetOrganization(_ context.Context, id int64) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	org, ok := s.orgs[id]
	if !ok || s.vanish[id] {
		return nil, nil
	}
	return &org, nil
}

func (s *memStore) GetContactsByIDs(_ context.Context, ids []int64) ([]models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := []models.Contact{}
	for _, id := range ids {
		if c, ok := s.contacts[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) CreateDeal(_ context.Context, nd models.NewDeal) (*models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	attached := []int64{}
	for _, id := range nd.ContactIDs {
		if _, ok := s.contacts[id]; ok {
			attached = append(attached, id)
		}
	}
	s.nextID++
	deal := models.Deal{
		ID:             s.nextID,
		Title:          nd.Title,
		AmountCents:    nd.AmountCents,
		OrganizationID: nd.OrganizationID,
		Stage:          nd.Stage,
		CloseDate:      nd.CloseDate,
		ContactIDs:     attached,
		CreatedAt:      time.Now(),
	}
	s.deals = append(s.deals, deal)
	return &deal, nil
}

func (s *memStore) LogActivity(_ context.Context, entry models.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, entry)
	return nil
}

func (s *memStore) dealCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deals)
}

// ==========================
// Helpers
// ==========================

func mustKeywords() *Keywords {
	kw, err := DefaultKeywords()
	if err != nil {
		panic(err)
	}
	return kw
}

func strPtr(s string) *string { return &s }

func amountPtr(cents int64) *Amount {
	a := Amount(cents)
	return &a
}

func stagePtr(s Stage) *Stage { return &s }
