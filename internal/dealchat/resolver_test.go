package dealchat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(store *memStore) *EntityResolver {
	return NewEntityResolver(store, mustKeywords(), 5)
}

// ==========================
// Fresh search
// ==========================

func TestEntityResolver_SearchBranches(t *testing.T) {
	tests := []struct {
		name         string
		orgCount     int
		wantResolved bool
		wantChoices  int
		wantCreate   bool
	}{
		{name: "no match asks to create", orgCount: 0, wantCreate: true},
		{name: "single match is selected", orgCount: 1, wantResolved: true},
		{name: "two matches list choices", orgCount: 2, wantChoices: 2},
		{name: "five matches list choices", orgCount: 5, wantChoices: 5},
		{name: "six matches ask to narrow", orgCount: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			for i := 1; i <= tt.orgCount; i++ {
				store.addOrg(int64(i), fmt.Sprintf("Initech Branch %d", i))
			}
			store.addOrg(99, "Unrelated Ltd")

			d := draftAt(StepCompany)
			_, resolved, err := newTestResolver(store).Resolve(context.Background(), "initech", d)
			require.NoError(t, err)

			assert.Equal(t, tt.wantResolved, resolved)
			assert.Equal(t, tt.wantResolved, d.Company != nil)

			ids, choosing := d.PendingChoice()
			assert.Equal(t, tt.wantChoices > 0, choosing)
			assert.Len(t, ids, tt.wantChoices)

			name, creating := d.PendingCreate()
			assert.Equal(t, tt.wantCreate, creating)
			if tt.wantCreate {
				assert.Equal(t, "initech", name)
			}
		})
	}
}

func TestEntityResolver_ChoiceListIsNumbered(t *testing.T) {
	store := newMemStore()
	store.addOrg(11, "Acme East")
	store.addOrg(12, "Acme West")

	instr, _, err := newTestResolver(store).Resolve(context.Background(), "acme", draftAt(StepCompany))
	require.NoError(t, err)
	assert.Contains(t, instr, "11. Acme East")
	assert.Contains(t, instr, "12. Acme West")
}

func TestEntityResolver_StoreError(t *testing.T) {
	store := newMemStore()
	store.failWith = errors.New("connection refused")

	d := draftAt(StepCompany)
	_, _, err := newTestResolver(store).Resolve(context.Background(), "acme", d)
	assert.Error(t, err)
	assert.Nil(t, d.Company)
}

// ==========================
// Disambiguation
// ==========================

func TestEntityResolver_Choose(t *testing.T) {
	store := newMemStore()
	store.addOrg(11, "Acme East")
	store.addOrg(12, "Acme West")
	r := newTestResolver(store)

	t.Run("id outside the list re-prompts", func(t *testing.T) {
		d := draftAt(StepCompany)
		d.AwaitChoice([]int64{11, 12})

		instr, resolved, err := r.Resolve(context.Background(), "13", d)
		require.NoError(t, err)
		assert.False(t, resolved)
		assert.Contains(t, instr, "11, 12")
		ids, ok := d.PendingChoice()
		assert.True(t, ok)
		assert.Equal(t, []int64{11, 12}, ids)
	})

	t.Run("text instead of id re-prompts", func(t *testing.T) {
		d := draftAt(StepCompany)
		d.AwaitChoice([]int64{11, 12})

		_, resolved, err := r.Resolve(context.Background(), "the west one", d)
		require.NoError(t, err)
		assert.False(t, resolved)
		_, ok := d.PendingChoice()
		assert.True(t, ok)
	})

	t.Run("valid id selects", func(t *testing.T) {
		d := draftAt(StepCompany)
		d.AwaitChoice([]int64{11, 12})

		_, resolved, err := r.Resolve(context.Background(), " 12 ", d)
		require.NoError(t, err)
		assert.True(t, resolved)
		require.NotNil(t, d.Company)
		assert.Equal(t, CompanyRef{ID: 12, Name: "Acme West"}, *d.Company)
		_, ok := d.PendingChoice()
		assert.False(t, ok)
	})

	t.Run("deleted choice asks to retype", func(t *testing.T) {
		store.vanish[11] = true
		defer delete(store.vanish, 11)

		d := draftAt(StepCompany)
		d.AwaitChoice([]int64{11, 12})

		instr, resolved, err := r.Resolve(context.Background(), "11", d)
		require.NoError(t, err)
		assert.False(t, resolved)
		assert.Equal(t, instrChoiceGone, instr)
		assert.Nil(t, d.Company)
		_, ok := d.PendingChoice()
		assert.False(t, ok)
	})
}

// ==========================
// Create confirmation
// ==========================

func TestEntityResolver_ConfirmCreate(t *testing.T) {
	tests := []struct {
		name         string
		reply        string
		wantResolved bool
		wantPending  bool
	}{
		{name: "yes creates", reply: "Yes", wantResolved: true},
		{name: "yes synonym creates", reply: "sure!", wantResolved: true},
		{name: "no clears", reply: "no"},
		{name: "no synonym clears", reply: " Nope "},
		{name: "anything else re-prompts", reply: "maybe later", wantPending: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			d := draftAt(StepCompany)
			d.AwaitCreate("Globex")

			_, resolved, err := newTestResolver(store).Resolve(context.Background(), tt.reply, d)
			require.NoError(t, err)
			assert.Equal(t, tt.wantResolved, resolved)

			_, pending := d.PendingCreate()
			assert.Equal(t, tt.wantPending, pending)

			if tt.wantResolved {
				require.NotNil(t, d.Company)
				assert.Equal(t, "Globex", d.Company.Name)
				org, err := store.GetOrganization(context.Background(), d.Company.ID)
				require.NoError(t, err)
				require.NotNil(t, org)
			} else {
				assert.Nil(t, d.Company)
				assert.Empty(t, store.orgs)
			}
		})
	}
}
