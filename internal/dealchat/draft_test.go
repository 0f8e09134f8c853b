package dealchat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Wire format
// ==========================

func TestDraft_MarshalFreshDraft(t *testing.T) {
	data, err := json.Marshal(NewDraft())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"step": "title",
		"title": null,
		"company_id": null,
		"company_name": null,
		"amount": null,
		"stage": null,
		"close_date": null,
		"contacts": [],
		"pending_company_choice": null,
		"pending_new_company_name": null
	}`, string(data))
}

func TestDraft_MarshalFilledDraft(t *testing.T) {
	d := NewDraft()
	d.Step = StepContacts
	d.Title = strPtr("Acme renewal")
	d.SetCompany(7, "Acme Corp")
	d.Amount = amountPtr(1200050)
	d.Stage = stagePtr(StageQualified)
	date, err := ParseDate("2025-06-30")
	require.NoError(t, err)
	d.CloseDate = &date
	d.Contacts = []int64{3, 4}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"step": "contacts",
		"title": "Acme renewal",
		"company_id": 7,
		"company_name": "Acme Corp",
		"amount": 12000.50,
		"stage": "qualified",
		"close_date": "2025-06-30",
		"contacts": [3, 4],
		"pending_company_choice": null,
		"pending_new_company_name": null
	}`, string(data))

	var back Draft
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, &back)
}

func TestDraft_PendingFlagsSurviveRoundTrip(t *testing.T) {
	d := NewDraft()
	d.Step = StepCompany
	d.AwaitChoice([]int64{5, 2, 9})

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pending_company_choice":[5,2,9]`)

	var back Draft
	require.NoError(t, json.Unmarshal(data, &back))
	ids, ok := back.PendingChoice()
	assert.True(t, ok)
	assert.Equal(t, []int64{5, 2, 9}, ids)

	back.AwaitCreate("Globex")
	_, ok = back.PendingChoice()
	assert.False(t, ok, "only one pending mode at a time")
	name, ok := back.PendingCreate()
	assert.True(t, ok)
	assert.Equal(t, "Globex", name)
}

func TestDraft_UnmarshalRejectsInvalidState(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown step", body: `{"step":"budget"}`},
		{name: "missing step", body: `{"title":"x"}`},
		{name: "company id without name", body: `{"step":"amount","company_id":3}`},
		{name: "unknown stage", body: `{"step":"close_date","stage":"won"}`},
		{name: "both pending flags", body: `{"step":"company","pending_company_choice":[1,2],"pending_new_company_name":"Acme"}`},
		{name: "bad close date", body: `{"step":"contacts","close_date":"30/06/2025"}`},
		{name: "negative amount", body: `{"step":"stage","amount":-5}`},
		{name: "amount too large", body: `{"step":"stage","amount":100000000000}`},
		{name: "amount not a number", body: `{"step":"stage","amount":"lots"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Draft
			assert.Error(t, json.Unmarshal([]byte(tt.body), &d))
		})
	}
}

func TestDraft_UnmarshalLenientValues(t *testing.T) {
	var d Draft
	require.NoError(t, json.Unmarshal([]byte(`{"step":"stage","amount":"12000.5","contacts":[3,3,1]}`), &d))

	require.NotNil(t, d.Amount)
	assert.Equal(t, int64(1200050), d.Amount.Cents())
	assert.Equal(t, []int64{3, 1}, d.Contacts)

	require.NoError(t, json.Unmarshal([]byte(`{"step":"stage","amount":1e3}`), &d))
	assert.Equal(t, int64(100000), d.Amount.Cents())
}

// ==========================
// Clone
// ==========================

func TestDraft_CloneIsIndependent(t *testing.T) {
	d := NewDraft()
	d.Title = strPtr("Original")
	d.Amount = amountPtr(100)
	d.Contacts = []int64{1}
	d.AwaitChoice([]int64{1, 2})

	c := d.Clone()
	*c.Title = "Changed"
	*c.Amount = 999
	c.Contacts[0] = 42
	c.ClearPending()

	assert.Equal(t, "Original", *d.Title)
	assert.Equal(t, Amount(100), *d.Amount)
	assert.Equal(t, []int64{1}, d.Contacts)
	_, ok := d.PendingChoice()
	assert.True(t, ok)

	var nilDraft *Draft
	assert.Nil(t, nilDraft.Clone())
}
