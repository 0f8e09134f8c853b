package dealchat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"deal-assistant/internal/models"
)

// Step is the slot the conversation is currently filling.
type Step string

const (
	StepTitle     Step = "title"
	StepCompany   Step = "company"
	StepAmount    Step = "amount"
	StepStage     Step = "stage"
	StepCloseDate Step = "close_date"
	StepContacts  Step = "contacts"
	StepDone      Step = "done"
)

var stepOrder = []Step{StepTitle, StepCompany, StepAmount, StepStage, StepCloseDate, StepContacts, StepDone}

// requiredSteps are the slots a deal cannot be committed without.
var requiredSteps = []Step{StepTitle, StepCompany, StepAmount, StepStage}

func (s Step) Valid() bool {
	for _, st := range stepOrder {
		if s == st {
			return true
		}
	}
	return false
}

func (s Step) next() Step {
	for i, st := range stepOrder {
		if st == s && i+1 < len(stepOrder) {
			return stepOrder[i+1]
		}
	}
	return StepDone
}

// Label is the human form used in summaries and instructions.
func (s Step) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

type Stage string

const (
	StageProposal    Stage = models.StageProposal
	StageQualified   Stage = models.StageQualified
	StageNegotiation Stage = models.StageNegotiation
)

// Stages is the fixed stage order used for matching and prompts.
var Stages = []Stage{StageProposal, StageQualified, StageNegotiation}

func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

// Amount is a non-negative money value in integer cents.
type Amount int64

// maxAmountCents matches the NUMERIC(10,2) deals.amount column.
const maxAmountCents = 9_999_999_999

func (a Amount) Cents() int64 {
	return int64(a)
}

// String renders "12000.50".
func (a Amount) String() string {
	return models.FormatCents(int64(a))
}

// Format renders "12,000.50".
func (a Amount) Format() string {
	units := strconv.FormatInt(int64(a)/100, 10)
	var b strings.Builder
	for i, r := range units {
		if i > 0 && (len(units)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s.%02d", b.String(), int64(a)%100)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	cents, err := parseCents(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("amount %q: %w", raw, err)
		}
		if f < 0 {
			return fmt.Errorf("amount %q is negative", raw)
		}
		cents = int64(math.Round(f * 100))
	}
	if cents > maxAmountCents {
		return fmt.Errorf("amount %q is too large", raw)
	}
	*a = Amount(cents)
	return nil
}

// Date is a calendar date without time of day.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t: t}, nil
}

func (d Date) String() string {
	return d.t.Format(dateLayout)
}

func (d Date) Time() time.Time {
	return d.t
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("close_date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("close_date %q is not YYYY-MM-DD", s)
	}
	*d = parsed
	return nil
}

// CompanyRef holds the resolved organization; id and name always travel
// together.
type CompanyRef struct {
	ID   int64
	Name string
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingChoice
	pendingCreate
)

// companyPending is the company step's sub-mode. Only one kind can be active.
type companyPending struct {
	kind    pendingKind
	choices []int64
	name    string
}

// Draft is the client-held conversation state. It is serialized into every
// response and echoed back on the next turn.
type Draft struct {
	Step      Step
	Title     *string
	Company   *CompanyRef
	Amount    *Amount
	Stage     *Stage
	CloseDate *Date
	Contacts  []int64

	pending companyPending
}

func NewDraft() *Draft {
	return &Draft{Step: StepTitle, Contacts: []int64{}}
}

// Clone returns a deep copy.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	if d.Title != nil {
		v := *d.Title
		c.Title = &v
	}
	if d.Company != nil {
		v := *d.Company
		c.Company = &v
	}
	if d.Amount != nil {
		v := *d.Amount
		c.Amount = &v
	}
	if d.Stage != nil {
		v := *d.Stage
		c.Stage = &v
	}
	if d.CloseDate != nil {
		v := *d.CloseDate
		c.CloseDate = &v
	}
	c.Contacts = append([]int64{}, d.Contacts...)
	c.pending.choices = append([]int64(nil), d.pending.choices...)
	return &c
}

// PendingChoice returns the disambiguation candidates, if awaiting one.
func (d *Draft) PendingChoice() ([]int64, bool) {
	if d.pending.kind != pendingChoice {
		return nil, false
	}
	return d.pending.choices, true
}

// PendingCreate returns the name awaiting create confirmation, if any.
func (d *Draft) PendingCreate() (string, bool) {
	if d.pending.kind != pendingCreate {
		return "", false
	}
	return d.pending.name, true
}

func (d *Draft) AwaitChoice(ids []int64) {
	d.pending = companyPending{kind: pendingChoice, choices: append([]int64(nil), ids...)}
}

func (d *Draft) AwaitCreate(name string) {
	d.pending = companyPending{kind: pendingCreate, name: name}
}

func (d *Draft) ClearPending() {
	d.pending = companyPending{}
}

// SetCompany finalizes the company slot and leaves any pending sub-mode.
func (d *Draft) SetCompany(id int64, name string) {
	d.Company = &CompanyRef{ID: id, Name: name}
	d.ClearPending()
}

// Filled reports whether the slot behind step holds a value. Contacts and
// done are never "filled" in this sense.
func (d *Draft) Filled(step Step) bool {
	switch step {
	case StepTitle:
		return d.Title != nil
	case StepCompany:
		return d.Company != nil
	case StepAmount:
		return d.Amount != nil
	case StepStage:
		return d.Stage != nil
	case StepCloseDate:
		return d.CloseDate != nil
	default:
		return false
	}
}

// firstMissing returns the earliest required slot still unset.
func (d *Draft) firstMissing() (Step, bool) {
	for _, st := range requiredSteps {
		if !d.Filled(st) {
			return st, true
		}
	}
	return "", false
}

type draftWire struct {
	Step                  Step    `json:"step"`
	Title                 *string `json:"title"`
	CompanyID             *int64  `json:"company_id"`
	CompanyName           *string `json:"company_name"`
	Amount                *Amount `json:"amount"`
	Stage                 *Stage  `json:"stage"`
	CloseDate             *Date   `json:"close_date"`
	Contacts              []int64 `json:"contacts"`
	PendingCompanyChoice  []int64 `json:"pending_company_choice"`
	PendingNewCompanyName *string `json:"pending_new_company_name"`
}

func (d Draft) MarshalJSON() ([]byte, error) {
	w := draftWire{
		Step:      d.Step,
		Title:     d.Title,
		Amount:    d.Amount,
		Stage:     d.Stage,
		CloseDate: d.CloseDate,
		Contacts:  d.Contacts,
	}
	if w.Contacts == nil {
		w.Contacts = []int64{}
	}
	if d.Company != nil {
		id, name := d.Company.ID, d.Company.Name
		w.CompanyID, w.CompanyName = &id, &name
	}
	switch d.pending.kind {
	case pendingChoice:
		w.PendingCompanyChoice = d.pending.choices
	case pendingCreate:
		name := d.pending.name
		w.PendingNewCompanyName = &name
	}
	return json.Marshal(w)
}

func (d *Draft) UnmarshalJSON(data []byte) error {
	var w draftWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	if !w.Step.Valid() {
		return fmt.Errorf("unknown step %q", w.Step)
	}
	if (w.CompanyID == nil) != (w.CompanyName == nil) {
		return fmt.Errorf("company_id and company_name must be set together")
	}
	if w.Stage != nil && !w.Stage.Valid() {
		return fmt.Errorf("unknown stage %q", *w.Stage)
	}
	if len(w.PendingCompanyChoice) > 0 && w.PendingNewCompanyName != nil {
		return fmt.Errorf("pending_company_choice and pending_new_company_name are mutually exclusive")
	}

	out := Draft{
		Step:      w.Step,
		Title:     w.Title,
		Amount:    w.Amount,
		Stage:     w.Stage,
		CloseDate: w.CloseDate,
		Contacts:  dedupeIDs(w.Contacts),
	}
	if w.CompanyID != nil {
		out.Company = &CompanyRef{ID: *w.CompanyID, Name: *w.CompanyName}
	}
	switch {
	case len(w.PendingCompanyChoice) > 0:
		out.AwaitChoice(w.PendingCompanyChoice)
	case w.PendingNewCompanyName != nil:
		out.AwaitCreate(*w.PendingNewCompanyName)
	}

	*d = out
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
