package dealchat

import (
	"strconv"
	"strings"
)

// Summarize renders the set fields as "Label: value" lines, followed by the
// current step unless the deal is done. It never changes the draft.
func Summarize(d *Draft) string {
	if d == nil {
		return "Nothing has been captured yet."
	}

	var lines []string
	if d.Title != nil {
		lines = append(lines, "Title: "+*d.Title)
	}
	if d.Company != nil {
		lines = append(lines, "Company: "+d.Company.Name)
	}
	if d.Amount != nil {
		lines = append(lines, "Amount: "+d.Amount.Format())
	}
	if d.Stage != nil {
		lines = append(lines, "Stage: "+string(*d.Stage))
	}
	if d.CloseDate != nil {
		lines = append(lines, "Close date: "+d.CloseDate.String())
	}
	if len(d.Contacts) > 0 {
		lines = append(lines, "Contacts: "+joinIDs(d.Contacts))
	}
	if len(lines) == 0 {
		lines = append(lines, "Nothing has been captured yet.")
	}
	if d.Step != StepDone {
		lines = append(lines, "Current step: "+d.Step.Label())
	}
	return strings.Join(lines, "\n")
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
