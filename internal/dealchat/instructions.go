package dealchat

import (
	"fmt"
	"strings"

	"deal-assistant/internal/models"
)

// Instructions tell the text generator what to say. They carry facts and
// intent only; the generator owns the wording.

const (
	instrEmptyMessage = "The user sent an empty message. Ask them to type something."
	instrStart        = "Greet the user and ask for the title of the new deal."
	instrRestart      = "The user wants to start over. Confirm the previous draft was discarded and ask for the title of the new deal."
)

func instrRecap(summary string) string {
	return "The user asked about the deal captured so far. Give them this summary, then remind them what is needed next:\n" + summary
}

func instrClosed(restartHint string) string {
	return fmt.Sprintf("The deal in this conversation has already been created. Tell the user it is finished and that they can type %q to start a new one.", restartHint)
}

// instrAsk is the question for the slot behind step.
func instrAsk(step Step) string {
	switch step {
	case StepTitle:
		return "Ask the user for the title of the deal."
	case StepCompany:
		return "Ask which company the deal is with."
	case StepAmount:
		return "Ask for the deal amount in dollars."
	case StepStage:
		return fmt.Sprintf("Ask which stage the deal is in. Valid stages are %s.", stageList())
	case StepCloseDate:
		return "Ask for the expected close date in YYYY-MM-DD format, mentioning they can say skip."
	case StepContacts:
		return "Ask whether to associate any contacts, as comma-separated contact ids, or no for none."
	default:
		return ""
	}
}

func stageList() string {
	names := make([]string, len(Stages))
	for i, st := range Stages {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}

func instrSaved(what, next string) string {
	return fmt.Sprintf("Acknowledge that the %s was saved. %s", what, next)
}

func instrTitleTooShort(min int) string {
	return fmt.Sprintf("The deal title must be at least %d characters long. Ask the user for a longer title.", min)
}

func instrAmountInvalid(err error) string {
	switch err {
	case ErrAmountNotPositive:
		return "The amount must be greater than zero. Ask the user for a positive deal amount."
	case ErrAmountTooLarge:
		return "That amount is larger than the system can store. Ask the user for a smaller deal amount."
	default:
		return "That did not look like a number. Ask the user for the deal amount as a number, for example 12000 or 12,000.50."
	}
}

func instrStageInvalid() string {
	return fmt.Sprintf("That is not a known stage. Ask the user to choose one of: %s.", stageList())
}

const instrDateInvalid = "That is not a valid date. Ask for the expected close date in YYYY-MM-DD format, or say skip to leave it empty."

func instrChangeAsk(field Step) string {
	return fmt.Sprintf("The user wants to change the %s. %s", field.Label(), instrAsk(field))
}

func instrConfirmCreate(name string) string {
	return fmt.Sprintf("No company named like %q exists. Ask the user whether to create a new company with that name (yes or no).", name)
}

func instrConfirmCreateRepeat(name string) string {
	return fmt.Sprintf("Ask the user to answer yes or no: should a new company named %q be created?", name)
}

const instrRetypeCompany = "Ask the user to type the company name again."

const instrChoiceGone = "The selected company no longer exists. Ask the user to type the company name again."

func instrChooseCompany(orgs []models.Organization) string {
	var b strings.Builder
	b.WriteString("Several companies match. Show this numbered list and ask the user to reply with the id of the right one:")
	for _, org := range orgs {
		fmt.Fprintf(&b, "\n%d. %s", org.ID, org.Name)
	}
	return b.String()
}

func instrChooseCompanyRepeat(ids []int64) string {
	return fmt.Sprintf("That is not one of the listed ids. Ask the user to reply with one of: %s.", joinIDs(ids))
}

func instrTooManyMatches(name string, limit int) string {
	return fmt.Sprintf("More than %d companies match %q. Ask the user for a more specific company name.", limit, name)
}

func instrCompanySelected(name string) string {
	return fmt.Sprintf("The deal is now linked to the company %s.", name)
}

func instrCompanyCreated(name string) string {
	return fmt.Sprintf("A new company named %s was created and linked to the deal.", name)
}

func instrCommitted(deal *models.Deal, orgName string, contacts []models.Contact) string {
	msg := fmt.Sprintf("The deal %q was created successfully with id %d for %s.", deal.Title, deal.ID, orgName)
	if len(contacts) > 0 {
		names := make([]string, len(contacts))
		for i, c := range contacts {
			names[i] = c.Name
		}
		msg += " Attached contacts: " + strings.Join(names, ", ") + "."
	}
	return msg + " Confirm this to the user."
}

func instrCommitOrgGone(name, restartHint string) string {
	return fmt.Sprintf("The company %s no longer exists, so the deal could not be saved. Tell the user to start again by typing %q.", name, restartHint)
}

func instrDateSkipped(next string) string {
	return "Acknowledge that the deal has no close date. " + next
}

const instrMissingBeforeCommit = "Some required deal details are missing, so the deal cannot be saved yet."
