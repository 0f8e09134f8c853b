package dealchat

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrAmountUnparseable = errors.New("amount is not a number")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountTooLarge    = errors.New("amount exceeds the supported maximum")
	ErrDateUnparseable   = errors.New("date is not in YYYY-MM-DD format")

	errEmptyReply = errors.New("generator returned an empty reply")
)

// FieldParsers extract typed slot values from free text. They never touch the
// store; the only state is the keyword tables for literal answers.
type FieldParsers struct {
	kw             *Keywords
	minTitleLength int
}

func NewFieldParsers(kw *Keywords, minTitleLength int) *FieldParsers {
	if minTitleLength <= 0 {
		minTitleLength = 3
	}
	return &FieldParsers{kw: kw, minTitleLength: minTitleLength}
}

// Title trims and requires at least minTitleLength characters.
func (p *FieldParsers) Title(text string) (string, bool) {
	title := strings.TrimSpace(text)
	if utf8.RuneCountInString(title) < p.minTitleLength {
		return "", false
	}
	return title, true
}

// Amount keeps only digits and '.', then parses the rest as a decimal
// rounded half-up to cents. "$12,000.5" becomes 12000.50.
func (p *FieldParsers) Amount(text string) (Amount, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)

	cents, err := parseCents(cleaned)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrAmountNotPositive
	}
	if cents > maxAmountCents {
		return 0, ErrAmountTooLarge
	}
	return Amount(cents), nil
}

// parseCents parses an unsigned decimal made of digits and at most one '.'.
func parseCents(s string) (int64, error) {
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, ErrAmountUnparseable
	}
	if hasDot && strings.Contains(fracPart, ".") {
		return 0, ErrAmountUnparseable
	}
	for _, part := range []string{intPart, fracPart} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, ErrAmountUnparseable
			}
		}
	}

	var units int64
	if intPart != "" {
		v, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil || v > maxAmountCents/100 {
			return 0, ErrAmountTooLarge
		}
		units = v
	}

	frac := fracPart + "000"
	cents := int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if frac[2] >= '5' {
		cents++
	}
	return units*100 + cents, nil
}

// Stage matches the first stage name contained in the text.
func (p *FieldParsers) Stage(text string) (Stage, bool) {
	return p.kw.stageIn(text)
}

// CloseDate returns skipped=true for the skip literals, otherwise a strict
// YYYY-MM-DD date.
func (p *FieldParsers) CloseDate(text string) (date Date, skipped bool, err error) {
	u := newUtterance(text)
	if p.kw.skipDate.equals(u) {
		return Date{}, true, nil
	}
	d, perr := ParseDate(strings.TrimSpace(text))
	if perr != nil {
		return Date{}, false, ErrDateUnparseable
	}
	return d, false, nil
}

// ContactIDs reads a comma-separated id list. The no-contact literals and
// empty text give an empty list; tokens that are not positive integers are
// dropped, never rejected.
func (p *FieldParsers) ContactIDs(text string) []int64 {
	u := newUtterance(text)
	if u.empty() || p.kw.noContacts.equals(u) {
		return []int64{}
	}

	ids := []int64{}
	for _, tok := range strings.Split(text, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return dedupeIDs(ids)
}
