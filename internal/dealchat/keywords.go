package dealchat

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// Keywords holds the phrase tables used to classify turns and read yes/no
// style answers. They are data, loaded from YAML, so they can be swapped or
// localized without touching the dialog logic.
type Keywords struct {
	Restart        []string           `yaml:"restart"`
	Recap          []string           `yaml:"recap"`
	QuestionCues   []string           `yaml:"question_cues"`
	ChangeTriggers []string           `yaml:"change_triggers"`
	FieldSynonyms  map[Step][]string  `yaml:"field_synonyms"`
	Yes            []string           `yaml:"yes"`
	No             []string           `yaml:"no"`
	SkipDate       []string           `yaml:"skip_date"`
	NoContacts     []string           `yaml:"no_contacts"`
	StageNames     map[Stage][]string `yaml:"stages"`

	restart        phraseSet
	recap          phraseSet
	questionCues   phraseSet
	changeTriggers phraseSet
	fields         map[Step]phraseSet
	yes            phraseSet
	no             phraseSet
	skipDate       phraseSet
	noContacts     phraseSet
	stageNames     []stageName
}

type stageName struct {
	stage Stage
	name  string
}

// DefaultKeywords returns the embedded English tables.
func DefaultKeywords() (*Keywords, error) {
	return ParseKeywords(defaultKeywordsYAML)
}

// LoadKeywords reads a replacement table file.
func LoadKeywords(path string) (*Keywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}
	return ParseKeywords(data)
}

func ParseKeywords(data []byte) (*Keywords, error) {
	var kw Keywords
	if err := yaml.Unmarshal(data, &kw); err != nil {
		return nil, fmt.Errorf("parse keywords: %w", err)
	}
	if err := kw.validate(); err != nil {
		return nil, err
	}
	kw.compile()
	return &kw, nil
}

func (k *Keywords) validate() error {
	tables := map[string][]string{
		"restart":         k.Restart,
		"recap":           k.Recap,
		"question_cues":   k.QuestionCues,
		"change_triggers": k.ChangeTriggers,
		"yes":             k.Yes,
		"no":              k.No,
		"skip_date":       k.SkipDate,
		"no_contacts":     k.NoContacts,
	}
	for name, table := range tables {
		if len(table) == 0 {
			return fmt.Errorf("keywords: %s table is empty", name)
		}
	}
	for _, field := range []Step{StepTitle, StepCompany, StepAmount, StepStage, StepCloseDate, StepContacts} {
		if len(k.FieldSynonyms[field]) == 0 {
			return fmt.Errorf("keywords: no synonyms for field %s", field)
		}
	}
	for _, st := range Stages {
		if len(k.StageNames[st]) == 0 {
			return fmt.Errorf("keywords: no names for stage %s", st)
		}
	}
	return nil
}

func (k *Keywords) compile() {
	k.restart = newPhraseSet(k.Restart)
	k.recap = newPhraseSet(k.Recap)
	k.questionCues = newPhraseSet(k.QuestionCues)
	k.changeTriggers = newPhraseSet(k.ChangeTriggers)
	k.yes = newPhraseSet(k.Yes)
	k.no = newPhraseSet(k.No)
	k.skipDate = newPhraseSet(k.SkipDate)
	k.noContacts = newPhraseSet(k.NoContacts)
	k.fields = make(map[Step]phraseSet, len(k.FieldSynonyms))
	for field, list := range k.FieldSynonyms {
		k.fields[field] = newPhraseSet(list)
	}
	k.stageNames = k.stageNames[:0]
	for _, st := range Stages {
		for _, name := range k.StageNames[st] {
			if n := strings.ToLower(strings.TrimSpace(name)); n != "" {
				k.stageNames = append(k.stageNames, stageName{stage: st, name: n})
			}
		}
	}
}

// stageIn returns the first stage, in Stages order, whose name occurs
// anywhere in text, ignoring case. Names match inside longer words too, so
// "proposals" is proposal.
func (k *Keywords) stageIn(text string) (Stage, bool) {
	lower := strings.ToLower(text)
	for _, sn := range k.stageNames {
		if strings.Contains(lower, sn.name) {
			return sn.stage, true
		}
	}
	return "", false
}

// RestartHint is the phrase suggested to users who want to start over.
func (k *Keywords) RestartHint() string {
	return k.Restart[0]
}

// utterance is one turn's text in the forms the matchers need.
type utterance struct {
	raw  string
	norm string
}

func newUtterance(raw string) utterance {
	return utterance{raw: raw, norm: normalize(raw)}
}

// empty reports whether nothing but whitespace was typed.
func (u utterance) empty() bool {
	return strings.TrimSpace(u.raw) == ""
}

// normalize lowercases and folds every run of non-alphanumerics to a single
// space.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// phraseSet matches whole words or phrases against normalized text. Entries
// made only of punctuation (such as "?") are matched against the raw text.
type phraseSet struct {
	words   []string
	symbols []string
}

func newPhraseSet(list []string) phraseSet {
	var ps phraseSet
	for _, p := range list {
		if n := normalize(p); n != "" {
			ps.words = append(ps.words, n)
		} else if t := strings.TrimSpace(p); t != "" {
			ps.symbols = append(ps.symbols, t)
		}
	}
	return ps
}

// contains reports whether any phrase occurs in u on word boundaries.
func (ps phraseSet) contains(u utterance) bool {
	padded := " " + u.norm + " "
	for _, w := range ps.words {
		if strings.Contains(padded, " "+w+" ") {
			return true
		}
	}
	for _, s := range ps.symbols {
		if strings.Contains(u.raw, s) {
			return true
		}
	}
	return false
}

// equals reports whether the whole utterance is one of the phrases.
func (ps phraseSet) equals(u utterance) bool {
	for _, w := range ps.words {
		if u.norm == w {
			return true
		}
	}
	trimmed := strings.TrimSpace(u.raw)
	for _, s := range ps.symbols {
		if trimmed == s {
			return true
		}
	}
	return false
}
