// Package rules holds the ordered regex rule sets that drive junk rejection,
// priority tiers and completion detection. Rule sets are data, not control
// flow: the pipeline only ever asks "does this text match this set".
package rules

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Set is an ordered list of compiled patterns with first-match semantics.
type Set struct {
	patterns []*regexp.Regexp
}

// NewSet compiles the given patterns in order.
func NewSet(patterns []string) (*Set, error) {
	s := &Set{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// Match reports whether any pattern matches, evaluating in order and
// stopping at the first hit.
func (s *Set) Match(text string) bool {
	for _, re := range s.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns in the set.
func (s *Set) Len() int { return len(s.patterns) }

// Rules bundles every rule set the pipeline consults.
type Rules struct {
	Junk           *Set
	HighPriority   *Set
	MediumPriority *Set
	Completion     *Set

	// Subject-prefix overrides. These short-circuit the classifier entirely.
	FYI     *regexp.Regexp
	Approve *regexp.Regexp
}

// ruleFile is the YAML shape accepted by Load.
type ruleFile struct {
	Junk           []string `yaml:"junk"`
	HighPriority   []string `yaml:"high_priority"`
	MediumPriority []string `yaml:"medium_priority"`
	Completion     []string `yaml:"completion"`
}

var defaultJunk = []string{
	`(?i)\bunsubscribe\b`,
	`(?i)\bnewsletter\b`,
	`(?i)out of office`,
	`(?i)automatic reply`,
	`(?i)\bno-?reply@`,
	`(?i)limited time offer`,
	`(?i)\bwebinar invitation\b`,
}

var defaultHighPriority = []string{
	`(?i)\burgent\b`,
	`(?i)\basap\b`,
	`(?i)action required`,
	`(?i)\bcritical\b`,
	`(?i)\bescalat(e|ed|ion)\b`,
	`(?i)\bdeadline\b`,
	`(?i)\bby (end of day|eod|cob)\b`,
}

var defaultMediumPriority = []string{
	`(?i)\bplease (review|advise|confirm)\b`,
	`(?i)\bfeedback\b`,
	`(?i)\bapproval\b`,
	`(?i)\brequest(ed|ing)?\b`,
	`(?i)\bfollow[- ]?up\b`,
	`(?i)\breminder\b`,
}

var defaultCompletion = []string{
	`(?i)\b(done|completed|resolved|fixed|handled|finished|closed)\b`,
}

// Default returns the built-in rule sets.
func Default() *Rules {
	r, err := build(ruleFile{
		Junk:           defaultJunk,
		HighPriority:   defaultHighPriority,
		MediumPriority: defaultMediumPriority,
		Completion:     defaultCompletion,
	})
	if err != nil {
		// Built-in patterns are compiled in tests; a failure here is a
		// programming error.
		panic(err)
	}
	return r
}

// Load reads rule sets from a YAML file. Sections missing from the file fall
// back to the built-in defaults. An empty path returns Default().
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	if rf.Junk == nil {
		rf.Junk = defaultJunk
	}
	if rf.HighPriority == nil {
		rf.HighPriority = defaultHighPriority
	}
	if rf.MediumPriority == nil {
		rf.MediumPriority = defaultMediumPriority
	}
	if rf.Completion == nil {
		rf.Completion = defaultCompletion
	}

	return build(rf)
}

func build(rf ruleFile) (*Rules, error) {
	junk, err := NewSet(rf.Junk)
	if err != nil {
		return nil, err
	}
	high, err := NewSet(rf.HighPriority)
	if err != nil {
		return nil, err
	}
	medium, err := NewSet(rf.MediumPriority)
	if err != nil {
		return nil, err
	}
	completion, err := NewSet(rf.Completion)
	if err != nil {
		return nil, err
	}

	return &Rules{
		Junk:           junk,
		HighPriority:   high,
		MediumPriority: medium,
		Completion:     completion,
		FYI:            regexp.MustCompile(`(?i)(^|\[|\s)fyi(\]|\s|:|$)`),
		Approve:        regexp.MustCompile(`(?i)(^|\[|\s)approve(\]|\s|:|$)`),
	}, nil
}
