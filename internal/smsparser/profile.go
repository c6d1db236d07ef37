// Package smsparser turns raw bank/mobile-money SMS sightings into
// Observations using a priority-ordered set of declarative regex profiles,
// pre-compiled once at construction time.
package smsparser

import (
	"regexp"
	"sort"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

// CaptureGroups maps a pattern's named fields to 1-based regex capture group
// indices. 0 means "not captured".
type CaptureGroups struct {
	Amount      int
	Reference   int
	Counterparty int
	AccountHint int
}

// Pattern is one regex rule within a profile, tried in declared order.
type Pattern struct {
	Regex     string
	Direction model.Direction
	Groups    CaptureGroups
}

// Profile is a named, priority-ordered, sender-scoped set of patterns.
// SenderAddresses empty means "content-only": matched by pattern content
// alone rather than sender identity.
type Profile struct {
	Name            string
	SenderAddresses []string
	Patterns        []Pattern
	Priority        int
	Enabled         bool
}

// compiledPattern pre-compiles a Pattern's regex once.
type compiledPattern struct {
	re *regexp.Regexp
	Pattern
}

type compiledProfile struct {
	Profile
	patterns []compiledPattern
}

// Matcher holds the currently active, priority-sorted, compiled profile
// list. UpdateProfiles replaces the whole list in one plain assignment; it
// takes no lock, so a call running concurrently with Parse is not
// synchronized with it.
type Matcher struct {
	profiles []compiledProfile
}

// NewMatcher compiles and priority-sorts the given profiles. Profiles with
// an uncompilable pattern have that pattern silently dropped.
func NewMatcher(profiles []Profile) *Matcher {
	m := &Matcher{}
	m.UpdateProfiles(profiles)
	return m
}

// UpdateProfiles replaces the active profile list, re-sorted by priority
// descending and filtered to enabled profiles. The swap is a plain field
// assignment, without a lock or atomic operation.
func (m *Matcher) UpdateProfiles(profiles []Profile) {
	var enabled []Profile
	for _, p := range profiles {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool { return enabled[i].Priority > enabled[j].Priority })

	compiled := make([]compiledProfile, 0, len(enabled))
	for _, p := range enabled {
		cp := compiledProfile{Profile: p}
		for _, pat := range p.Patterns {
			re, err := regexp.Compile("(?i)" + pat.Regex)
			if err != nil {
				continue
			}
			cp.patterns = append(cp.patterns, compiledPattern{re: re, Pattern: pat})
		}
		compiled = append(compiled, cp)
	}

	m.profiles = compiled
}
