package reconcile

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// entrySeparator splits a delimited list into entries.
	entrySeparator = "|"
	// roleSeparator splits an entry into role and name.
	roleSeparator = ":"
)

// barPattern matches a trailing parenthesised bar-registration segment,
// e.g. "Jane Roe (OAB123)".
var barPattern = regexp.MustCompile(`\(([^()]*)\)\s*$`)

// ParseParticipants parses a delimited participant list. Entries missing
// the role separator are returned as errors and skipped; well-formed
// entries are still returned alongside them.
func ParseParticipants(list string) ([]Participant, []error) {
	var (
		parsed []Participant
		errs   []error
	)
	for _, entry := range strings.Split(list, entrySeparator) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		role, name, found := strings.Cut(entry, roleSeparator)
		if !found {
			errs = append(errs, fmt.Errorf("reconcile: malformed participant entry %q", entry))
			continue
		}
		parsed = append(parsed, Participant{
			Role: strings.TrimSpace(role),
			Name: strings.TrimSpace(name),
		})
	}
	return parsed, errs
}

// ParseAttorneys parses a delimited attorney list, extracting a trailing
// parenthesised bar registration from each name and stripping it from
// the stored name.
func ParseAttorneys(list string) ([]Participant, []error) {
	parsed, errs := ParseParticipants(list)
	for i := range parsed {
		name, bar := extractBar(parsed[i].Name)
		parsed[i].Name = name
		parsed[i].BarRegistration = bar
	}
	return parsed, errs
}

func extractBar(name string) (string, string) {
	m := barPattern.FindStringSubmatch(name)
	if m == nil {
		return name, ""
	}
	stripped := strings.TrimSpace(strings.TrimSuffix(name, m[0]))
	return stripped, strings.TrimSpace(m[1])
}
