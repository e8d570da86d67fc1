package tags

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NoInstruction is the week tag for a week without instruction.
const NoInstruction = "SN"

var (
	weekCleanRe  = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	phaseCleanRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

	snRe     = regexp.MustCompile(`(?i)\bSN\b`)
	siRe     = regexp.MustCompile(`(?i)\bSI\s+(\d{1,2})`)
	sebRe    = regexp.MustCompile(`(?i)\bS(\d{1,2})\s*/\s*EB\b`)
	semanaRe = regexp.MustCompile(`(?i)\bSEMANA\s+DE\s+INSTRU[CÇ][AÃ]O\s*(\d{1,2})\b`)

	opTypeRe  = regexp.MustCompile(`\(([^)]+)\)`)
	opStripRe = regexp.MustCompile(`\s*\([^)]+\)`)
)

// DefaultPhases is the phase vocabulary in match priority order.
var DefaultPhases = []string{"IIB", "IIQ", "ADST", "IIA", "IIC", "ADM", "MDD ADM"}

// ExtractWeekTag finds an instruction-week tag in free text. Patterns are
// tried in order: a standalone "SN", "SI <n>", "S<n>/EB" and
// "SEMANA DE INSTRUÇÃO <n>". Numbers are zero-padded to two digits; zero
// means no instruction.
func ExtractWeekTag(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	clean := weekCleanRe.ReplaceAllString(text, " ")

	if snRe.MatchString(clean) {
		return NoInstruction, true
	}
	if m := siRe.FindStringSubmatch(clean); m != nil {
		return weekNumber(m[1]), true
	}
	// The slash is part of this token, so it is matched before cleaning.
	if m := sebRe.FindStringSubmatch(text); m != nil {
		return weekNumber(m[1]), true
	}
	if m := semanaRe.FindStringSubmatch(clean); m != nil {
		return weekNumber(m[1]), true
	}
	return "", false
}

func weekNumber(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return NoInstruction
	}
	return fmt.Sprintf("%02d", n)
}

// PhaseMatcher finds phase codes from a fixed vocabulary. Patterns are
// compiled once at construction.
type PhaseMatcher struct {
	phases []string
	words  []*regexp.Regexp
}

// NewPhaseMatcher compiles vocabulary, keeping its order as match priority.
func NewPhaseMatcher(vocabulary []string) *PhaseMatcher {
	m := &PhaseMatcher{
		phases: make([]string, len(vocabulary)),
		words:  make([]*regexp.Regexp, len(vocabulary)),
	}
	for i, phase := range vocabulary {
		m.phases[i] = phase
		m.words[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(phase) + `\b`)
	}
	return m
}

// Match returns the first vocabulary entry present in text, either as a
// whole word or as a substring of the upper-cased text.
func (m *PhaseMatcher) Match(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	clean := strings.ToUpper(phaseCleanRe.ReplaceAllString(text, ""))
	for i, phase := range m.phases {
		if m.words[i].MatchString(clean) || strings.Contains(clean, phase) {
			return phase, true
		}
	}
	return "", false
}

// ExtractPhase is a one-off Match against vocabulary.
func ExtractPhase(text string, vocabulary []string) (string, bool) {
	return NewPhaseMatcher(vocabulary).Match(text)
}

// ParseOperation splits an operations-calendar summary of the form
// "Name (TYPE)" into its name and upper-cased type. The type is empty when
// no parenthetical is present.
func ParseOperation(summary string) (name, typ string) {
	name = summary
	if m := opTypeRe.FindStringSubmatch(summary); m != nil {
		typ = strings.ToUpper(strings.TrimSpace(m[1]))
		name = strings.TrimSpace(opStripRe.ReplaceAllString(summary, ""))
	}
	return name, typ
}
