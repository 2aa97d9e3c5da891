package dialect

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Quoting holds the characters placed around a quoted identifier.
type Quoting struct {
	Prefix string
	Suffix string
}

// Quoting styles used by the bundled dialects.
var (
	QuotingNone     = Quoting{}
	QuotingANSI     = Quoting{Prefix: `"`, Suffix: `"`}
	QuotingBacktick = Quoting{Prefix: "`", Suffix: "`"}
)

// LetterCasing controls how identifiers are case-normalized before quoting.
type LetterCasing uint8

// Supported letter casings.
const (
	AsIs LetterCasing = iota
	UpperCase
	LowerCase
)

// IdentifierProcessing renders table names, column names and aliases.
// Every identifier in generated SQL goes through Process.
type IdentifierProcessing struct {
	Quoting Quoting
	Casing  LetterCasing
}

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

// StandardizeLetterCase applies the configured casing.
func (p IdentifierProcessing) StandardizeLetterCase(s string) string {
	switch p.Casing {
	case UpperCase:
		return upper.String(s)
	case LowerCase:
		return lower.String(s)
	default:
		return s
	}
}

// Quote wraps s with the configured quote characters. Embedded suffix
// characters are doubled.
func (p IdentifierProcessing) Quote(s string) string {
	if p.Quoting == QuotingNone {
		return s
	}
	if p.Quoting.Suffix != "" {
		s = strings.ReplaceAll(s, p.Quoting.Suffix, p.Quoting.Suffix+p.Quoting.Suffix)
	}
	return p.Quoting.Prefix + s + p.Quoting.Suffix
}

// Process standardizes the letter case and quotes the identifier.
func (p IdentifierProcessing) Process(s string) string {
	return p.Quote(p.StandardizeLetterCase(s))
}
