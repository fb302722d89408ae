package anno

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// metaChars are the regex metacharacters that end a literal prefix run.
// Recognizing them (rather than compiling a full AST) is enough to find
// the leading literal span the planner and guess_max_count_regex need.
const metaChars = `.*+?()[]{}|^$\`

// literalPrefix extracts the leading literal run of an AQL regex pattern,
// resolving \xHH escapes along the way (spec §4.1: "for regexes with an
// extractable literal prefix... without a prefix the estimate assumes
// every value may match"). exact is true when the whole pattern reduces
// to a literal string (spec §4.5: "a regex whose parsed AST reduces to an
// exact string... becomes an exact-value lookup").
func literalPrefix(pattern string) (prefix string, exact bool) {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		if c == '\\' {
			if i+1 < len(pattern) && pattern[i+1] == 'x' && i+3 < len(pattern) {
				hex := pattern[i+2 : i+4]
				if v, err := strconv.ParseUint(hex, 16, 8); err == nil {
					b.WriteByte(byte(v))
					i += 4
					continue
				}
			}
			if i+1 < len(pattern) && strings.ContainsRune(metaChars, rune(pattern[i+1])) {
				b.WriteByte(pattern[i+1])
				i += 2
				continue
			}
			break
		}
		if strings.ContainsRune(`.*+?()[]{}|^$`, rune(c)) {
			break
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), i == len(pattern)
}

// CompileRegex2 compiles pattern with the backtracking regexp2 engine,
// used instead of stdlib regexp because AQL's Rust-flavored regex dialect
// allows constructs (notably \x escapes outside of character classes)
// that Go's RE2-based regexp cannot express identically.
func CompileRegex2(pattern string) (*regexp2.Regexp, error) {
	return regexp2.Compile(pattern, regexp2.None)
}

// MatchRegex2 reports whether value matches re, translating regexp2's
// timeout/backtracking error into a plain bool false rather than
// propagating an error for pathological patterns — regex_scan and
// guess_max_count_regex treat "could not decide" as "does not match"
// since both are read-only estimates, never correctness-critical.
func MatchRegex2(re *regexp2.Regexp, value string) bool {
	ok, err := re.MatchString(value)
	return err == nil && ok
}
