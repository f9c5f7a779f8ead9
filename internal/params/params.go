// Package params models the command-line parameter set of a single encoder
// configuration and its canonical, order-independent rendering. The canonical
// argument sequence doubles as a cache and output-path key, so two raw
// spellings of the same effective flags must canonicalize identically.
package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ConfigurationError reports an invalid or ambiguous argument string, such
// as a duplicated flag or a flag given in both plain and negated form.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid arguments: %s: option %q", e.Reason, e.Option)
}

// Set is an immutable encoder parameter set: one point of a quality sweep
// plus the free-form arguments shared by the whole test. Equality is
// structural over all five fields.
type Set struct {
	Quality      Quality
	QualityValue float64
	Seek         int
	Frames       int
	Args         string
}

// noValue marks a boolean flag in the parsed option map.
const noValue = "\x00"

// FormatValue renders a quality value without a trailing ".0" for integers.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isLongOption(s string) bool {
	return strings.HasPrefix(s, "--")
}

func isShortOption(s string) bool {
	return !isLongOption(s) && strings.HasPrefix(s, "-")
}

func isOption(s string) bool {
	return isLongOption(s) || isShortOption(s)
}

// rawArgs assembles the unsplit argument string, optionally with the
// quality flag appended using the encoder-specific spelling.
func (s Set) rawArgs(qualityFlag string, includeQuality bool) string {
	args := s.Args
	if s.Seek > 0 {
		args += fmt.Sprintf(" --seek %d", s.Seek)
	}
	if s.Frames > 0 {
		args += fmt.Sprintf(" --frames %d", s.Frames)
	}
	if includeQuality && qualityFlag != "" {
		args += fmt.Sprintf(" %s %s", qualityFlag, FormatValue(s.QualityValue))
	}
	return args
}

// splitTokens splits the raw string into separate option and value tokens.
// A short option carries its value attached (-n256), a long option may use
// an equals sign (--frames=256).
func splitTokens(raw string) []string {
	var tokens []string
	for _, field := range strings.Fields(raw) {
		switch {
		case isShortOption(field):
			tokens = append(tokens, field[:2])
			if rest := strings.TrimSpace(field[2:]); rest != "" {
				tokens = append(tokens, rest)
			}
		case isLongOption(field) && strings.Contains(field, "="):
			name, value, _ := strings.Cut(field, "=")
			tokens = append(tokens, name, value)
		default:
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// parseOptions pairs each option with its value. Duplicate options and
// plain/negated conflicts are configuration errors, never silently resolved.
func parseOptions(tokens []string) (map[string]string, error) {
	opts := make(map[string]string, len(tokens))

	for i := 0; i < len(tokens); {
		name := tokens[i]
		value := noValue
		if isOption(name) && i+1 < len(tokens) && !isOption(tokens[i+1]) {
			value = tokens[i+1]
			i += 2
		} else {
			i++
		}

		if _, ok := opts[name]; ok {
			return nil, &ConfigurationError{Option: name, Reason: "duplicate option"}
		}
		opts[name] = value
	}

	for name := range opts {
		bare := strings.TrimLeft(name, "-")
		if _, ok := opts["--no-"+bare]; ok && !strings.HasPrefix(bare, "no-") {
			return nil, &ConfigurationError{Option: name, Reason: "conflicting negated option"}
		}
	}

	return opts, nil
}

// Canonical renders the parameter set as a deterministic argument list:
// designated positional flags first in their fixed order, then boolean
// flags, long value flags and short value flags, each group sorted.
// The result is a pure function of the set, so permuted raw spellings of
// the same flags produce identical output.
func (s Set) Canonical(positional []string, qualityFlag string, includeQuality bool) ([]string, error) {
	opts, err := parseOptions(splitTokens(s.rawArgs(qualityFlag, includeQuality)))
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, 2*len(opts))

	emit := func(name string) {
		out = append(out, name)
		if v := opts[name]; v != noValue {
			out = append(out, v)
		}
		delete(opts, name)
	}

	for _, name := range positional {
		if _, ok := opts[name]; ok {
			emit(name)
		}
	}

	rest := make([]string, 0, len(opts))
	for name := range opts {
		rest = append(rest, name)
	}
	sort.Strings(rest)

	for _, name := range rest {
		if opts[name] == noValue {
			emit(name)
		}
	}
	for _, name := range rest {
		if _, ok := opts[name]; ok && isLongOption(name) {
			emit(name)
		}
	}
	for _, name := range rest {
		if _, ok := opts[name]; ok {
			emit(name)
		}
	}

	return out, nil
}

// CanonicalString is Canonical joined with single spaces.
func (s Set) CanonicalString(positional []string, qualityFlag string, includeQuality bool) (string, error) {
	args, err := s.Canonical(positional, qualityFlag, includeQuality)
	if err != nil {
		return "", err
	}
	return strings.Join(args, " "), nil
}

// Validate checks the argument string for duplicate and conflicting flags
// without rendering it.
func (s Set) Validate() error {
	_, err := parseOptions(splitTokens(s.rawArgs("", false)))
	return err
}
