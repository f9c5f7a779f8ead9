package metrics

import (
	"fmt"
	"os"
	"strings"
)

// ReencodePolicy decides whether an existing output and record block a
// fresh encode.
type ReencodePolicy int

const (
	// Off re-encodes only when the output is gone with no quality metrics
	// computed yet, or when timing was never recorded.
	Off ReencodePolicy = iota
	// Soft re-encodes when the output file or the timing field is missing.
	Soft
	// Force always re-encodes.
	Force
)

func (p ReencodePolicy) String() string {
	switch p {
	case Force:
		return "force"
	case Soft:
		return "soft"
	default:
		return "off"
	}
}

// ParsePolicy maps a config string to a policy.
func ParsePolicy(s string) (ReencodePolicy, error) {
	switch strings.ToLower(s) {
	case "", "off":
		return Off, nil
	case "soft":
		return Soft, nil
	case "force":
		return Force, nil
	default:
		return Off, fmt.Errorf("unknown re-encode policy %q", s)
	}
}

// NeedsEncoding applies the policy truth table to one run's state.
func (p ReencodePolicy) NeedsEncoding(outputExists, hasTiming, hasQuality bool) bool {
	switch p {
	case Force:
		return true
	case Soft:
		return !outputExists || !hasTiming
	default:
		return (!outputExists && !hasQuality) || !hasTiming
	}
}

// NeedsEncodingFor evaluates the policy against the filesystem and store
// state of one run.
func (p ReencodePolicy) NeedsEncodingFor(outputPath string, store *Store) bool {
	_, statErr := os.Stat(outputPath)
	outputExists := statErr == nil
	return p.NeedsEncoding(outputExists, store.Has(FieldEncodingTime), store.HasQualityMetrics())
}
