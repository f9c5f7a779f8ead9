// Package metrics persists one flat JSON record per encoding run. Fields
// accumulate across process runs; writing a field never clobbers unrelated
// fields already on disk.
package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Well-known record fields.
const (
	FieldEncoder      = "encoder"
	FieldRevision     = "revision"
	FieldDefines      = "defines"
	FieldCmdline      = "cmdline"
	FieldInput        = "input"
	FieldResolution   = "resolution"
	FieldEncodingTime = "encoding_time"
	FieldBitrate      = "bitrate"
	FieldPSNR         = "psnr_avg"
	FieldSSIM         = "ssim_avg"
	FieldVMAF         = "vmaf_avg"
)

// qualityFields are the fields produced by the metric computation pass, as
// opposed to the encode pass.
var qualityFields = []string{FieldPSNR, FieldSSIM, FieldVMAF}

// MissingMetricError distinguishes "never measured" from "measured as zero".
type MissingMetricError struct {
	Path  string
	Field string
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("metric %q not present in %s", e.Field, e.Path)
}

// Store reads and writes the metrics record at one path. A missing file is
// an empty record. Each mutation is a full read-merge-write cycle so fields
// written by earlier passes survive.
type Store struct {
	path string
}

func NewStore(path string) *Store { return &Store{path: path} }

func (s *Store) Path() string { return s.path }

// Record returns the full field map, empty when the file does not exist.
func (s *Store) Record() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metrics record: %w", err)
	}
	rec := map[string]any{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing metrics record %s: %w", s.path, err)
	}
	return rec, nil
}

func (s *Store) write(rec map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics record: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing metrics record: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Set merges one field into the persisted record.
func (s *Store) Set(field string, value any) error {
	return s.SetAll(map[string]any{field: value})
}

// SetAll merges several fields in one read-merge-write cycle.
func (s *Store) SetAll(fields map[string]any) error {
	rec, err := s.Record()
	if err != nil {
		return err
	}
	for k, v := range fields {
		rec[k] = v
	}
	return s.write(rec)
}

// Get returns a field's raw value or MissingMetricError.
func (s *Store) Get(field string) (any, error) {
	rec, err := s.Record()
	if err != nil {
		return nil, err
	}
	v, ok := rec[field]
	if !ok {
		return nil, &MissingMetricError{Path: s.path, Field: field}
	}
	return v, nil
}

// GetFloat returns a numeric field.
func (s *Store) GetFloat(field string) (float64, error) {
	v, err := s.Get(field)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("metric %q in %s is not numeric (%T)", field, s.path, v)
	}
	return f, nil
}

// GetString returns a string field.
func (s *Store) GetString(field string) (string, error) {
	v, err := s.Get(field)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("metric %q in %s is not a string (%T)", field, s.path, v)
	}
	return str, nil
}

// Has reports whether a field has ever been written.
func (s *Store) Has(field string) bool {
	rec, err := s.Record()
	if err != nil {
		return false
	}
	_, ok := rec[field]
	return ok
}

// HasQualityMetrics reports whether any quality metric has been computed.
func (s *Store) HasQualityMetrics() bool {
	rec, err := s.Record()
	if err != nil {
		return false
	}
	for _, f := range qualityFields {
		if _, ok := rec[f]; ok {
			return true
		}
	}
	return false
}
