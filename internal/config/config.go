// Package config defines the configuration model for genoetl. A Pipeline is
// decoded from a JSON or YAML file (chosen by extension), layered over
// Default, and then overridden from the environment. Command-line flags are
// applied last by the CLI.
//
// Example (trimmed):
//
//	input: data/raw
//	output: data/processed
//	mode: quarantine
//	partition_cols: [library_layout]
//	storage: { kind: sqlite, dsn: data/.pipeline_history.db }
//	metrics: { backend: prompush, pushgateway_url: http://localhost:9091 }
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied before a file or the environment is read.
const (
	DefaultInput        = "data/raw"
	DefaultOutput       = "data/processed"
	DefaultMode         = "strict"
	DefaultStorageKind  = "sqlite"
	DefaultStorageDSN   = "data/.pipeline_history.db"
	DefaultRegion       = "us-east-1"
	DefaultS3Prefix     = "genomics/curated/"
	DefaultScheduleFile = "data/.schedule_config.json"
	DefaultErrorLimit   = 50
)

// Environment variables read by ApplyEnv.
const (
	EnvInput          = "GENOETL_INPUT_DIR"
	EnvOutput         = "GENOETL_OUTPUT_DIR"
	EnvMode           = "GENOETL_MODE"
	EnvHistoryDSN     = "GENOETL_HISTORY_DSN"
	EnvErrorLimit     = "GENOETL_ERROR_LIMIT"
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDatadogAddr    = "DD_AGENT_ADDR"
	EnvS3Bucket       = "S3_BUCKET"
	EnvS3Endpoint     = "S3_ENDPOINT"
	EnvRegion         = "AWS_DEFAULT_REGION"
	EnvAccessKeyID    = "AWS_ACCESS_KEY_ID"
	EnvSecretKey      = "AWS_SECRET_ACCESS_KEY"
)

// Pipeline is the top-level configuration object.
type Pipeline struct {
	// Input is the directory holding samples.csv, runs.csv and qc_metrics.tsv.
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
	// Mode is the validation failure policy, "strict" or "quarantine".
	Mode          string   `json:"mode" yaml:"mode"`
	PartitionCols []string `json:"partition_cols" yaml:"partition_cols"`
	// QuarantineDir defaults to <output>/_quarantine when empty.
	QuarantineDir string `json:"quarantine_dir" yaml:"quarantine_dir"`
	// Compression is the parquet codec; empty means zstd.
	Compression string `json:"compression" yaml:"compression"`
	// Encoding of the input files; empty means UTF-8.
	Encoding string `json:"encoding" yaml:"encoding"`

	Storage  Storage       `json:"storage" yaml:"storage"`
	Metrics  Metrics       `json:"metrics" yaml:"metrics"`
	S3       S3            `json:"s3" yaml:"s3"`
	Schedule Schedule      `json:"schedule" yaml:"schedule"`
	Runtime  RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// Storage selects the run-history backend.
type Storage struct {
	// Kind is one of sqlite, postgres, mssql, mysql.
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is prompush, datadog, or none.
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
	// Job is the Pushgateway job and the job label on every metric.
	Job string `json:"job" yaml:"job"`
	// Options carries backend-specific settings, e.g. "namespace" and "tags"
	// for datadog.
	Options Options `json:"options" yaml:"options"`
}

// S3 configures the object store used by s3-push and s3-pull. Credentials are
// only ever taken from the environment.
type S3 struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"-" yaml:"-"`
	SecretAccessKey string `json:"-" yaml:"-"`
}

// Schedule locates the persisted job registry.
type Schedule struct {
	File string `json:"file" yaml:"file"`
}

// RuntimeConfig holds run-time knobs.
type RuntimeConfig struct {
	// ErrorLimit is how many violations are stored with a run's history.
	ErrorLimit int `json:"error_limit" yaml:"error_limit"`
}

// Default returns the configuration used when nothing else is set.
func Default() Pipeline {
	return Pipeline{
		Input:    DefaultInput,
		Output:   DefaultOutput,
		Mode:     DefaultMode,
		Storage:  Storage{Kind: DefaultStorageKind, DSN: DefaultStorageDSN},
		Metrics:  Metrics{Backend: "none", Job: "genoetl"},
		S3:       S3{Prefix: DefaultS3Prefix, Region: DefaultRegion},
		Schedule: Schedule{File: DefaultScheduleFile},
		Runtime:  RuntimeConfig{ErrorLimit: DefaultErrorLimit},
	}
}

// Format of a config file.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatOf maps a file extension to a Format.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("config: unsupported file extension %q (expected .json, .yaml or .yml)", filepath.Ext(path))
}

// Decode reads a config in the given format over Default. Fields absent from
// the document keep their default.
func Decode(r io.Reader, format string) (Pipeline, error) {
	p := Default()
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return p, fmt.Errorf("config: decode json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return p, fmt.Errorf("config: decode yaml: %w", err)
		}
	default:
		return p, fmt.Errorf("config: unknown format %q", format)
	}
	return p, nil
}

// Load reads path, or returns Default when path is empty, and then applies
// the process environment.
func Load(path string) (Pipeline, error) {
	p := Default()
	if path != "" {
		format, err := FormatOf(path)
		if err != nil {
			return p, err
		}
		f, err := os.Open(path)
		if err != nil {
			return p, fmt.Errorf("config: open: %w", err)
		}
		defer f.Close()
		if p, err = Decode(f, format); err != nil {
			return p, err
		}
	}
	ApplyEnv(&p, os.Getenv)
	return p, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides p from the variables getenv returns. Unset or empty
// variables leave the field alone.
func ApplyEnv(p *Pipeline, getenv func(string) string) {
	pick(&p.Input, getenv(EnvInput))
	pick(&p.Output, getenv(EnvOutput))
	pick(&p.Mode, getenv(EnvMode))
	pick(&p.Storage.DSN, getenv(EnvHistoryDSN))
	pick(&p.Metrics.Backend, getenv(EnvMetricsBackend))
	pick(&p.Metrics.PushgatewayURL, getenv(EnvPushgatewayURL))
	pick(&p.Metrics.DatadogAddr, getenv(EnvDatadogAddr))
	pick(&p.S3.Bucket, getenv(EnvS3Bucket))
	pick(&p.S3.Endpoint, getenv(EnvS3Endpoint))
	pick(&p.S3.Region, getenv(EnvRegion))
	pick(&p.S3.AccessKeyID, getenv(EnvAccessKeyID))
	pick(&p.S3.SecretAccessKey, getenv(EnvSecretKey))
	p.Runtime.ErrorLimit = pickInt(getenvInt(getenv, EnvErrorLimit, 0), p.Runtime.ErrorLimit)
	if p.S3.Region == "" {
		p.S3.Region = DefaultRegion
	}
}

func pick(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// getenvInt reads an int from getenv, returning def when unset or invalid.
func getenvInt(getenv func(string) string, k string, def int) int {
	if s := getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value a, otherwise returns b.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// Options is a small helper to fetch typed values from free-form maps decoded
// from JSON or YAML. It performs only minimal coercion and returns the
// provided default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64 and yaml.v3 as int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// StringMap returns a map[string]string for key when the value is an object.
// Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
