package config

import (
	"fmt"
	"net/url"
	"strings"

	"genoetl/internal/schema"
)

// IssueSeverity classifies a configuration issue.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one problem found by ValidatePipeline.
type Issue struct {
	Severity IssueSeverity
	// Path is the dotted location of the offending field, e.g. "storage.kind".
	Path    string
	Message string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// StorageKinds are the history backends the binary links in.
var StorageKinds = []string{"mssql", "mysql", "postgres", "sqlite"}

// MetricsBackends are the accepted metrics.backend values. "pushgateway" is
// an alias of prompush.
var MetricsBackends = []string{"", "none", "prompush", "pushgateway", "datadog"}

var compressions = []string{"", "zstd", "snappy", "gzip", "brotli", "none", "uncompressed"}

// ValidatePipeline lints p. It never stops at the first problem; callers
// decide what to do with warnings.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	issues = append(issues, validateDirs(p)...)
	issues = append(issues, validateMode(p.Mode)...)
	issues = append(issues, validatePartitions(p.PartitionCols)...)
	if !oneOf(strings.ToLower(p.Compression), compressions) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "compression",
			Message:  fmt.Sprintf("unknown parquet codec %q", p.Compression),
		})
	}
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validateS3(p.S3)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	return issues
}

func validateDirs(p Pipeline) []Issue {
	var issues []Issue
	if strings.TrimSpace(p.Input) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "input", Message: "input must not be empty"})
	}
	if strings.TrimSpace(p.Output) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "output", Message: "output must not be empty"})
	}
	if p.Input != "" && p.Input == p.Output {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output",
			Message:  "output equals input; artifacts will be written next to the raw files",
		})
	}
	return issues
}

func validateMode(m string) []Issue {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "", "strict", "quarantine":
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     "mode",
		Message:  fmt.Sprintf("unknown mode %q; expected strict or quarantine", m),
	}}
}

// validatePartitions checks that every partition column exists in both fact
// tables as the loader sees them: their own columns plus project_id joined
// from samples.
func validatePartitions(cols []string) []Issue {
	var issues []Issue
	seen := map[string]bool{}
	for i, c := range cols {
		path := fmt.Sprintf("partition_cols[%d]", i)
		if strings.TrimSpace(c) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: "partition column must not be empty"})
			continue
		}
		if seen[c] {
			issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf("duplicate partition column %q", c)})
			continue
		}
		seen[c] = true
		if c == "project_id" {
			continue
		}
		for _, ct := range []schema.Contract{schema.Runs, schema.QCMetrics} {
			if _, ok := ct.Field(c); !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path,
					Message:  fmt.Sprintf("column %q is not in %s", c, ct.Name),
				})
			}
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		return []Issue{{Severity: SeverityError, Path: "storage.kind", Message: "storage.kind must not be empty"}}
	}
	if !oneOf(s.Kind, StorageKinds) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; expected one of %s", s.Kind, strings.Join(StorageKinds, ", ")),
		})
	}
	// sqlite falls back to its default file; the servers need an address.
	if s.Kind != "sqlite" && strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "storage.dsn", Message: "storage.dsn must not be empty"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	if !oneOf(m.Backend, MetricsBackends) {
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; expected prompush, datadog or none", m.Backend),
		}}
	}
	switch m.Backend {
	case "prompush", "pushgateway":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: "metrics.pushgateway_url", Message: "pushgateway_url is required for prompush"})
		} else if u, err := url.Parse(m.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: "metrics.pushgateway_url", Message: fmt.Sprintf("invalid URL %q", m.PushgatewayURL)})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: "metrics.datadog_addr", Message: "datadog_addr is required for datadog"})
		}
	}
	return issues
}

func validateS3(s S3) []Issue {
	var issues []Issue
	if s.Prefix != "" && strings.HasPrefix(s.Prefix, "/") {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "s3.prefix", Message: "prefix starts with '/'; keys will begin with an empty segment"})
	}
	if s.Endpoint != "" {
		if u, err := url.Parse(s.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: "s3.endpoint", Message: fmt.Sprintf("invalid URL %q", s.Endpoint)})
		}
	}
	if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "s3", Message: "only one of the access key pair is set; the default credential chain will be used"})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	if r.ErrorLimit < 0 {
		return []Issue{{Severity: SeverityError, Path: "runtime.error_limit", Message: "error_limit must not be negative"}}
	}
	return nil
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
