package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func TestValidateDefaultIsClean(t *testing.T) {
	if issues := ValidatePipeline(Default()); len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestValidatePipeline(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Pipeline)
		sev    IssueSeverity
		path   string
		substr string
	}{
		{"empty input", func(p *Pipeline) { p.Input = "" }, SeverityError, "input", "must not be empty"},
		{"empty output", func(p *Pipeline) { p.Output = " " }, SeverityError, "output", "must not be empty"},
		{"same dirs", func(p *Pipeline) { p.Output = p.Input }, SeverityWarning, "output", "equals input"},
		{"bad mode", func(p *Pipeline) { p.Mode = "lenient" }, SeverityError, "mode", "unknown mode"},
		{"bad codec", func(p *Pipeline) { p.Compression = "lzma" }, SeverityError, "compression", "unknown parquet codec"},
		{"partition not in qc", func(p *Pipeline) { p.PartitionCols = []string{"library_layout"} }, SeverityError, "partition_cols[0]", "not in qc_metrics"},
		{"partition unknown", func(p *Pipeline) { p.PartitionCols = []string{"nope"} }, SeverityError, "partition_cols[0]", "not in runs"},
		{"partition empty", func(p *Pipeline) { p.PartitionCols = []string{""} }, SeverityError, "partition_cols[0]", "must not be empty"},
		{"partition dup", func(p *Pipeline) { p.PartitionCols = []string{"project_id", "project_id"} }, SeverityWarning, "partition_cols[1]", "duplicate"},
		{"empty storage kind", func(p *Pipeline) { p.Storage.Kind = "" }, SeverityError, "storage.kind", "must not be empty"},
		{"unknown storage kind", func(p *Pipeline) { p.Storage.Kind = "oracle" }, SeverityError, "storage.kind", "unknown storage kind"},
		{"postgres without dsn", func(p *Pipeline) { p.Storage = Storage{Kind: "postgres"} }, SeverityError, "storage.dsn", "must not be empty"},
		{"unknown metrics", func(p *Pipeline) { p.Metrics.Backend = "statsd" }, SeverityError, "metrics.backend", "unknown metrics backend"},
		{"prompush without url", func(p *Pipeline) { p.Metrics.Backend = "prompush" }, SeverityError, "metrics.pushgateway_url", "required"},
		{"prompush bad url", func(p *Pipeline) {
			p.Metrics.Backend = "pushgateway"
			p.Metrics.PushgatewayURL = "localhost"
		}, SeverityError, "metrics.pushgateway_url", "invalid URL"},
		{"datadog without addr", func(p *Pipeline) { p.Metrics.Backend = "datadog" }, SeverityError, "metrics.datadog_addr", "required"},
		{"s3 bad endpoint", func(p *Pipeline) { p.S3.Endpoint = "minio:9000" }, SeverityError, "s3.endpoint", "invalid URL"},
		{"s3 leading slash", func(p *Pipeline) { p.S3.Prefix = "/genomics" }, SeverityWarning, "s3.prefix", "starts with"},
		{"s3 half key pair", func(p *Pipeline) { p.S3.AccessKeyID = "AK" }, SeverityWarning, "s3", "access key pair"},
		{"negative error limit", func(p *Pipeline) { p.Runtime.ErrorLimit = -1 }, SeverityError, "runtime.error_limit", "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.substr) {
				t.Fatalf("want %s at %s containing %q; got %+v", tt.sev, tt.path, tt.substr, issues)
			}
		})
	}
}

func TestValidateAcceptedValues(t *testing.T) {
	p := Default()
	p.Mode = "QUARANTINE"
	p.Compression = "Snappy"
	p.PartitionCols = []string{"project_id", "run_id"}
	p.Storage = Storage{Kind: "mysql", DSN: "u:p@tcp(h:3306)/db"}
	p.Metrics = Metrics{Backend: "prompush", PushgatewayURL: "http://localhost:9091"}
	p.S3 = S3{Bucket: "b", Endpoint: "http://localhost:9000", Region: "eu-west-1"}
	if issues := ValidatePipeline(p); HasErrors(issues) || len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestHasErrorsAndIssueError(t *testing.T) {
	w := Issue{Severity: SeverityWarning, Path: "s3", Message: "m"}
	e := Issue{Severity: SeverityError, Path: "mode", Message: "bad"}
	if HasErrors([]Issue{w}) {
		t.Fatal("warnings only")
	}
	if !HasErrors([]Issue{w, e}) {
		t.Fatal("want error")
	}
	if got := e.Error(); got != "error at mode: bad" {
		t.Fatalf("Error() = %q", got)
	}
}
