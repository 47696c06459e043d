// Package schema describes the three logical tables the pipeline handles:
// their columns, value kinds, enum domains and natural keys.
//
// The contracts here are the single source of truth for the transformer
// (which casts by Kind), the validator (enum domains, required columns) and
// the loader (Arrow column types).
package schema

// Kind is the typed interpretation of a column after transform.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindDate   Kind = "date"
	KindBool   Kind = "bool"
)

// Logical table names, used as map keys between stages.
const (
	TableSamples   = "samples"
	TableRuns      = "runs"
	TableQCMetrics = "qc_metrics"
)

// Audit columns appended by the ingestor to every table.
const (
	ColIngestedAt = "ingested_at"
	ColSourceFile = "source_file"
	ColRowHash    = "row_hash"
)

// AuditColumns lists the audit columns in the order they are appended.
var AuditColumns = []string{ColIngestedAt, ColSourceFile, ColRowHash}

// Field is one column of a contract.
type Field struct {
	Name     string   `json:"name"`
	Type     Kind     `json:"type"`
	Required bool     `json:"required,omitempty"`
	Enum     []string `json:"enum,omitempty"`
	// Upper folds the normalized value to upper case.
	Upper bool `json:"upper,omitempty"`
	// Optional fields are only transformed when the column is present.
	Optional bool `json:"optional,omitempty"`
}

// Contract describes one logical table.
type Contract struct {
	Name string `json:"name"`
	// File is the fixed input file name for the table.
	File string `json:"file"`
	// Key is the natural key used for dedup and referential checks.
	Key    string  `json:"key,omitempty"`
	Fields []Field `json:"fields"`
}

// Field returns the named field.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KindOf returns the kind of col. Columns the contract does not know about
// (audit columns, extra input columns) are strings.
func (c Contract) KindOf(col string) Kind {
	if f, ok := c.Field(col); ok {
		return f.Type
	}
	return KindString
}

var (
	// Platforms is the canonical sequencing platform domain.
	Platforms = []string{"ILLUMINA", "NANOPORE", "PACBIO", "ION_TORRENT"}
	// LibraryLayouts is the canonical library layout domain.
	LibraryLayouts = []string{"SINGLE", "PAIRED"}
)

// Samples is the dimension table of biological specimens.
var Samples = Contract{
	Name: TableSamples,
	File: "samples.csv",
	Key:  "sample_id",
	Fields: []Field{
		{Name: "sample_id", Type: KindString, Required: true},
		{Name: "project_id", Type: KindString},
		{Name: "organism", Type: KindString},
		{Name: "tissue", Type: KindString},
		{Name: "collection_date", Type: KindDate},
		{Name: "platform", Type: KindString, Required: true, Enum: Platforms, Upper: true},
	},
}

// Runs is the fact table of sequencing runs.
var Runs = Contract{
	Name: TableRuns,
	File: "runs.csv",
	Key:  "run_id",
	Fields: []Field{
		{Name: "run_id", Type: KindString, Required: true},
		{Name: "sample_id", Type: KindString, Required: true},
		{Name: "library_layout", Type: KindString, Required: true, Enum: LibraryLayouts, Upper: true},
		{Name: "read_length", Type: KindInt, Required: true},
		{Name: "fastq_gb", Type: KindFloat, Required: true},
		{Name: "md5_1", Type: KindString, Optional: true},
		{Name: "md5_2", Type: KindString, Optional: true},
	},
}

// QCMetrics is the fact table of per-run QC measurements.
var QCMetrics = Contract{
	Name: TableQCMetrics,
	File: "qc_metrics.tsv",
	Fields: []Field{
		{Name: "run_id", Type: KindString, Required: true},
		{Name: "total_reads", Type: KindInt},
		{Name: "q30_rate", Type: KindFloat},
		{Name: "gc_percent", Type: KindFloat},
		{Name: "duplication_rate", Type: KindFloat},
		{Name: "adapter_content_flag", Type: KindBool, Optional: true},
	},
}

// Contracts returns the three contracts in pipeline order.
func Contracts() []Contract {
	return []Contract{Samples, Runs, QCMetrics}
}

// ByName returns the contract for a logical table name.
func ByName(name string) (Contract, bool) {
	for _, c := range Contracts() {
		if c.Name == name {
			return c, true
		}
	}
	return Contract{}, false
}
