package models

// Metadata is the versioned key/value payload attached to analysis results.
// Keys are restricted to the documented constants below; the "version" key is
// always present so consumers can detect schema drift.
type Metadata map[string]string

const MetadataVersion = "1"

// Documented metadata keys.
const (
	MetaKeyVersion       = "version"
	MetaKeyDepth         = "depth"         // analyze_grant_requirements: basic|deep
	MetaKeyInferredCount = "inferredCount" // analyze_grant_requirements: implicit requirements added by deep pass
	MetaKeyBackendUsed   = "backendUsed"   // analyze_grant_requirements: "true" when the text backend contributed
	MetaKeyLowSample     = "lowSample"     // analyze_success_patterns: "true" when sample size below minimum
	MetaKeySampleSize    = "sampleSize"    // analyze_success_patterns
	MetaKeyRuleSetID     = "ruleSetId"     // validate_compliance
	MetaKeyStoreWrite    = "storeWrite"    // dispatch: "failed" when persistence was skipped
)

// NewMetadata returns a payload stamped with the current schema version.
func NewMetadata() Metadata {
	return Metadata{MetaKeyVersion: MetadataVersion}
}

// AnalysisStatus distinguishes a genuine empty result from a failure. A
// handler that finds nothing returns StatusEmpty, never a bare zero value.
type AnalysisStatus string

const (
	StatusOK    AnalysisStatus = "ok"
	StatusEmpty AnalysisStatus = "empty"
)
