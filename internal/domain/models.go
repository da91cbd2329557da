package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ArtifactKind distinguishes the two upload payload families.
type ArtifactKind string

const (
	KindImage ArtifactKind = "image"
	KindPDF   ArtifactKind = "pdf"
)

// NormalizedArtifact is the local upload payload produced from a source
// document: JPEG for image sources, optimized PDF for PDF sources.
type NormalizedArtifact struct {
	SourcePath  string       `json:"source_path"`
	Path        string       `json:"path"`
	Kind        ArtifactKind `json:"kind"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
	Pages       int          `json:"pages,omitempty"`
}

// RemoteObject identifies the uploaded artifact in the object store.
type RemoteObject struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (o RemoteObject) URI() string {
	return "s3://" + o.Bucket + "/" + o.Key
}

// ObjectMetadata is what a HEAD-style stat of the remote object reports.
type ObjectMetadata struct {
	ContentType   string    `json:"content_type"`
	ContentLength int64     `json:"content_length"`
	LastModified  time.Time `json:"last_modified"`
	ETag          string    `json:"etag,omitempty"`
}

// JobStatus mirrors the analysis service's job status vocabulary.
type JobStatus string

const (
	JobStatusInProgress     JobStatus = "IN_PROGRESS"
	JobStatusSucceeded      JobStatus = "SUCCEEDED"
	JobStatusFailed         JobStatus = "FAILED"
	JobStatusPartialSuccess JobStatus = "PARTIAL_SUCCESS"
)

// Terminal reports whether polling stops at this status. Only SUCCEEDED
// and FAILED end a job; any other value keeps the poll loop going.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// AnalysisOptions parameterize a job submission.
type AnalysisOptions struct {
	FeatureTypes       []string `json:"feature_types"`
	JobTag             string   `json:"job_tag,omitempty"`
	ClientRequestToken string   `json:"client_request_token,omitempty"`
}

// JobSnapshot is a single observation of the remote analysis job. Raw
// holds the complete service response as JSON so the terminal snapshot
// can be persisted without re-querying.
type JobSnapshot struct {
	JobID         string          `json:"job_id"`
	Status        JobStatus       `json:"status"`
	StatusMessage string          `json:"status_message,omitempty"`
	Pages         int32           `json:"pages,omitempty"`
	Blocks        int             `json:"blocks,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// RunReport summarizes one completed pipeline run.
type RunReport struct {
	Object     RemoteObject  `json:"object"`
	JobID      string        `json:"job_id"`
	Status     JobStatus     `json:"status"`
	ResultPath string        `json:"result_path,omitempty"`
	Polls      int           `json:"polls"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Feature types understood by the analysis service.
const (
	FeatureForms      = "FORMS"
	FeatureTables     = "TABLES"
	FeatureQueries    = "QUERIES"
	FeatureSignatures = "SIGNATURES"
	FeatureLayout     = "LAYOUT"
)

var knownFeatureTypes = map[string]struct{}{
	FeatureForms:      {},
	FeatureTables:     {},
	FeatureQueries:    {},
	FeatureSignatures: {},
	FeatureLayout:     {},
}

// NormalizeFeatureTypes upper-cases, trims and deduplicates the given
// feature names, rejecting anything the analysis service does not know.
func NormalizeFeatureTypes(raw []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{}, len(raw))
	for _, f := range raw {
		name := strings.ToUpper(strings.TrimSpace(f))
		if name == "" {
			continue
		}
		if _, ok := knownFeatureTypes[name]; !ok {
			return nil, fmt.Errorf("unknown feature type %q (known: %s)", f, strings.Join(featureTypeNames(), ", "))
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one feature type is required")
	}
	return out, nil
}

func featureTypeNames() []string {
	return []string{FeatureForms, FeatureTables, FeatureQueries, FeatureSignatures, FeatureLayout}
}
