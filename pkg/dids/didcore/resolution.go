package didcore

import (
	"github.com/pkg/errors"
)

// ResolutionError is a DID resolution error code.
type ResolutionError string

const (
	ResolutionErrorInvalidDID                 ResolutionError = "invalidDid"
	ResolutionErrorMethodNotSupported         ResolutionError = "methodNotSupported"
	ResolutionErrorNotFound                   ResolutionError = "notFound"
	ResolutionErrorRepresentationNotSupported ResolutionError = "representationNotSupported"
)

// ErrResolution is the sentinel wrapped by ResolutionResult.Err.
var ErrResolution = errors.New("DID resolution failed")

// ResolutionResult is the output of DID resolution. Failures are carried in ResolutionMetadata.Error rather than
// returned as Go errors.
type ResolutionResult struct {
	Context            string             `json:"@context,omitempty"`
	ResolutionMetadata ResolutionMetadata `json:"didResolutionMetadata"`
	Document           *Document          `json:"didDocument,omitempty"`
	DocumentMetadata   DocumentMetadata   `json:"didDocumentMetadata"`
}

// ResolutionMetadata describes the resolution process.
type ResolutionMetadata struct {
	ContentType string          `json:"contentType,omitempty"`
	Error       ResolutionError `json:"error,omitempty"`
}

// DocumentMetadata describes the resolved document.
type DocumentMetadata struct {
	Created       string   `json:"created,omitempty"`
	Updated       string   `json:"updated,omitempty"`
	Deactivated   bool     `json:"deactivated,omitempty"`
	VersionID     string   `json:"versionId,omitempty"`
	NextUpdate    string   `json:"nextUpdate,omitempty"`
	NextVersionID string   `json:"nextVersionId,omitempty"`
	EquivalentID  []string `json:"equivalentId,omitempty"`
	CanonicalID   string   `json:"canonicalId,omitempty"`
}

// ResolutionResultWithDocument wraps a successfully resolved document.
func ResolutionResultWithDocument(document Document) ResolutionResult {
	return ResolutionResult{
		ResolutionMetadata: ResolutionMetadata{ContentType: "application/did+json"},
		Document:           &document,
	}
}

// ResolutionResultWithError creates a failed result with the given error code.
func ResolutionResultWithError(code ResolutionError) ResolutionResult {
	return ResolutionResult{ResolutionMetadata: ResolutionMetadata{Error: code}}
}

// Failed reports whether the result carries an error or no document.
func (r ResolutionResult) Failed() bool {
	return r.ResolutionMetadata.Error != "" || r.Document.IsEmpty()
}

// Err returns nil for a successful result and an error wrapping ErrResolution otherwise.
func (r ResolutionResult) Err() error {
	if r.ResolutionMetadata.Error != "" {
		return errors.Wrap(ErrResolution, string(r.ResolutionMetadata.Error))
	}
	if r.Document.IsEmpty() {
		return errors.Wrap(ErrResolution, "no document in resolution result")
	}
	return nil
}
