package model

import "time"

// StorageObject is a read-only snapshot of an object listed or fetched from
// the bucket.
type StorageObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Email is the fetched inbound message: the raw bytes decoded to text plus
// the SHA-256 hex digest of the raw bytes (computed before decoding so the
// fingerprint is independent of text handling).
type Email struct {
	Key     string
	Content string
	Hash    string
	Size    int64
}

// ShortHash returns the first 8 hex characters of the content hash. It is
// embedded in published folder names and doubles as the dedup token.
func (e Email) ShortHash() string {
	if len(e.Hash) < 8 {
		return e.Hash
	}
	return e.Hash[:8]
}

// Outcome classifies how a pipeline run ended when no error occurred.
type Outcome int

const (
	// OutcomeProcessed means attachments were extracted and published.
	OutcomeProcessed Outcome = iota
	// OutcomeDuplicate means the email's content hash was already published;
	// nothing to do.
	OutcomeDuplicate
	// OutcomeRejected means the provenance gate failed; the message was not
	// extracted or published.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ExitCode maps an outcome to the documented process exit code.
// 0 processed, 2 rejected by the provenance gate, 3 duplicate.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeDuplicate:
		return 3
	case OutcomeRejected:
		return 2
	default:
		return 0
	}
}
