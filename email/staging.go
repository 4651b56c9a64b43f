package email

import (
	"fmt"
	"os"
)

// Staging is the per-run temporary directory that holds extracted
// attachments. It belongs to exactly one pipeline run and is removed by Close
// on every exit path unless keep was requested.
type Staging struct {
	Dir  string
	keep bool
}

func NewStaging(keep bool) (*Staging, error) {
	dir, err := os.MkdirTemp("", "sesdrop-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Staging{Dir: dir, keep: keep}, nil
}

func (s *Staging) Close() error {
	if s.keep {
		return nil
	}
	return os.RemoveAll(s.Dir)
}
