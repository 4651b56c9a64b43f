// Package progress prints human-readable per-stage lines to stdout while the
// pipeline runs. It is display only; structured logging stays in slog.
package progress

import (
	"github.com/pterm/pterm"

	"github.com/atx-oem/sesdrop/stats"
)

// Printer writes one line per pipeline event when enabled.
type Printer struct {
	enabled bool
}

// New creates a printer. Stage lines are only shown at the default "info"
// level; debug runs rely on slog output instead.
func New(logLevel string) *Printer {
	return &Printer{enabled: logLevel == "info"}
}

func (p *Printer) Update(evt stats.Event) {
	if !p.enabled {
		return
	}

	switch evt.Type {
	case stats.EventTypeLocated:
		pterm.Info.Printf("Most recent email object: %s\n", evt.Key)
	case stats.EventTypeFetched:
		pterm.Info.Printf("Fetched %s (%s)\n", evt.Key, evt.Detail)
	case stats.EventTypeDuplicate:
		pterm.Warning.Printf("Already processed, matched %s\n", evt.Key)
	case stats.EventTypeRejected:
		pterm.Error.Printf("Provenance gate failed: %s\n", evt.Detail)
	case stats.EventTypeExtracted:
		pterm.Info.Printf("Extracted %d attachment(s) to %s\n", evt.Count, evt.Detail)
	case stats.EventTypeUploaded:
		pterm.Info.Printf("Uploaded %s\n", evt.Key)
	case stats.EventTypePromoted:
		pterm.Info.Printf("Promoted most recent data to %s\n", evt.Key)
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Done prints the closing line for a finished run.
func (p *Printer) Done(outcome string) {
	if !p.enabled {
		return
	}
	switch outcome {
	case "processed":
		pterm.Success.Println("Attachments uploaded.")
	case "duplicate":
		pterm.Info.Println("Nothing to do.")
	case "rejected":
		pterm.Warning.Println("Message rejected, nothing uploaded.")
	}
}
