// Package cmd holds auxiliary subcommands for the sesdrop binary.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/spf13/cobra"

	"github.com/atx-oem/sesdrop/config"
	"github.com/atx-oem/sesdrop/stats"
	"github.com/atx-oem/sesdrop/verify"
)

// NewAuditCommand builds the "audit" subcommand: offline evaluation of the
// provenance gate against an mbox archive. Useful for testing rule changes on
// historical mail without touching the bucket.
func NewAuditCommand() *cobra.Command {
	var (
		configPath string
		topN       int
	)

	auditCmd := &cobra.Command{
		Use:   "audit [mbox file]",
		Short: "Evaluate the provenance gate against an mbox archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := verify.DefaultRules()
			if configPath != "" {
				cfg, err := config.LoadFile(configPath)
				if err != nil {
					return err
				}
				rules = cfg.Rules
			}
			return runAudit(args[0], rules, topN)
		},
	}

	auditCmd.Flags().StringVar(&configPath, "config", "", "Path to a TOML config file supplying the rules")
	auditCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display per category")

	return auditCmd
}

type auditReport struct {
	total         int
	passed        int
	failedByRule  map[string]int
	unparsable    int
	attachments   int
	extensions    map[string]int
	senders       map[string]int
	withTabular   int
	withoutAttach int
}

func runAudit(path string, rules []verify.Rule, topN int) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	report := auditReport{
		failedByRule: make(map[string]int),
		extensions:   make(map[string]int),
		senders:      make(map[string]int),
	}

	reader := mboxlib.NewReader(file)
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read mbox message %d: %w", report.total, err)
		}

		report.total++
		if err := auditMessage(msgReader, rules, &report); err != nil {
			report.unparsable++
		}
	}

	printReport(report, rules, topN)
	return nil
}

func auditMessage(r io.Reader, rules []verify.Rule, report *auditReport) error {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return err
	}
	if mr == nil {
		return err
	}

	if from := mr.Header.Get("From"); from != "" {
		report.senders[from]++
	}

	if err := verify.Check(rules, &mr.Header); err != nil {
		var ruleErr *verify.RuleError
		if errors.As(err, &ruleErr) {
			report.failedByRule[ruleErr.Header]++
		}
		// Gate failed; the pipeline would stop before extraction, but the
		// audit still counts attachments to show what would be dropped.
	} else {
		report.passed++
	}

	count := 0
	tabular := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return err
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, err := header.Filename()
		if err != nil || filename == "" {
			continue
		}

		count++
		ext := strings.ToLower(filepath.Ext(filename))
		if ext == "" {
			ext = "(none)"
		}
		report.extensions[ext]++
		if ext == ".csv" || ext == ".xlsx" {
			tabular = true
		}
	}

	report.attachments += count
	if count == 0 {
		report.withoutAttach++
	}
	if tabular {
		report.withTabular++
	}
	return nil
}

func printReport(report auditReport, rules []verify.Rule, topN int) {
	fmt.Printf("Messages: %d (passed gate: %d, unparsable: %d)\n", report.total, report.passed, report.unparsable)

	fmt.Println("\nGate failures by rule:")
	for _, rule := range rules {
		fmt.Printf("  %s (contains %q): %d\n", rule.Header, rule.Want, report.failedByRule[rule.Header])
	}

	fmt.Printf("\nAttachments: %d total, %d messages without any, %d messages with tabular data\n",
		report.attachments, report.withoutAttach, report.withTabular)

	fmt.Println("\nAttachment extensions:")
	stats.PrettyPrintTop(report.extensions, topN)

	fmt.Printf("\nTop %d senders:\n", topN)
	stats.PrettyPrintTop(report.senders, topN)
}
