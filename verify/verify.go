// Package verify implements the provenance gate: a fixed, ordered list of
// header rules an inbound email must satisfy before its attachments are
// trusted.
package verify

import (
	"fmt"
	"strings"
)

// Rule requires a header to be present and to contain Want as a substring.
type Rule struct {
	Header string `toml:"header"`
	Want   string `toml:"contains"`
}

// DefaultRules gate on the SES spam and virus verdicts, the SPF result, and
// the originating organization.
func DefaultRules() []Rule {
	return []Rule{
		{Header: "X-SES-Spam-Verdict", Want: "PASS"},
		{Header: "X-SES-Virus-Verdict", Want: "PASS"},
		{Header: "Received-SPF", Want: "pass"},
		{Header: "X-OriginatorOrg", Want: "austintexas.gov"},
	}
}

// HeaderGetter is satisfied by mail.Header and net/mail Header alike.
type HeaderGetter interface {
	Get(key string) string
}

// RuleError names the first rule a message failed, with the actual header
// value observed (empty when the header is absent).
type RuleError struct {
	Header string
	Want   string
	Actual string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("header %s is %q, expected it to contain %q", e.Header, e.Actual, e.Want)
}

// Check evaluates rules in order and returns a *RuleError for the first
// failure. A nil return means every rule passed.
func Check(rules []Rule, header HeaderGetter) error {
	for _, rule := range rules {
		actual := header.Get(rule.Header)
		if actual == "" || !strings.Contains(actual, rule.Want) {
			return &RuleError{Header: rule.Header, Want: rule.Want, Actual: actual}
		}
	}
	return nil
}
