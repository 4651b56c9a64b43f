package email

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fixtureAttachment struct {
	filename string
	payload  []byte
}

func multipartFixture(attachments ...fixtureAttachment) string {
	var b strings.Builder
	b.WriteString("X-SES-Spam-Verdict: PASS\r\n")
	b.WriteString("X-SES-Virus-Verdict: PASS\r\n")
	b.WriteString("Received-SPF: pass (spfCheck ok)\r\n")
	b.WriteString("X-OriginatorOrg: austintexas.gov\r\n")
	b.WriteString("From: Emergency Management <oem@austintexas.gov>\r\n")
	b.WriteString("To: data@example.org\r\n")
	b.WriteString("Subject: Daily shelter report\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"xbound\"\r\n")
	b.WriteString("\r\n")

	b.WriteString("--xbound\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString("See attached.\r\n")

	for _, att := range attachments {
		b.WriteString("--xbound\r\n")
		b.WriteString("Content-Type: application/octet-stream\r\n")
		if att.filename != "" {
			fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n", att.filename)
		} else {
			b.WriteString("Content-Disposition: attachment\r\n")
		}
		b.WriteString("Content-Transfer-Encoding: base64\r\n")
		b.WriteString("\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString(att.payload))
		b.WriteString("\r\n")
	}

	b.WriteString("--xbound--\r\n")
	return b.String()
}

func plainFixture() string {
	return "From: oem@austintexas.gov\r\n" +
		"Subject: no attachments here\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"just a body\r\n"
}

func TestParse_HeaderAccess(t *testing.T) {
	msg, err := Parse(multipartFixture())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := msg.Header.Get("X-OriginatorOrg"); got != "austintexas.gov" {
		t.Errorf("X-OriginatorOrg = %q, want austintexas.gov", got)
	}
	if got := msg.Header.Get("X-SES-Spam-Verdict"); got != "PASS" {
		t.Errorf("X-SES-Spam-Verdict = %q, want PASS", got)
	}
}

func TestExtractAttachments_WritesAllParts(t *testing.T) {
	payloadA := []byte("id,count\r\n1,2\r\n")
	payloadB := []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0xff, 0x10}

	msg, err := Parse(multipartFixture(
		fixtureAttachment{filename: "report.csv", payload: payloadA},
		fixtureAttachment{filename: "raw.bin", payload: payloadB},
	))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	dir := t.TempDir()
	names, err := msg.ExtractAttachments(dir, nil)
	if err != nil {
		t.Fatalf("ExtractAttachments() error = %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("extracted %d attachments, want 2 (%v)", len(names), names)
	}

	for name, want := range map[string][]byte{"report.csv": payloadA, "raw.bin": payloadB} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != string(want) {
			t.Errorf("%s payload = %q, want %q", name, got, want)
		}
	}
}

func TestExtractAttachments_NoAttachmentParts(t *testing.T) {
	msg, err := Parse(plainFixture())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	dir := t.TempDir()
	names, err := msg.ExtractAttachments(dir, nil)
	if err != nil {
		t.Fatalf("ExtractAttachments() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("extracted %v from a plain message, want none", names)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir has %d entries, want 0", len(entries))
	}
}

func TestExtractAttachments_SameFilenameOverwrites(t *testing.T) {
	msg, err := Parse(multipartFixture(
		fixtureAttachment{filename: "data.csv", payload: []byte("first")},
		fixtureAttachment{filename: "data.csv", payload: []byte("second")},
	))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	dir := t.TempDir()
	if _, err := msg.ExtractAttachments(dir, nil); err != nil {
		t.Fatalf("ExtractAttachments() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "data.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("data.csv = %q, want the later part to win", got)
	}
}

func TestExtractAttachments_SanitizesTraversalNames(t *testing.T) {
	msg, err := Parse(multipartFixture(
		fixtureAttachment{filename: "../../evil.txt", payload: []byte("payload")},
	))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	dir := t.TempDir()
	names, err := msg.ExtractAttachments(dir, nil)
	if err != nil {
		t.Fatalf("ExtractAttachments() error = %v", err)
	}
	if len(names) != 1 || names[0] != "evil.txt" {
		t.Fatalf("names = %v, want [evil.txt]", names)
	}

	if _, err := os.Stat(filepath.Join(dir, "evil.txt")); err != nil {
		t.Errorf("sanitized file missing inside staging dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "..", "evil.txt")); err == nil {
		t.Error("file escaped the staging directory")
	}
}

func TestExtractAttachments_SkipsUnnamedParts(t *testing.T) {
	msg, err := Parse(multipartFixture(
		fixtureAttachment{filename: "", payload: []byte("anonymous")},
		fixtureAttachment{filename: "named.txt", payload: []byte("named")},
	))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	dir := t.TempDir()
	names, err := msg.ExtractAttachments(dir, nil)
	if err != nil {
		t.Fatalf("ExtractAttachments() error = %v", err)
	}
	if len(names) != 1 || names[0] != "named.txt" {
		t.Errorf("names = %v, want only [named.txt]", names)
	}
}

func TestStaging_CloseRemovesDir(t *testing.T) {
	staging, err := NewStaging(false)
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(staging.Dir, "a.csv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := staging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(staging.Dir); !os.IsNotExist(err) {
		t.Errorf("staging dir still exists after Close: %v", err)
	}
}

func TestStaging_KeepLeavesDir(t *testing.T) {
	staging, err := NewStaging(true)
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}
	defer os.RemoveAll(staging.Dir)

	if err := staging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(staging.Dir); err != nil {
		t.Errorf("staging dir removed despite keep: %v", err)
	}
}
