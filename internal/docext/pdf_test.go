package docext

import (
	"testing"
)

func TestTextRejectsGarbage(t *testing.T) {
	if _, err := Text([]byte("not a pdf at all")); err == nil {
		t.Fatal("expected error for non-PDF input")
	}
}

func TestUserContentTruncatesAtSeparator(t *testing.T) {
	body := Append("my own words", "words pulled from the attachment")
	if got := UserContent(body); got != "my own words" {
		t.Fatalf("expected user content only, got %q", got)
	}
}

func TestUserContentPassesThroughPlainBody(t *testing.T) {
	if got := UserContent("nothing attached here"); got != "nothing attached here" {
		t.Fatalf("body without marker must pass through, got %q", got)
	}
}

func TestAppendWithoutExtractedTextIsIdentity(t *testing.T) {
	if got := Append("just a note", ""); got != "just a note" {
		t.Fatalf("expected unchanged body, got %q", got)
	}
}
