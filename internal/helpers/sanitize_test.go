package helpers

import (
	"strings"
	"testing"
)

func TestSanitizeTopicStripsHTML(t *testing.T) {
	got := SanitizeTopic(`<script>alert(1)</script>The future of <b>renewable</b> energy`)
	if got != "The future of renewable energy" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestSanitizeTopicStripsControlCharacters(t *testing.T) {
	got := SanitizeTopic("grid\x00 storage\x1b[31m tech\n")
	if strings.ContainsAny(got, "\x00\x1b\n") {
		t.Fatalf("control characters survived: %q", got)
	}
	if got != "grid storage [31m tech" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestSanitizeTopicCollapsesWhitespace(t *testing.T) {
	got := SanitizeTopic("  solar \t\t panels   at   night ")
	if got != "solar panels at night" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestValidTopicBounds(t *testing.T) {
	if ValidTopic("ab") {
		t.Fatalf("2 chars should be invalid")
	}
	if !ValidTopic("abc") {
		t.Fatalf("3 chars should be valid")
	}
	if !ValidTopic(strings.Repeat("x", TopicMaxLen)) {
		t.Fatalf("max length should be valid")
	}
	if ValidTopic(strings.Repeat("x", TopicMaxLen+1)) {
		t.Fatalf("over max length should be invalid")
	}
}
