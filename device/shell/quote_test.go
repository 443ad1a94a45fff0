package shell

import (
	"errors"
	"slices"
	"testing"
)

func TestQuoteSplitRoundTrip(t *testing.T) {
	paths := []string{
		"/sdcard/a.txt",
		"/sdcard/with space/file",
		"/sdcard/it's here",
		`/sdcard/"quoted"`,
		"/sdcard/$HOME`x`",
		"",
	}

	for _, p := range paths {
		words, err := Split("rm " + Quote(p))
		if err != nil {
			t.Fatalf("Split failed for %q: %v", p, err)
		}
		if !slices.Equal(words, []string{"rm", p}) {
			t.Errorf("Expected [rm %q], got %q", p, words)
		}
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		line     string
		expected []string
	}{
		{`mv "a b" c`, []string{"mv", "a b", "c"}},
		{`mv a\ b c`, []string{"mv", "a b", "c"}},
		{`echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{"  mkdir   -p  /x  ", []string{"mkdir", "-p", "/x"}},
		{"", nil},
	}

	for _, tt := range tests {
		words, err := Split(tt.line)
		if err != nil {
			t.Fatalf("Split(%q) failed: %v", tt.line, err)
		}
		if !slices.Equal(words, tt.expected) {
			t.Errorf("Split(%q) = %q, expected %q", tt.line, words, tt.expected)
		}
	}

	if _, err := Split(`rm 'open`); !errors.Is(err, ErrUnterminatedQuote) {
		t.Errorf("Expected ErrUnterminatedQuote, got %v", err)
	}
}

func TestIsNotEmpty(t *testing.T) {
	if !IsNotEmpty("rmdir: '/sdcard/d': Directory not empty\n") {
		t.Errorf("Expected toybox output to be detected")
	}
	if !IsNotEmpty("rmdir failed for /sdcard/d, Directory not empty") {
		t.Errorf("Expected legacy toolbox output to be detected")
	}
	if IsNotEmpty("") || IsNotEmpty("rmdir: '/x': No such file or directory") {
		t.Errorf("Unexpected detection")
	}
}
