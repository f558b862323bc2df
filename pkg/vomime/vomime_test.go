package vomime

import (
	"io"
	"strings"
	"testing"
)

func TestSniffUpload(t *testing.T) {
	src := "%PDF-1.4\n% fake pdf body for sniffing"
	mtype, body, err := SniffUpload(strings.NewReader(src))
	if err != nil {
		t.Fatalf("SniffUpload: %v", err)
	}
	if !strings.Contains(mtype, "pdf") {
		t.Fatalf("mtype = %q, want a pdf match", mtype)
	}
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading replayed body: %v", err)
	}
	if string(got) != src {
		t.Fatalf("replayed body = %q, want %q", got, src)
	}
}

func TestGuess(t *testing.T) {
	cases := map[string]string{
		"hello.txt":  "text/plain; charset=utf-8",
		"data.fits":  "application/fits",
		"noext":      "",
		"archive.FITS": "application/fits",
	}
	for name, want := range cases {
		if got := Guess(name); got != want {
			t.Errorf("Guess(%q) = %q, want %q", name, got, want)
		}
	}
}
