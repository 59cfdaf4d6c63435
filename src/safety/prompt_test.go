package safety_test

import (
	"bytes"
	"strings"
	"testing"

	"rbd-backup/src/safety"
)

func TestConfirm_AutoYes(t *testing.T) {
	var out bytes.Buffer
	ok, err := safety.Confirm(safety.Options{Yes: true}, strings.NewReader(""), &out, "drop reference?")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || out.Len() != 0 {
		t.Fatalf("expected silent confirmation, got %v %q", ok, out.String())
	}
}

func TestConfirm_DryRunWinsOverYes(t *testing.T) {
	ok, err := safety.Confirm(safety.Options{DryRun: true, Yes: true}, strings.NewReader("y\n"), nil, "drop reference?")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected dry-run to decline")
	}
}

func TestConfirm_UserInput(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" y ", true},
		{"no\n", false},
		{"\n", false},
		{"", false},
	}
	for _, c := range cases {
		var out bytes.Buffer
		got, err := safety.Confirm(safety.Options{}, strings.NewReader(c.in), &out, " drop reference? ")
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Fatalf("input %q: got %v, want %v", c.in, got, c.want)
		}
		if out.String() != "drop reference? [y/N]: " {
			t.Fatalf("unexpected prompt %q", out.String())
		}
	}
}
