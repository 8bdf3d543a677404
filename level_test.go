package ttlog

import "testing"

func TestLevelOrdering(t *testing.T) {
	if !(Debug < Info && Info < Warn && Warn < Error) {
		t.Fatal("levels are not ordered Debug < Info < Warn < Error")
	}
}

func TestParseLevelAliasesAndCase(t *testing.T) {
	cases := map[string]Level{
		"debug": Debug, "DEBUG": Debug,
		"info": Info, "": Info,
		"warn": Warn, "warning": Warn, "WaRnInG": Warn,
		"error": Error, "err": Error,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseLevel("trace"); err == nil {
		t.Fatal("expected error for unknown level name")
	}
}

func TestLevelEnabled(t *testing.T) {
	if !Warn.Enabled(Info) {
		t.Fatal("Warn should be enabled at Info threshold")
	}
	if Debug.Enabled(Info) {
		t.Fatal("Debug should not be enabled at Info threshold")
	}
}

func TestAtomicLevelSetAndEnabled(t *testing.T) {
	al := NewAtomicLevel(Info)
	if al.Enabled(Debug) {
		t.Fatal("Debug should not pass an Info filter")
	}
	al.SetLevel(Debug)
	if !al.Enabled(Debug) {
		t.Fatal("Debug should pass after lowering the filter to Debug")
	}
}

func TestLevelTextMarshalRoundTrip(t *testing.T) {
	for _, l := range AllLevels() {
		text, err := l.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", l, err)
		}
		var got Level
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != l {
			t.Fatalf("round trip: got %v, want %v", got, l)
		}
	}
}
