package i18n

import "testing"

func TestTranslator_DefaultAndJapanese(t *testing.T) {
	// default is en
	if msg := T("too_small", nil); msg == "too_small" || msg == "" {
		t.Fatalf("expected a human message, got %q", msg)
	}

	SetLanguage("ja")
	if msg := T("too_small", nil); msg == "too small" {
		t.Fatalf("expected japanese message, got %q", msg)
	}

	// reset to en
	SetLanguage("en")
}

func TestTranslator_UnknownCodePassesThrough(t *testing.T) {
	if msg := T("no_such_code", nil); msg != "no_such_code" {
		t.Fatalf("unknown codes should echo, got %q", msg)
	}
}

type upperTranslator struct{}

func (upperTranslator) Message(code string, data map[string]string) string { return "X:" + code }

func TestSetTranslator_Custom(t *testing.T) {
	SetTranslator(upperTranslator{})
	defer SetTranslator(nil)
	if msg := T("overflow", nil); msg != "X:overflow" {
		t.Fatalf("custom translator not used, got %q", msg)
	}
}
