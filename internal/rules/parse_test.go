package rules

import (
	"errors"
	"reflect"
	"testing"

	"github.com/John-Robertt/clashmerge/internal/model"
)

func TestParseInlineRule_RequireAction(t *testing.T) {
	_, err := ParseInlineRule("DOMAIN,example.com")
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuleError, got %T: %v", err, err)
	}
	if re.Code != "RULE_PARSE_ERROR" {
		t.Fatalf("code=%q, want=%q", re.Code, "RULE_PARSE_ERROR")
	}
}

func TestParseInlineRule_IPCIDR_NoResolveWithoutAction_Error(t *testing.T) {
	_, err := ParseInlineRule("IP-CIDR,1.1.1.1/32,no-resolve")
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuleError, got %T: %v", err, err)
	}
	if re.Code != "RULE_PARSE_ERROR" {
		t.Fatalf("code=%q, want=%q", re.Code, "RULE_PARSE_ERROR")
	}
}

func TestParseInlineRule_IPCIDR6_RejectsIPv4(t *testing.T) {
	_, err := ParseInlineRule("IP-CIDR6,1.1.1.0/24,DIRECT")
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuleError, got %T: %v", err, err)
	}
}

func TestParseInlineRule_UnsupportedType(t *testing.T) {
	_, err := ParseInlineRule("DST-PORT,443,DIRECT")
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuleError, got %T: %v", err, err)
	}
	if re.Code != "UNSUPPORTED_RULE_TYPE" {
		t.Fatalf("code=%q, want=%q", re.Code, "UNSUPPORTED_RULE_TYPE")
	}
}

func TestParseInlineRule_RoundTrip(t *testing.T) {
	in := []model.Rule{
		{Type: "PROCESS-NAME", Value: "SplitFiction.exe", Action: "DIRECT"},
		{Type: "DOMAIN-SUFFIX", Value: "linux.do", Action: "PROXY"},
		{Type: "DOMAIN-KEYWORD", Value: "jetbrains", Action: "PROXY"},
		{Type: "DOMAIN", Value: "aistudio.google.com", Action: "myRule"},
		{Type: "RULE-SET", Value: "Telegram", Action: "Telegram"},
		{Type: "IP-CIDR", Value: "10.0.0.0/8", Action: "DIRECT", Options: []string{"no-resolve"}},
		{Type: "GEOIP", Value: "CN", Action: "DIRECT"},
		{Type: "MATCH", Action: "Other"},
	}
	for _, r := range in {
		got, err := ParseInlineRule(r.String())
		if err != nil {
			t.Fatalf("ParseInlineRule(%q) unexpected error: %v", r.String(), err)
		}
		if !reflect.DeepEqual(got, r) {
			t.Fatalf("round trip mismatch: got=%+v want=%+v", got, r)
		}
	}
}

func TestTagRulesetText(t *testing.T) {
	text := "# comment\r\n" +
		"DOMAIN-SUFFIX,t.me\r\n" +
		"\r\n" +
		"IP-CIDR,91.108.4.0/22,no-resolve\n" +
		"USER-AGENT,Telegram*\n" +
		"DOMAIN,a.b,extra,more\n"

	got, err := TagRulesetText("https://example.com/Telegram.list", text, "Telegram")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"DOMAIN-SUFFIX,t.me,Telegram",
		"IP-CIDR,91.108.4.0/22,Telegram,no-resolve",
		"DOMAIN,a.b,extra,more,Telegram",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q\nwant=%q", got, want)
	}
}

func TestTagRulesetText_TooFewFields(t *testing.T) {
	_, err := TagRulesetText("https://example.com/x.list", "DOMAIN-SUFFIX,a.com\nbroken\n", "PROXY")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Line != 2 {
		t.Fatalf("line=%d, want=2", pe.AppError.Line)
	}
	if pe.AppError.Stage != "parse_ruleset" {
		t.Fatalf("stage=%q, want=%q", pe.AppError.Stage, "parse_ruleset")
	}
}
