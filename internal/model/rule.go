package model

import "strings"

type Rule struct {
	Type    string   // e.g. "DOMAIN-SUFFIX", "PROCESS-NAME", "MATCH"
	Value   string   // domain/suffix/keyword/process/cc; empty for MATCH
	Action  string   // DIRECT/REJECT/group name
	Options []string // trailing options such as "no-resolve"
}

// String renders the rule in the runtime's comma-separated syntax.
// Values must not contain commas; there is no escaping.
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString(r.Type)
	if r.Type != "MATCH" {
		b.WriteByte(',')
		b.WriteString(r.Value)
	}
	b.WriteByte(',')
	b.WriteString(r.Action)
	for _, o := range r.Options {
		b.WriteByte(',')
		b.WriteString(o)
	}
	return b.String()
}

func RuleStrings(in []Rule) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		out = append(out, r.String())
	}
	return out
}
