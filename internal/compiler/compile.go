package compiler

import (
	"strings"

	"github.com/John-Robertt/clashmerge/internal/model"
	"github.com/John-Robertt/clashmerge/internal/profile"
)

// Trailing rules appended after the base config's own rules.
var (
	GeoIPDirect = model.Rule{Type: "GEOIP", Value: "CN", Action: profile.Direct}
	MatchOther  = model.Rule{Type: "MATCH", Action: profile.FallbackGroup}
)

// CompileRules expands the profile tables into rules, in fixed precedence:
//
//  1. PROCESS-NAME -> DIRECT
//  2. DOMAIN-SUFFIX -> DIRECT
//  3. DOMAIN-KEYWORD -> PROXY
//  4. DOMAIN-SUFFIX -> PROXY
//  5. DOMAIN-KEYWORD -> DIRECT
//  6. per rule set: DOMAIN-SUFFIX, DOMAIN-KEYWORD, DOMAIN -> rule set name
//
// Rule set entries are trimmed and blank ones dropped. It never fails.
func CompileRules(prof *profile.Spec) []model.Rule {
	if prof == nil {
		return []model.Rule{}
	}

	out := make([]model.Rule, 0, countRules(prof))
	out = appendRules(out, "PROCESS-NAME", prof.DirectProcess, profile.Direct)
	out = appendRules(out, "DOMAIN-SUFFIX", prof.DirectSuffix, profile.Direct)
	out = appendRules(out, "DOMAIN-KEYWORD", prof.ProxyKeyword, profile.ProxyGroup)
	out = appendRules(out, "DOMAIN-SUFFIX", prof.ProxySuffix, profile.ProxyGroup)
	out = appendRules(out, "DOMAIN-KEYWORD", prof.DirectKeyword, profile.Direct)

	for _, rs := range prof.RuleSets {
		out = appendTrimmed(out, "DOMAIN-SUFFIX", rs.DomainSuffixes, rs.Name)
		out = appendTrimmed(out, "DOMAIN-KEYWORD", rs.DomainKeywords, rs.Name)
		out = appendTrimmed(out, "DOMAIN", rs.Domains, rs.Name)
	}
	return out
}

func appendRules(out []model.Rule, typ string, values []string, action string) []model.Rule {
	for _, v := range values {
		out = append(out, model.Rule{Type: typ, Value: v, Action: action})
	}
	return out
}

func appendTrimmed(out []model.Rule, typ string, values []string, action string) []model.Rule {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, model.Rule{Type: typ, Value: v, Action: action})
	}
	return out
}

func countRules(prof *profile.Spec) int {
	n := len(prof.DirectProcess) + len(prof.DirectSuffix) + len(prof.ProxyKeyword) +
		len(prof.ProxySuffix) + len(prof.DirectKeyword)
	for _, rs := range prof.RuleSets {
		n += len(rs.DomainSuffixes) + len(rs.DomainKeywords) + len(rs.Domains)
	}
	return n
}
