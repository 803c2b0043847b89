package rules

import (
	"strings"

	"github.com/John-Robertt/clashmerge/internal/model"
)

// ruleTypes lists the classical rule types the runtime accepts inside a
// remote rule list. Lines of any other type are skipped.
var ruleTypes = map[string]struct{}{
	"DOMAIN": {}, "DOMAIN-SUFFIX": {}, "DOMAIN-KEYWORD": {}, "DOMAIN-REGEX": {}, "GEOSITE": {},
	"IP-CIDR": {}, "IP-CIDR6": {}, "IP-SUFFIX": {}, "IP-ASN": {}, "GEOIP": {},
	"SRC-GEOIP": {}, "SRC-IP-ASN": {}, "SRC-IP-CIDR": {}, "SRC-IP-SUFFIX": {},
	"DST-PORT": {}, "SRC-PORT": {}, "IN-PORT": {}, "IN-TYPE": {}, "IN-USER": {}, "IN-NAME": {},
	"PROCESS-PATH": {}, "PROCESS-PATH-REGEX": {}, "PROCESS-NAME": {}, "PROCESS-NAME-REGEX": {},
	"UID": {}, "NETWORK": {}, "DSCP": {}, "RULE-SET": {}, "AND": {}, "OR": {}, "NOT": {}, "SUB-RULE": {},
}

func IsKnownType(typ string) bool {
	_, ok := ruleTypes[typ]
	return ok
}

// TagRulesetText rewrites a remote rule list (one classical rule per line,
// without ACTION) into full rule lines targeting tag.
//
//	TYPE,VALUE        -> TYPE,VALUE,TAG
//	TYPE,VALUE,OPTION -> TYPE,VALUE,TAG,OPTION
//
// Blank lines, comments and unknown rule types are skipped.
func TagRulesetText(sourceURL, text, tag string) ([]string, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "RULESET_PARSE_ERROR",
				Message: "ruleset tag 不能为空",
				Stage:   "parse_ruleset",
				URL:     sourceURL,
			},
		}
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i, raw := range lines {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "RULESET_PARSE_ERROR",
					Message: "规则至少需要 2 个字段",
					Stage:   "parse_ruleset",
					URL:     sourceURL,
					Line:    i + 1,
					Snippet: truncateSnippet(raw, 200),
					Hint:    "expected: TYPE,VALUE[,OPTION]",
				},
			}
		}
		if !IsKnownType(parts[0]) {
			continue
		}

		if len(parts) == 3 {
			out = append(out, parts[0]+","+parts[1]+","+tag+","+parts[2])
		} else {
			out = append(out, line+","+tag)
		}
	}
	return out, nil
}
