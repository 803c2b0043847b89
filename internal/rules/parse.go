package rules

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/John-Robertt/clashmerge/internal/model"
)

type RuleError struct {
	Code    string
	Message string
	Hint    string
	Cause   error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *RuleError) Unwrap() error { return e.Cause }

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ParseInlineRule parses a single rule line. ACTION is required.
// Caller is expected to attach proper stage/url/line if needed.
func ParseInlineRule(line string) (model.Rule, error) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if line == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "rule line is empty"}
	}
	if strings.HasPrefix(line, "#") {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "rule line is comment"}
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "规则类型不能为空"}
	}

	typ := strings.ToUpper(parts[0])
	switch typ {
	case "DOMAIN", "DOMAIN-SUFFIX", "DOMAIN-KEYWORD", "PROCESS-NAME", "RULE-SET":
		return parseValued(typ, parts, false, nil)
	case "GEOIP":
		return parseValued(typ, parts, true, nil)
	case "IP-CIDR":
		return parseValued(typ, parts, true, validateCIDR(true))
	case "IP-CIDR6":
		return parseValued(typ, parts, true, validateCIDR(false))
	case "MATCH":
		if len(parts) != 2 || parts[1] == "" {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: "MATCH 规则必须是 MATCH,<ACTION>",
			}
		}
		return model.Rule{Type: "MATCH", Action: parts[1]}, nil
	default:
		return model.Rule{}, &RuleError{
			Code:    "UNSUPPORTED_RULE_TYPE",
			Message: fmt.Sprintf("不支持的规则类型：%s", typ),
		}
	}
}

func parseValued(typ string, parts []string, allowNoResolve bool, validate func(string) error) (model.Rule, error) {
	if len(parts) < 3 {
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: "规则缺少 ACTION",
			Hint:    "expected: TYPE,VALUE,ACTION",
		}
	}
	if parts[1] == "" || parts[2] == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "规则 VALUE/ACTION 不能为空"}
	}
	if allowNoResolve && strings.EqualFold(parts[2], "no-resolve") {
		// Ambiguous: missing action but has option.
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: fmt.Sprintf("%s 缺少 ACTION（不允许仅写 no-resolve）", typ),
			Hint:    "expected: " + typ + ",VALUE,ACTION[,no-resolve]",
		}
	}
	if validate != nil {
		if err := validate(parts[1]); err != nil {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: fmt.Sprintf("%s 的 CIDR 不合法", typ),
				Cause:   err,
			}
		}
	}

	r := model.Rule{Type: typ, Value: parts[1], Action: parts[2]}
	switch len(parts) {
	case 3:
		return r, nil
	case 4:
		if !allowNoResolve || !strings.EqualFold(parts[3], "no-resolve") {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: fmt.Sprintf("%s 的可选项仅支持 no-resolve", typ),
				Hint:    "expected: " + typ + ",VALUE,ACTION[,no-resolve]",
			}
		}
		r.Options = []string{"no-resolve"}
		return r, nil
	default:
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: "规则字段数量不合法",
			Hint:    "expected: TYPE,VALUE,ACTION",
		}
	}
}

func validateCIDR(v4 bool) func(string) error {
	return func(s string) error {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return err
		}
		if p.Addr().Is4() != v4 {
			if v4 {
				return errors.New("not an ipv4 cidr")
			}
			return errors.New("not an ipv6 cidr")
		}
		return nil
	}
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
