package profile

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/clashmerge/internal/clash"
	"github.com/John-Robertt/clashmerge/internal/model"
)

const defaultExcludeNodes = "流量|到期"

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

type rawProfile struct {
	NameserverPolicy map[string]any     `yaml:"nameserver_policy"`
	DirectProcess    []string           `yaml:"direct_process"`
	DirectSuffix     []string           `yaml:"direct_suffix"`
	ProxyKeyword     []string           `yaml:"proxy_keyword"`
	ProxySuffix      []string           `yaml:"proxy_suffix"`
	DirectKeyword    []string           `yaml:"direct_keyword"`
	RuleSets         []rawRuleSet       `yaml:"rule_sets"`
	Dialers          []map[string]any   `yaml:"dialers"`
	NodeFilters      []rawNodeFilter    `yaml:"node_filters"`
	ExcludeNodes     *string            `yaml:"exclude_nodes"`
	RemoteRulesets   []rawRemoteRuleset `yaml:"remote_rulesets"`
}

type rawRuleSet struct {
	Name          string   `yaml:"name"`
	DomainSuffix  []string `yaml:"domain_suffix"`
	DomainKeyword []string `yaml:"domain_keyword"`
	Domain        []string `yaml:"domain"`
	Nodes         string   `yaml:"nodes"`
}

type rawNodeFilter struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

type rawRemoteRuleset struct {
	Group string `yaml:"group"`
	URL   string `yaml:"url"`
}

// LoadFile reads a profile from disk. An empty path yields the built-in profile.
func LoadFile(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "PROFILE_READ_ERROR",
				Message: "读取 profile 文件失败",
				Stage:   "parse_profile",
				URL:     path,
			},
			Cause: err,
		}
	}
	return ParseProfileYAML(path, string(b))
}

// ParseProfileYAML parses and validates a profile YAML document. Unknown keys
// are rejected; every regex is compiled here once.
func ParseProfileYAML(sourceURL string, content string) (*Spec, error) {
	var rp rawProfile
	if err := yamlDecodeStrict(content, &rp); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "PROFILE_PARSE_ERROR",
				Message: "profile YAML 解析失败",
				Stage:   "parse_profile",
				URL:     sourceURL,
				Snippet: truncateSnippet(content, 200),
			},
			Cause: err,
		}
	}

	v := validator{sourceURL: sourceURL}

	spec := &Spec{
		NameserverPolicy: make(map[string]any, len(rp.NameserverPolicy)),
	}
	for k, val := range rp.NameserverPolicy {
		if strings.TrimSpace(k) == "" {
			return nil, v.fail("nameserver_policy 的域名不能为空", k)
		}
		if !validResolver(val) {
			return nil, v.fail(fmt.Sprintf("nameserver_policy[%s] 必须是字符串或字符串列表", k), k)
		}
		spec.NameserverPolicy[k] = val
	}

	lists := []struct {
		field string
		in    []string
		out   *[]string
	}{
		{"direct_process", rp.DirectProcess, &spec.DirectProcess},
		{"direct_suffix", rp.DirectSuffix, &spec.DirectSuffix},
		{"proxy_keyword", rp.ProxyKeyword, &spec.ProxyKeyword},
		{"proxy_suffix", rp.ProxySuffix, &spec.ProxySuffix},
		{"direct_keyword", rp.DirectKeyword, &spec.DirectKeyword},
	}
	for _, l := range lists {
		for _, s := range l.in {
			if err := v.ruleValue(l.field, s); err != nil {
				return nil, err
			}
		}
		*l.out = l.in
	}

	names := make(map[string]struct{}, len(rp.RuleSets)+len(rp.Dialers))
	for _, rs := range rp.RuleSets {
		name := strings.TrimSpace(rs.Name)
		if err := v.groupName("rule_sets", name, names); err != nil {
			return nil, err
		}
		for _, s := range concat(rs.DomainSuffix, rs.DomainKeyword, rs.Domain) {
			if err := v.ruleValue("rule_sets."+name, s); err != nil {
				return nil, err
			}
		}
		re, err := regexp.Compile(rs.Nodes)
		if err != nil {
			return nil, v.failCause(fmt.Sprintf("rule_sets.%s.nodes 正则不可编译", name), rs.Nodes, err)
		}
		spec.RuleSets = append(spec.RuleSets, RuleSet{
			Name:           name,
			DomainSuffixes: rs.DomainSuffix,
			DomainKeywords: rs.DomainKeyword,
			Domains:        rs.Domain,
			NodesRaw:       rs.Nodes,
			Nodes:          re,
		})
	}

	for i, d := range rp.Dialers {
		p := clash.Proxy(d)
		name, ok := p["name"].(string)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, v.fail(fmt.Sprintf("dialers[%d] 缺少 name", i), "")
		}
		if _, ok := p["type"].(string); !ok {
			return nil, v.fail(fmt.Sprintf("dialers[%d] 缺少 type", i), name)
		}
		if err := v.groupName("dialers", name, names); err != nil {
			return nil, err
		}
		spec.Dialers = append(spec.Dialers, p)
	}

	filterNames := make(map[string]struct{}, len(rp.NodeFilters))
	for _, f := range rp.NodeFilters {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, v.fail("node_filters 的 name 不能为空", f.Pattern)
		}
		if _, dup := filterNames[name]; dup {
			return nil, v.fail(fmt.Sprintf("重复的 node_filters：%s", name), name)
		}
		filterNames[name] = struct{}{}
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, v.failCause(fmt.Sprintf("node_filters.%s 正则不可编译", name), f.Pattern, err)
		}
		spec.NodeFilters = append(spec.NodeFilters, NodeFilter{Name: name, PatternRaw: f.Pattern, Pattern: re})
	}

	exclude := defaultExcludeNodes
	if rp.ExcludeNodes != nil {
		exclude = *rp.ExcludeNodes
	}
	if exclude != "" {
		re, err := regexp.Compile(exclude)
		if err != nil {
			return nil, v.failCause("exclude_nodes 正则不可编译", exclude, err)
		}
		spec.ExcludeNodesRaw = exclude
		spec.ExcludeNodes = re
	}

	for i, rr := range rp.RemoteRulesets {
		group := strings.TrimSpace(rr.Group)
		u := strings.TrimSpace(rr.URL)
		if group == "" || strings.Contains(group, ",") {
			return nil, v.fail(fmt.Sprintf("remote_rulesets[%d].group 不合法", i), rr.Group)
		}
		if err := validateHTTPURL(u); err != nil {
			return nil, v.failCause(fmt.Sprintf("remote_rulesets[%d].url 不合法", i), rr.URL, err)
		}
		spec.RemoteRulesets = append(spec.RemoteRulesets, RemoteRuleset{Group: group, URL: u})
	}

	return spec, nil
}

type validator struct {
	sourceURL string
}

func (v validator) fail(msg, snippet string) error {
	return v.failCause(msg, snippet, nil)
}

func (v validator) failCause(msg, snippet string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    "PROFILE_VALIDATE_ERROR",
			Message: msg,
			Stage:   "parse_profile",
			URL:     v.sourceURL,
			Snippet: truncateSnippet(snippet, 200),
		},
		Cause: cause,
	}
}

// ruleValue rejects values that would break the comma-separated rule syntax.
func (v validator) ruleValue(field, s string) error {
	if strings.ContainsAny(s, ",\r\n\x00") {
		return v.fail(fmt.Sprintf("%s 的取值不能包含逗号或控制字符", field), s)
	}
	return nil
}

func (v validator) groupName(field, name string, seen map[string]struct{}) error {
	if name == "" {
		return v.fail(fmt.Sprintf("%s 的 name 不能为空", field), "")
	}
	if strings.ContainsAny(name, ",\r\n\x00") {
		return v.fail(fmt.Sprintf("%s 的 name 不能包含逗号或控制字符", field), name)
	}
	if IsReserved(name) {
		return v.fail(fmt.Sprintf("%s 的 name 不能使用保留名：%s", field, name), name)
	}
	if _, dup := seen[name]; dup {
		return v.fail(fmt.Sprintf("重复的名称：%s", name), name)
	}
	seen[name] = struct{}{}
	return nil
}

func validResolver(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		if len(t) == 0 {
			return false
		}
		for _, e := range t {
			if s, ok := e.(string); !ok || strings.TrimSpace(s) == "" {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func yamlDecodeStrict(content string, out any) error {
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}

	// Reject multi-document YAML to keep behavior deterministic.
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return errors.New("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if u == nil || !u.IsAbs() {
		return errors.New("url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http/https")
	}
	return nil
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
