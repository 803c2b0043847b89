package clash

import (
	"bytes"
	"fmt"
	"maps"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/clashmerge/internal/model"
)

// Proxy is an opaque proxy node. Only "name" is interpreted here; every other
// field is protocol specific and passed through untouched.
type Proxy map[string]any

func (p Proxy) Name() string {
	switch v := p["name"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy so callers can add fields without touching p.
func (p Proxy) Clone() Proxy {
	return maps.Clone(p)
}

type DNS struct {
	// NameserverPolicy maps a domain pattern to a resolver address (or a list of them).
	NameserverPolicy map[string]any `yaml:"nameserver-policy,omitempty"`
	Extra            map[string]any `yaml:",inline"`
}

// Config is the runtime configuration document. Keys this package does not
// model are kept in Extra and written back unchanged.
type Config struct {
	Extra         map[string]any `yaml:",inline"`
	DNS           *DNS           `yaml:"dns,omitempty"`
	Proxies       []Proxy        `yaml:"proxies"`
	ProxyGroups   []model.Group  `yaml:"proxy-groups"`
	RuleProviders map[string]any `yaml:"rule-providers,omitempty"`
	Rules         []string       `yaml:"rules"`
}

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

// Parse decodes a YAML (or JSON, which is valid YAML) configuration.
func Parse(sourceURL string, data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "CONFIG_PARSE_ERROR",
				Message: "配置 YAML 解析失败",
				Stage:   "parse_config",
				URL:     sourceURL,
				Snippet: truncateSnippet(string(data), 200),
			},
			Cause: err,
		}
	}
	return &c, nil
}

func MarshalYAML(c *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func MarshalJSON(c *Config) ([]byte, error) {
	return json.MarshalIndent(c.AsMap(), "", "  ")
}

// AsMap flattens the document into a plain map, the shape JSON encoders expect.
func (c *Config) AsMap() map[string]any {
	out := make(map[string]any, len(c.Extra)+5)
	maps.Copy(out, c.Extra)
	if c.DNS != nil {
		dns := make(map[string]any, len(c.DNS.Extra)+1)
		maps.Copy(dns, c.DNS.Extra)
		if len(c.DNS.NameserverPolicy) > 0 {
			dns["nameserver-policy"] = c.DNS.NameserverPolicy
		}
		out["dns"] = dns
	}
	proxies := make([]map[string]any, 0, len(c.Proxies))
	for _, p := range c.Proxies {
		proxies = append(proxies, p)
	}
	out["proxies"] = proxies
	groups := c.ProxyGroups
	if groups == nil {
		groups = []model.Group{}
	}
	out["proxy-groups"] = groups
	if len(c.RuleProviders) > 0 {
		out["rule-providers"] = c.RuleProviders
	}
	rules := c.Rules
	if rules == nil {
		rules = []string{}
	}
	out["rules"] = rules
	return out
}

// ProxyNames returns the names of all proxies in document order.
func (c *Config) ProxyNames() []string {
	out := make([]string, 0, len(c.Proxies))
	for _, p := range c.Proxies {
		out = append(out, p.Name())
	}
	return out
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max]
}
