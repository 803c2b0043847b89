package profile

import (
	"regexp"
	"slices"

	"github.com/John-Robertt/clashmerge/internal/clash"
)

// Built-in actions and group names the generated configuration relies on.
const (
	Direct = "DIRECT"
	Reject = "REJECT"

	ProxyGroup       = "PROXY"
	FallbackGroup    = "Other"
	DialerGroup      = "Dialer"
	DialerProxyGroup = "Dialer proxy"
	RelayGroup       = "Relay"
)

// reservedNames are the fixed group names (and built-in actions). Rule sets
// and dialers must not reuse them.
var reservedNames = []string{
	Direct, Reject, ProxyGroup, FallbackGroup, DialerGroup, DialerProxyGroup, RelayGroup,
	"OpenAI", "Telegram", "YouTube", "Netflix", "Bahamut", "ProxyMedia", "GoogleCN",
	"OneDrive", "Google", "Games", "Bing", "Microsoft", "Apple", "WebAD", "AppAD",
}

func IsReserved(name string) bool {
	return slices.Contains(reservedNames, name)
}

// Spec holds the user tables. It is read-only after parsing; share it by pointer.
type Spec struct {
	// NameserverPolicy overrides dns.nameserver-policy entries of the base config.
	NameserverPolicy map[string]any

	DirectProcess []string
	DirectSuffix  []string
	ProxyKeyword  []string
	ProxySuffix   []string
	DirectKeyword []string

	RuleSets []RuleSet
	Dialers  []clash.Proxy

	NodeFilters []NodeFilter

	// ExcludeNodes drops informational entries (traffic/expiry notices) from
	// the selectable node list.
	ExcludeNodesRaw string
	ExcludeNodes    *regexp.Regexp

	RemoteRulesets []RemoteRuleset
}

// RuleSet is a user-defined domain list routed through its own select group.
type RuleSet struct {
	Name           string
	DomainSuffixes []string
	DomainKeywords []string
	Domains        []string

	NodesRaw string
	Nodes    *regexp.Regexp
}

// NodeFilter is a named node preference, e.g. "Gemini" -> "日本|美国|JP|US".
type NodeFilter struct {
	Name       string
	PatternRaw string
	Pattern    *regexp.Regexp
}

// RemoteRuleset binds a remote rule list to the group its matches go to.
type RemoteRuleset struct {
	Group string
	URL   string
}

func (s *Spec) HasDialers() bool {
	return len(s.Dialers) > 0
}

func (s *Spec) DialerNames() []string {
	out := make([]string, 0, len(s.Dialers))
	for _, d := range s.Dialers {
		out = append(out, d.Name())
	}
	return out
}

// FilterNodes returns the names matched by the named filter, or nil when no
// such filter exists.
func (s *Spec) FilterNodes(filter string, names []string) []string {
	for _, f := range s.NodeFilters {
		if f.Name == filter {
			return MatchNames(f.Pattern, names)
		}
	}
	return nil
}

// MatchNames keeps the names re matches, preserving order. The result is
// never nil.
func MatchNames(re *regexp.Regexp, names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if re != nil && re.MatchString(n) {
			out = append(out, n)
		}
	}
	return out
}
