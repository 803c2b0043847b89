// Package merge applies the profile tables to a base configuration: routing
// rules, DNS nameserver policy, dialer proxies and the generated proxy groups.
package merge

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/clashmerge/internal/clash"
	"github.com/John-Robertt/clashmerge/internal/compiler"
	"github.com/John-Robertt/clashmerge/internal/model"
	"github.com/John-Robertt/clashmerge/internal/profile"
)

// DialerProxyKey is the proxy field naming the group a dialer tunnels through.
const DialerProxyKey = "dialer-proxy"

type MergeError struct {
	AppError model.AppError
	Cause    error
}

func (e *MergeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *MergeError) Unwrap() error { return e.Cause }

// Merger holds a profile and its compiled rules. It is safe for concurrent use.
type Merger struct {
	spec  *profile.Spec
	rules []string
}

// New compiles the profile's rules once; every Merge reuses them.
func New(spec *profile.Spec) *Merger {
	if spec == nil {
		spec = &profile.Spec{}
	}
	return &Merger{
		spec:  spec,
		rules: model.RuleStrings(compiler.CompileRules(spec)),
	}
}

func (m *Merger) Spec() *profile.Spec { return m.spec }

// Rules returns a copy of the compiled rules.
func (m *Merger) Rules() []string { return slices.Clone(m.rules) }

// MergeConfig is New(spec).Merge(cfg).
func MergeConfig(cfg *clash.Config, spec *profile.Spec) (*clash.Config, error) {
	return New(spec).Merge(cfg)
}

// Merge returns a new configuration; cfg is left untouched. Calling it again
// on its own output prepends the compiled rules a second time.
func (m *Merger) Merge(cfg *clash.Config) (*clash.Config, error) {
	if cfg == nil {
		return nil, &MergeError{
			AppError: model.AppError{
				Code:    "CONFIG_INVALID",
				Message: "配置不能为空",
				Stage:   "merge",
			},
		}
	}

	out := *cfg
	out.Extra = maps.Clone(cfg.Extra)
	out.RuleProviders = maps.Clone(cfg.RuleProviders)

	if len(m.spec.NameserverPolicy) > 0 {
		if cfg.DNS == nil {
			return nil, &MergeError{
				AppError: model.AppError{
					Code:    "CONFIG_INVALID",
					Message: "配置缺少 dns 字段，无法合并 nameserver-policy",
					Stage:   "merge",
					Hint:    "在基础配置中添加 dns 段，或清空 profile 的 nameserver_policy",
				},
			}
		}
		dns := *cfg.DNS
		dns.Extra = maps.Clone(cfg.DNS.Extra)
		dns.NameserverPolicy = MergePolicy(cfg.DNS.NameserverPolicy, m.spec.NameserverPolicy)
		out.DNS = &dns
	}

	rules := make([]string, 0, len(m.rules)+len(cfg.Rules)+2)
	rules = append(rules, m.rules...)
	rules = append(rules, cfg.Rules...)
	rules = append(rules, compiler.GeoIPDirect.String(), compiler.MatchOther.String())
	out.Rules = rules

	nodeNames := ExtractNodeNames(cfg.Proxies, m.spec)

	if m.spec.HasDialers() {
		proxies := make([]clash.Proxy, 0, len(m.spec.Dialers)+len(cfg.Proxies))
		for _, d := range m.spec.Dialers {
			p := d.Clone()
			p[DialerProxyKey] = profile.DialerProxyGroup
			proxies = append(proxies, p)
		}
		out.Proxies = append(proxies, cfg.Proxies...)
	} else {
		out.Proxies = slices.Clone(cfg.Proxies)
	}

	out.ProxyGroups = compiler.BuildGroups(m.spec, nodeNames)

	logrus.WithFields(logrus.Fields{
		"rules":   len(out.Rules),
		"proxies": len(out.Proxies),
		"nodes":   len(nodeNames),
		"groups":  len(out.ProxyGroups),
	}).Debug("config merged")
	return &out, nil
}

// MergePolicy overlays override onto base. Keys present in both take the
// override's value. Neither input is modified.
func MergePolicy(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

// ExtractNodeNames lists proxy names in order, dropping the ones the profile's
// exclusion pattern matches (traffic and expiry notices).
func ExtractNodeNames(proxies []clash.Proxy, spec *profile.Spec) []string {
	out := make([]string, 0, len(proxies))
	for _, p := range proxies {
		name := p.Name()
		if spec != nil && spec.ExcludeNodes != nil && spec.ExcludeNodes.MatchString(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
