package ruleset

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/John-Robertt/clashmerge/internal/profile"
)

// Provider declares a registered rule list as a runtime rule-provider, so the
// runtime downloads it itself.
type Provider struct {
	Name  string
	Group string
	URL   string
}

// Providers names every registration. Names derive from the URL's file name
// and are made unique with a numeric suffix.
func Providers(spec *profile.Spec) []Provider {
	entries := Entries(spec)
	used := make(map[string]int, len(entries))
	out := make([]Provider, 0, len(entries))
	for _, e := range entries {
		out = append(out, Provider{
			Name:  providerName(e.URL, used),
			Group: e.Group,
			URL:   e.URL,
		})
	}
	return out
}

// ProviderConfig renders the rule-providers section.
func ProviderConfig(ps []Provider) map[string]any {
	out := make(map[string]any, len(ps))
	for _, p := range ps {
		out[p.Name] = map[string]any{
			"type":     "http",
			"behavior": "classical",
			"format":   "text",
			"url":      p.URL,
			"path":     "./ruleset/" + p.Name + ".list",
			"interval": 86400,
		}
	}
	return out
}

// ProviderRules returns one RULE-SET rule per provider, in order.
func ProviderRules(ps []Provider) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, "RULE-SET,"+p.Name+","+p.Group)
	}
	return out
}

func providerName(rawURL string, used map[string]int) string {
	base := ""
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil && u != nil {
		base = path.Base(u.Path)
	}
	if base == "" || base == "." || base == "/" {
		base = "ruleset"
	}
	base = sanitizeName(strings.TrimSuffix(base, path.Ext(base)))
	if base == "" {
		base = "ruleset"
	}

	if n, ok := used[base]; ok {
		n++
		used[base] = n
		return fmt.Sprintf("%s-%d", base, n)
	}
	used[base] = 1
	return base
}

// sanitizeName keeps a subset that is safe both as a YAML key and inside
// "RULE-SET,name,group".
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if len(out) > 60 {
		out = out[:60]
	}
	return out
}
