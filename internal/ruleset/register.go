// Package ruleset enumerates the remote rule lists a profile binds to groups,
// and turns them into rules either by fetching them or by declaring them as
// runtime rule-providers.
package ruleset

import (
	"github.com/John-Robertt/clashmerge/internal/profile"
)

// Entry is one registered remote rule list and the group its matches go to.
type Entry struct {
	Group string
	URL   string
}

// Register calls fn once per remote rule list, in table order. Whatever fn
// does with a failure is its own business.
func Register(spec *profile.Spec, fn func(group, url string)) {
	if spec == nil || fn == nil {
		return
	}
	for _, r := range spec.RemoteRulesets {
		fn(r.Group, r.URL)
	}
}

// Entries collects the registrations in order.
func Entries(spec *profile.Spec) []Entry {
	var out []Entry
	Register(spec, func(group, url string) {
		out = append(out, Entry{Group: group, URL: url})
	})
	return out
}
