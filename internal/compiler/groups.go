package compiler

import (
	"github.com/John-Robertt/clashmerge/internal/model"
	"github.com/John-Robertt/clashmerge/internal/profile"
)

// membership selects which composite list a fixed service group offers.
type membership int

const (
	normal        membership = iota // PROXY, DIRECT, nodes
	defaultDirect                   // DIRECT, PROXY, nodes
	reject                          // REJECT, DIRECT
)

type serviceGroup struct {
	name string
	kind membership
}

// Fixed service groups emitted after the rule set groups, in UI order.
var serviceGroups = []serviceGroup{
	{"Telegram", normal},
	{"YouTube", normal},
	{"Netflix", normal},
	{"Bahamut", normal},
	{"ProxyMedia", normal},
	{"GoogleCN", normal},
	{"Bing", defaultDirect},
	{"OneDrive", normal},
	{"Microsoft", defaultDirect},
	{"Google", normal},
	{"Apple", defaultDirect},
	{"Games", normal},
	{"WebAD", reject},
	{"AppAD", reject},
	{profile.FallbackGroup, normal},
}

const openAIGroup = "OpenAI"

// BuildGroups builds every proxy group for the given node names. Dialers are
// reachable through the Dialer group and the Relay chain only; they are not
// matched against rule set selectors.
//
// Every group gets its own member slice, so callers may edit one group without
// affecting the others.
func BuildGroups(prof *profile.Spec, nodeNames []string) []model.Group {
	var dialers []string
	if prof != nil {
		dialers = prof.DialerNames()
	}
	hasDialers := len(dialers) > 0

	proxies := make([]string, 0, len(dialers)+1+len(nodeNames))
	if hasDialers {
		proxies = append(proxies, dialers...)
		proxies = append(proxies, profile.RelayGroup)
	}
	proxies = append(proxies, nodeNames...)

	lists := map[membership][]string{
		normal:        concat([]string{profile.ProxyGroup, profile.Direct}, proxies),
		defaultDirect: concat([]string{profile.Direct, profile.ProxyGroup}, proxies),
		reject:        {profile.Reject, profile.Direct},
	}

	var ruleSets []profile.RuleSet
	if prof != nil {
		ruleSets = prof.RuleSets
	}

	out := make([]model.Group, 0, len(serviceGroups)+len(ruleSets)+5)
	if hasDialers {
		out = append(out,
			model.SelectGroup(profile.DialerGroup, concat(dialers, []string{profile.Direct})),
			model.SelectGroup(profile.DialerProxyGroup, concat(nodeNames)),
		)
	}
	out = append(out,
		model.SelectGroup(profile.ProxyGroup, concat([]string{profile.Direct}, proxies)),
		model.SelectGroup(openAIGroup, concat(lists[normal])),
	)
	for _, rs := range ruleSets {
		members := profile.MatchNames(rs.Nodes, nodeNames)
		out = append(out, model.SelectGroup(rs.Name, append(members, profile.Direct)))
	}
	for _, sg := range serviceGroups {
		out = append(out, model.SelectGroup(sg.name, concat(lists[sg.kind])))
	}
	if hasDialers {
		out = append(out, model.Group{
			Name:    profile.RelayGroup,
			Type:    model.GroupRelay,
			Members: []string{profile.DialerProxyGroup, profile.DialerGroup},
		})
	}
	return out
}

// GroupNames lists the names BuildGroups emits for prof, in order.
func GroupNames(prof *profile.Spec) []string {
	groups := BuildGroups(prof, nil)
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Name)
	}
	return out
}

func concat(lists ...[]string) []string {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]string, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
