package model

const (
	GroupSelect = "select"
	GroupRelay  = "relay"
)

type Group struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"` // "select" | "relay"

	// Members are proxy names / group names / DIRECT / REJECT, in UI order.
	Members []string `yaml:"proxies" json:"proxies"`
}

func SelectGroup(name string, members []string) Group {
	return Group{Name: name, Type: GroupSelect, Members: members}
}
