package sub

import (
	"fmt"
	"maps"

	"github.com/John-Robertt/clashmerge/internal/clash"
	"github.com/John-Robertt/clashmerge/internal/model"
)

const InfoGroup = "Sub Info"

// placeholder is the unreachable node each usage entry is shown as.
var placeholder = clash.Proxy{
	"type":     "ss",
	"server":   "127.0.0.1",
	"port":     1080,
	"cipher":   "aes-128-gcm",
	"password": "dummy",
}

// InfoName renders usage as "<name>：<used GB>/<total GB>".
func InfoName(info Info) string {
	const gb = 1024 * 1024 * 1024
	used := float64(info.Upload+info.Download) / gb
	total := float64(info.Total) / gb
	return fmt.Sprintf("%s：%.1f/%.1f", info.Name, used, total)
}

// AddInfoGroup returns a copy of cfg with one placeholder node per
// subscription in front of the proxies, and a "Sub Info" group listing them
// in front of the groups. cfg is not modified.
func AddInfoGroup(cfg *clash.Config, infos []Info) *clash.Config {
	out := *cfg
	if len(infos) == 0 {
		return &out
	}

	names := make([]string, 0, len(infos))
	proxies := make([]clash.Proxy, 0, len(infos)+len(cfg.Proxies))
	for _, info := range infos {
		name := InfoName(info)
		p := maps.Clone(placeholder)
		p["name"] = name
		proxies = append(proxies, p)
		names = append(names, name)
	}
	out.Proxies = append(proxies, cfg.Proxies...)

	groups := make([]model.Group, 0, len(cfg.ProxyGroups)+1)
	groups = append(groups, model.SelectGroup(InfoGroup, names))
	out.ProxyGroups = append(groups, cfg.ProxyGroups...)
	return &out
}
