package profile

// defaultYAML is the built-in profile used when no profile file is configured.
const defaultYAML = `
nameserver_policy: {}

direct_process:
  - MonsterHunterWilds.exe
  - SplitFiction.exe
  - OneDrive.exe
  - OneDrive.Sync.Service.exe

direct_suffix:
  - fflogs.com
  - rpglogs.com
  - edge.microsoft.com

proxy_keyword:
  - jetbrains
  - ddys
  - msftconnecttest

proxy_suffix:
  - bobu.me
  - linux.do
  - sleazyfork.org
  - fxacg.cc
  - helloimg.com
  - googleapis.com
  - copilot.microsoft.com
  - copilot.cloud.microsoft.com
  - hdhive.online

direct_keyword:
  - clash.razord.top
  - yacd.haishan.me

rule_sets:
  - name: myRule
    domain_suffix:
      - bard.google.com
      - deepmind.com
      - deepmind.google
      - gemini.google.com
      - generativeai.google
      - proactivebackend-pa.googleapis.com
      - apis.google.com
    domain_keyword:
      - colab
      - developerprofiles
      - generativelanguage
      - pa.google
    domain:
      - aistudio.google.com
      - ai.google.dev
      - alkalimakersuite-pa.clients6.google.com
      - makersuite.google.com
      - generativelanguage.googleapis.com
      - music.youtube.com
    nodes: "日本|美国|JP|US|新加坡|台湾"

dialers: []

node_filters:
  - name: Gemini
    pattern: "日本|美国|JP|US"
  - name: OpenAI
    pattern: "日本|新加坡|SG"
  - name: YouTube
    pattern: "美国|香港|HK"

exclude_nodes: "流量|到期"

remote_rulesets:
  - {group: DIRECT, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/LocalAreaNetwork.list"}
  - {group: DIRECT, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/UnBan.list"}
  - {group: WebAD, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/BanAD.list"}
  - {group: AppAD, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/BanProgramAD.list"}
  - {group: GoogleCN, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/GoogleFCM.list"}
  - {group: GoogleCN, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/GoogleCN.list"}
  - {group: DIRECT, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/SteamCN.list"}
  - {group: Bing, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Bing.list"}
  - {group: OneDrive, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/OneDrive.list"}
  - {group: Microsoft, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Microsoft.list"}
  - {group: Apple, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Apple.list"}
  - {group: Telegram, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Telegram.list"}
  - {group: OpenAI, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/OpenAi.list"}
  - {group: Google, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/Google.list"}
  - {group: Games, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/Origin.list"}
  - {group: Games, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/Sony.list"}
  - {group: Games, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/Steam.list"}
  - {group: Games, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/Nintendo.list"}
  - {group: YouTube, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/YouTube.list"}
  - {group: Netflix, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/Netflix.list"}
  - {group: Bahamut, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Ruleset/Bahamut.list"}
  - {group: ProxyMedia, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/ProxyMedia.list"}
  - {group: PROXY, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/ProxyGFWlist.list"}
  - {group: DIRECT, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/ChinaDomain.list"}
  - {group: DIRECT, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/ChinaCompanyIp.list"}
  - {group: DIRECT, url: "https://raw.githubusercontent.com/ACL4SSR/ACL4SSR/master/Clash/Download.list"}
`

// Default returns the built-in profile. It panics if the embedded tables are
// invalid, which only a broken build can cause.
func Default() *Spec {
	s, err := ParseProfileYAML("builtin", defaultYAML)
	if err != nil {
		panic(err)
	}
	return s
}
