package clash

import (
	"errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

const baseYAML = `
mixed-port: 7890
mode: rule
dns:
  enable: true
  nameserver-policy:
    '+.example.com': 223.5.5.5
proxies:
  - name: HK-01
    type: ss
    server: hk.example.com
    port: 8388
    cipher: aes-128-gcm
    password: "123"
proxy-groups:
  - name: Old
    type: select
    proxies: [HK-01]
rules:
  - DOMAIN-SUFFIX,example.com,DIRECT
`

func TestParse_KeepsUnknownKeys(t *testing.T) {
	c, err := Parse("base.yaml", []byte(baseYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Extra["mixed-port"] != 7890 || c.Extra["mode"] != "rule" {
		t.Fatalf("extra=%v", c.Extra)
	}
	if c.DNS == nil || c.DNS.Extra["enable"] != true {
		t.Fatalf("dns=%+v", c.DNS)
	}
	if c.DNS.NameserverPolicy["+.example.com"] != "223.5.5.5" {
		t.Fatalf("nameserver-policy=%v", c.DNS.NameserverPolicy)
	}
	if got := c.ProxyNames(); len(got) != 1 || got[0] != "HK-01" {
		t.Fatalf("proxy names=%q", got)
	}
	if len(c.ProxyGroups) != 1 || c.ProxyGroups[0].Members[0] != "HK-01" {
		t.Fatalf("groups=%+v", c.ProxyGroups)
	}

	out, err := MarshalYAML(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	for _, want := range []string{"mixed-port: 7890", "mode: rule", "enable: true", "nameserver-policy:", "password: \"123\"", "- DOMAIN-SUFFIX,example.com,DIRECT"} {
		if !strings.Contains(s, want) {
			t.Fatalf("output missing %q:\n%s", want, s)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("base.yaml", []byte("proxies: [\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Code != "CONFIG_PARSE_ERROR" {
		t.Fatalf("code=%q, want=%q", pe.AppError.Code, "CONFIG_PARSE_ERROR")
	}
}

func TestMarshalJSON(t *testing.T) {
	c, err := Parse("base.yaml", []byte(baseYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := MarshalJSON(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if m["mode"] != "rule" {
		t.Fatalf("mode=%v", m["mode"])
	}
	groups, ok := m["proxy-groups"].([]any)
	if !ok || len(groups) != 1 {
		t.Fatalf("proxy-groups=%v", m["proxy-groups"])
	}
}

func TestProxy_CloneIsIndependent(t *testing.T) {
	p := Proxy{"name": "D1", "type": "ss"}
	q := p.Clone()
	q["dialer-proxy"] = "Dialer proxy"
	if _, ok := p["dialer-proxy"]; ok {
		t.Fatalf("clone should not alias the original")
	}
	if q.Name() != "D1" {
		t.Fatalf("name=%q", q.Name())
	}
}
