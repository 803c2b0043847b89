package sub

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/clashmerge/internal/clash"
	"github.com/John-Robertt/clashmerge/internal/fetch"
	"github.com/John-Robertt/clashmerge/internal/model"
)

func TestParseUserinfo(t *testing.T) {
	up, down, total, expire := ParseUserinfo("upload=1; download=2;total=3 ; expire=1700000000; bogus; x=y")
	if up != 1 || down != 2 || total != 3 || expire != 1700000000 {
		t.Fatalf("got=%d,%d,%d,%d", up, down, total, expire)
	}
	up, _, _, _ = ParseUserinfo("")
	if up != 0 {
		t.Fatalf("upload=%d, want=0", up)
	}
}

func TestExtractFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`attachment; filename="my.sub.yaml"`, "my.sub"},
		{`attachment; filename*=UTF-8''%E6%9C%BA%E5%9C%BA.yaml`, "机场"},
		{`attachment; filename="plain.yaml"; filename*=UTF-8''%E6%9C%BA%E5%9C%BA.yaml`, "机场"},
		{`attachment; filename=noext`, "noext"},
		{`inline`, ""},
		{``, ""},
	}
	for _, tc := range cases {
		if got := ExtractFilename(tc.in); got != tc.want {
			t.Fatalf("ExtractFilename(%q)=%q, want=%q", tc.in, got, tc.want)
		}
	}
}

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != fetch.UserAgent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="Airport.yaml"`)
		w.Header().Set("Subscription-Userinfo", "upload=1073741824; download=1073741824; total=10737418240; expire=42")
		w.Header().Set("Profile-Update-Interval", "24")
		w.Header().Set("X-Other", "dropped")
		_, _ = w.Write([]byte("proxies:\n  - {name: HK, type: ss, server: hk.example.com, port: 1}\n  - {name: 剩余流量：10GB, type: ss, server: x, port: 1}\n"))
	}))
	defer ts.Close()

	s, err := Fetch(context.Background(), ts.URL+"?token=abc", "订阅01", fetch.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Proxies) != 2 || s.Proxies[0].Name() != "HK" {
		t.Fatalf("proxies=%v", s.Proxies)
	}
	if len(s.Infos) != 1 {
		t.Fatalf("infos=%+v", s.Infos)
	}
	info := s.Infos[0]
	if info.Name != "Airport" || info.Total != 10737418240 || info.Expire != 42 {
		t.Fatalf("info=%+v", info)
	}
	if s.Header.Get("Profile-Update-Interval") != "24" || s.Header.Get("X-Other") != "" {
		t.Fatalf("header=%v", s.Header)
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("https://x/sub?token=secret", "s", []byte("proxies: [\n"), http.Header{})
	var se *SubError
	if !errors.As(err, &se) || se.AppError.Code != "SUB_PARSE_ERROR" {
		t.Fatalf("err=%v", err)
	}
	if strings.Contains(se.AppError.URL, "secret") {
		t.Fatalf("url leaks token: %q", se.AppError.URL)
	}

	_, err = Parse("https://x/sub", "s", []byte("port: 7890\n"), http.Header{})
	if !errors.As(err, &se) || se.AppError.Message != "订阅中没有任何节点" {
		t.Fatalf("err=%v", err)
	}
}

func TestParse_SSListFallback(t *testing.T) {
	list := "ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#HK%2001\n"
	b64 := base64.StdEncoding.EncodeToString([]byte(list))

	for _, body := range []string{list, b64} {
		s, err := Parse("https://x/sub", "s", []byte(body), http.Header{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := s.Proxies[0].Name(); got != "HK 01" {
			t.Fatalf("name=%q, want=%q", got, "HK 01")
		}
	}

	_, err := Parse("https://x/sub?token=secret", "s", []byte("ss://bogus\n"), http.Header{})
	var se *SubError
	if !errors.As(err, &se) || se.AppError.Stage != "parse_sub" || se.AppError.Line != 1 {
		t.Fatalf("err=%v", err)
	}
	if strings.Contains(se.AppError.URL, "secret") {
		t.Fatalf("url leaks token: %q", se.AppError.URL)
	}
}

func TestFetchAll_KeepsOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/a" {
			time.Sleep(50 * time.Millisecond)
		}
		_, _ = w.Write([]byte("proxies:\n  - {name: " + strings.TrimPrefix(r.URL.Path, "/") + ", type: ss}\n"))
	}))
	defer ts.Close()

	subs, err := FetchAll(context.Background(), []string{ts.URL + "/a", ts.URL + "/b"}, fetch.Options{}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subs[0].Proxies[0].Name() != "a" || subs[1].Proxies[0].Name() != "b" {
		t.Fatalf("order broken")
	}
	if subs[0].Infos[0].Name != "订阅01" || subs[1].Infos[0].Name != "订阅02" {
		t.Fatalf("names=%q,%q", subs[0].Infos[0].Name, subs[1].Infos[0].Name)
	}
}

func TestFetchAll_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := FetchAll(context.Background(), []string{ts.URL}, fetch.Options{}, 0)
	var fe *fetch.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *fetch.FetchError, got %T: %v", err, err)
	}
}

func TestMerge(t *testing.T) {
	a := &Subscription{
		Proxies: []clash.Proxy{{"name": "A1"}},
		Header:  http.Header{"Profile-Update-Interval": []string{"12"}},
		Infos:   []Info{{Name: "甲", Upload: 1, Download: 2, Total: 10, Expire: 100}},
	}
	b := &Subscription{
		Proxies: []clash.Proxy{{"name": "B1"}, {"name": "B2"}},
		Header:  http.Header{"Profile-Update-Interval": []string{"24"}},
		Infos:   []Info{{Name: "乙", Upload: 3, Download: 4, Total: 20, Expire: 50}},
	}
	m := Merge([]*Subscription{a, b})

	var names []string
	for _, p := range m.Proxies {
		names = append(names, p.Name())
	}
	if !slices.Equal(names, []string{"A1", "B1", "B2"}) {
		t.Fatalf("proxies=%q", names)
	}
	if got, want := m.Header.Get("Subscription-Userinfo"), "upload=4; download=6; total=30; expire=100"; got != want {
		t.Fatalf("userinfo=%q, want=%q", got, want)
	}
	cd := m.Header.Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment; filename*=UTF-8''") {
		t.Fatalf("content-disposition=%q", cd)
	}
	if dec, _ := url.PathUnescape(strings.TrimPrefix(cd, "attachment; filename*=UTF-8''")); dec != "甲 | 乙" {
		t.Fatalf("combined name=%q", dec)
	}
	if m.Header.Get("Profile-Update-Interval") != "12" {
		t.Fatalf("update interval=%q", m.Header.Get("Profile-Update-Interval"))
	}
}

func TestMerge_NoTotalNoUserinfo(t *testing.T) {
	m := Merge([]*Subscription{{Infos: []Info{{Name: "x"}}}})
	if m.Header.Get("Subscription-Userinfo") != "" {
		t.Fatalf("unexpected userinfo: %q", m.Header.Get("Subscription-Userinfo"))
	}
}

func TestAddInfoGroup(t *testing.T) {
	cfg := &clash.Config{
		Proxies:     []clash.Proxy{{"name": "HK"}},
		ProxyGroups: []model.Group{model.SelectGroup("PROXY", []string{"HK"})},
	}
	infos := []Info{
		{Name: "甲", Upload: 1 << 30, Download: 1 << 29, Total: 10 << 30},
		{Name: "乙", Total: 0},
	}
	out := AddInfoGroup(cfg, infos)

	if got := out.ProxyNames(); !slices.Equal(got, []string{"甲：1.5/10.0", "乙：0.0/0.0", "HK"}) {
		t.Fatalf("proxies=%q", got)
	}
	if out.ProxyGroups[0].Name != InfoGroup || !slices.Equal(out.ProxyGroups[0].Members, []string{"甲：1.5/10.0", "乙：0.0/0.0"}) {
		t.Fatalf("group0=%+v", out.ProxyGroups[0])
	}
	if out.ProxyGroups[1].Name != "PROXY" {
		t.Fatalf("group1=%+v", out.ProxyGroups[1])
	}
	if out.Proxies[0]["server"] != "127.0.0.1" {
		t.Fatalf("placeholder=%v", out.Proxies[0])
	}
	if len(cfg.Proxies) != 1 || len(cfg.ProxyGroups) != 1 {
		t.Fatalf("input config was mutated")
	}
	if _, ok := placeholder["name"]; ok {
		t.Fatalf("placeholder template was mutated")
	}
}
