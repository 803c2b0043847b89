package ruleset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/John-Robertt/clashmerge/internal/fetch"
	"github.com/John-Robertt/clashmerge/internal/profile"
	"github.com/John-Robertt/clashmerge/internal/rules"
)

func specWith(entries ...profile.RemoteRuleset) *profile.Spec {
	return &profile.Spec{RemoteRulesets: entries}
}

func TestRegister_TableOrder(t *testing.T) {
	var got []string
	Register(profile.Default(), func(group, url string) {
		got = append(got, group)
	})
	if len(got) != 26 {
		t.Fatalf("registrations=%d, want=26", len(got))
	}
	want := []string{"DIRECT", "DIRECT", "WebAD", "AppAD", "GoogleCN"}
	if !slices.Equal(got[:5], want) {
		t.Fatalf("first groups=%q, want=%q", got[:5], want)
	}
	if got[len(got)-1] != "DIRECT" {
		t.Fatalf("last group=%q", got[len(got)-1])
	}
}

func TestRegister_NilSafe(t *testing.T) {
	Register(nil, func(string, string) { t.Fatalf("callback must not run") })
	Register(profile.Default(), nil)
	if got := Entries(&profile.Spec{}); len(got) != 0 {
		t.Fatalf("entries=%v", got)
	}
}

func TestExpand_KeepsRegistrationOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow.list":
			// Finishes last but must still come first.
			time.Sleep(50 * time.Millisecond)
			_, _ = w.Write([]byte("# comment\nDOMAIN-SUFFIX,slow.com\n"))
		case "/fast.list":
			_, _ = w.Write([]byte("IP-CIDR,10.0.0.0/8,no-resolve\nUSER-AGENT,foo*\n\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	spec := specWith(
		profile.RemoteRuleset{Group: "Slow", URL: ts.URL + "/slow.list"},
		profile.RemoteRuleset{Group: "DIRECT", URL: ts.URL + "/fast.list"},
	)
	got, err := Expand(context.Background(), spec, HTTPFetcher(fetch.Options{}), Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"DOMAIN-SUFFIX,slow.com,Slow",
		"IP-CIDR,10.0.0.0/8,DIRECT,no-resolve",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("rules=%q\nwant=%q", got, want)
	}
}

func TestExpand_FetchErrorPropagates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	spec := specWith(profile.RemoteRuleset{Group: "DIRECT", URL: ts.URL + "/a.list"})
	_, err := Expand(context.Background(), spec, HTTPFetcher(fetch.Options{}), Options{})
	var ee *ExpandError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExpandError, got %T: %v", err, err)
	}
	if ee.AppError.Code != "RULESET_FETCH_ERROR" {
		t.Fatalf("code=%q, want=%q", ee.AppError.Code, "RULESET_FETCH_ERROR")
	}
	var fe *fetch.FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusBadGateway {
		t.Fatalf("expected wrapped *fetch.FetchError, got %v", err)
	}
}

func TestExpand_ParseError(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, rawURL string) (string, error) {
		return "DOMAIN-SUFFIX,ok.com\nbroken\n", nil
	})
	spec := specWith(profile.RemoteRuleset{Group: "DIRECT", URL: "https://example.com/x.list"})
	_, err := Expand(context.Background(), spec, f, Options{})
	var pe *rules.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *rules.ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Line != 2 {
		t.Fatalf("line=%d, want=2", pe.AppError.Line)
	}
}

func TestExpand_RespectsConcurrencyLimit(t *testing.T) {
	var inflight, peak atomic.Int32
	f := FetcherFunc(func(ctx context.Context, rawURL string) (string, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return "DOMAIN," + strings.TrimPrefix(rawURL, "https://x/"), nil
	})

	var entries []profile.RemoteRuleset
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		entries = append(entries, profile.RemoteRuleset{Group: "G", URL: "https://x/" + name})
	}
	got, err := Expand(context.Background(), specWith(entries...), f, Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 6 || got[0] != "DOMAIN,a,G" || got[5] != "DOMAIN,f,G" {
		t.Fatalf("rules=%q", got)
	}
	if p := peak.Load(); p > 2 {
		t.Fatalf("peak concurrency=%d, want<=2", p)
	}
}

type mapCache struct {
	data  map[string]string
	calls int
}

func (c *mapCache) GetOrPut(ctx context.Context, key string, supply func(context.Context) (string, error)) (string, error) {
	c.calls++
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	v, err := supply(ctx)
	if err != nil {
		return "", err
	}
	c.data[key] = v
	return v, nil
}

func TestCachedFetcher(t *testing.T) {
	var hits atomic.Int32
	next := FetcherFunc(func(ctx context.Context, rawURL string) (string, error) {
		hits.Add(1)
		return "DOMAIN,a.com", nil
	})
	c := &mapCache{data: map[string]string{}}
	f := CachedFetcher(c, next)
	for i := 0; i < 3; i++ {
		if _, err := f.FetchText(context.Background(), "https://x/a.list"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if hits.Load() != 1 || c.calls != 3 {
		t.Fatalf("hits=%d calls=%d, want 1 and 3", hits.Load(), c.calls)
	}
}

func TestProviders(t *testing.T) {
	spec := specWith(
		profile.RemoteRuleset{Group: "DIRECT", URL: "https://example.com/Clash/LocalAreaNetwork.list"},
		profile.RemoteRuleset{Group: "Games", URL: "https://example.com/Ruleset/Steam.list"},
		profile.RemoteRuleset{Group: "DIRECT", URL: "https://example.com/other/Steam.list"},
		profile.RemoteRuleset{Group: "PROXY", URL: "https://example.com/"},
		profile.RemoteRuleset{Group: "PROXY", URL: "https://example.com/a+b.list?x=1"},
	)
	ps := Providers(spec)
	var names []string
	for _, p := range ps {
		names = append(names, p.Name)
	}
	want := []string{"LocalAreaNetwork", "Steam", "Steam-2", "ruleset", "a_b"}
	if !slices.Equal(names, want) {
		t.Fatalf("names=%q, want=%q", names, want)
	}

	ruleLines := ProviderRules(ps)
	if ruleLines[1] != "RULE-SET,Steam,Games" || ruleLines[2] != "RULE-SET,Steam-2,DIRECT" {
		t.Fatalf("rules=%q", ruleLines)
	}
	for _, l := range ruleLines {
		if _, err := rules.ParseInlineRule(l); err != nil {
			t.Fatalf("provider rule %q does not parse: %v", l, err)
		}
	}

	cfg := ProviderConfig(ps)
	steam, ok := cfg["Steam"].(map[string]any)
	if !ok || steam["url"] != "https://example.com/Ruleset/Steam.list" || steam["behavior"] != "classical" {
		t.Fatalf("provider=%v", cfg["Steam"])
	}
}
