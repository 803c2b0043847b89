// Package sub fetches subscriptions (Clash YAML, or ss:// lists), reads their
// usage headers and merges several of them into one proxy list.
package sub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/clashmerge/internal/clash"
	"github.com/John-Robertt/clashmerge/internal/fetch"
	"github.com/John-Robertt/clashmerge/internal/model"
	"github.com/John-Robertt/clashmerge/internal/sub/ss"
)

// Response headers a Clash client understands; they are passed through to
// the converted output.
var TransparentHeaders = []string{
	"Content-Disposition",
	"Profile-Update-Interval",
	"Subscription-Userinfo",
	"Profile-Web-Page-Url",
}

// Info is the usage reported by one subscription. Sizes are bytes; Expire is
// a unix timestamp, 0 when unknown.
type Info struct {
	URL      string
	Name     string
	Upload   int64
	Download int64
	Total    int64
	Expire   int64
}

type Subscription struct {
	Proxies []clash.Proxy
	Header  http.Header
	Infos   []Info
}

type SubError struct {
	AppError model.AppError
	Cause    error
}

func (e *SubError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *SubError) Unwrap() error { return e.Cause }

// Fetch downloads one subscription. name is used unless the provider sends a
// Content-Disposition file name.
func Fetch(ctx context.Context, rawURL, name string, opt fetch.Options) (*Subscription, error) {
	resp, err := fetch.Fetch(ctx, fetch.KindSubscription, rawURL, opt)
	if err != nil {
		return nil, err
	}
	return Parse(rawURL, name, []byte(resp.Body), resp.Header)
}

// FetchAll downloads every subscription concurrently, keeping input order.
// Default names are 订阅01, 订阅02, ...
func FetchAll(ctx context.Context, urls []string, opt fetch.Options, concurrency int) ([]*Subscription, error) {
	out := make([]*Subscription, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			s, err := Fetch(gctx, u, fmt.Sprintf("订阅%02d", i+1), opt)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse decodes a subscription body and its response headers.
func Parse(rawURL, name string, body []byte, header http.Header) (*Subscription, error) {
	var doc struct {
		Proxies []clash.Proxy `yaml:"proxies"`
	}
	err := yaml.Unmarshal(body, &doc)
	if (err != nil || len(doc.Proxies) == 0) && ss.Looks(string(body)) {
		proxies, serr := ss.Parse(redact(rawURL), string(body))
		if serr != nil {
			var pe *ss.ParseError
			if errors.As(serr, &pe) {
				return nil, &SubError{AppError: pe.AppError, Cause: serr}
			}
			return nil, serr
		}
		doc.Proxies, err = proxies, nil
	}
	if err != nil {
		return nil, &SubError{
			AppError: model.AppError{
				Code:    "SUB_PARSE_ERROR",
				Message: "订阅内容不是合法的 Clash YAML",
				Stage:   "parse_sub",
				URL:     redact(rawURL),
				Snippet: truncateSnippet(string(body), 200),
				Hint:    "订阅需返回 Clash 格式（请求已携带 User-Agent: clash.meta）",
			},
			Cause: err,
		}
	}
	if len(doc.Proxies) == 0 {
		return nil, &SubError{
			AppError: model.AppError{
				Code:    "SUB_PARSE_ERROR",
				Message: "订阅中没有任何节点",
				Stage:   "parse_sub",
				URL:     redact(rawURL),
				Snippet: truncateSnippet(string(body), 200),
			},
		}
	}

	info := Info{URL: rawURL, Name: name}
	if fn := ExtractFilename(header.Get("Content-Disposition")); fn != "" {
		info.Name = fn
	}
	if ui := header.Get("Subscription-Userinfo"); ui != "" {
		info.Upload, info.Download, info.Total, info.Expire = ParseUserinfo(ui)
	}

	kept := make(http.Header)
	for _, h := range TransparentHeaders {
		if v := header.Get(h); v != "" {
			kept.Set(h, v)
		}
	}

	logrus.WithFields(logrus.Fields{
		"name":    info.Name,
		"proxies": len(doc.Proxies),
	}).Info("subscription loaded")

	return &Subscription{Proxies: doc.Proxies, Header: kept, Infos: []Info{info}}, nil
}

// ParseUserinfo reads "upload=1; download=2; total=3; expire=4". Malformed
// pairs are ignored.
func ParseUserinfo(header string) (upload, download, total, expire int64) {
	for _, pair := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			continue
		}
		switch strings.TrimSpace(k) {
		case "upload":
			upload = n
		case "download":
			download = n
		case "total":
			total = n
		case "expire":
			expire = n
		}
	}
	return
}

// ExtractFilename returns the Content-Disposition file name without its
// extension. filename*= (RFC 5987) wins over filename= when both are present.
func ExtractFilename(contentDisposition string) string {
	var plain string
	for _, part := range strings.Split(contentDisposition, ";") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "filename*="):
			v := strings.TrimPrefix(part, "filename*=")
			if _, rest, ok := strings.Cut(v, "''"); ok {
				v = rest
			}
			v = strings.Trim(v, `"`)
			if dec, err := url.PathUnescape(v); err == nil {
				v = dec
			}
			return trimExt(v)
		case strings.HasPrefix(part, "filename=") && plain == "":
			plain = trimExt(strings.Trim(strings.TrimPrefix(part, "filename="), `"`))
		}
	}
	return plain
}

func trimExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// Merge concatenates proxies in order, sums traffic and keeps the latest
// expiry. The combined name is every subscription name joined by " | ".
func Merge(subs []*Subscription) *Subscription {
	out := &Subscription{Header: make(http.Header)}
	var up, down, total, expire int64
	var names []string
	for _, s := range subs {
		if s == nil {
			continue
		}
		out.Proxies = append(out.Proxies, s.Proxies...)
		for _, info := range s.Infos {
			up += info.Upload
			down += info.Download
			total += info.Total
			expire = max(expire, info.Expire)
			names = append(names, info.Name)
			out.Infos = append(out.Infos, info)
		}
		for _, h := range []string{"Profile-Update-Interval", "Profile-Web-Page-Url"} {
			if v := s.Header.Get(h); v != "" && out.Header.Get(h) == "" {
				out.Header.Set(h, v)
			}
		}
	}

	if total > 0 {
		out.Header.Set("Subscription-Userinfo", fmt.Sprintf("upload=%d; download=%d; total=%d; expire=%d", up, down, total, expire))
	}
	if len(names) > 0 {
		out.Header.Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(strings.Join(names, " | ")))
	}
	return out
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u == nil {
		return rawURL
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max]
}
