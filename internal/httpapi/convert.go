package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/clashmerge/internal/clash"
	"github.com/John-Robertt/clashmerge/internal/fetch"
	"github.com/John-Robertt/clashmerge/internal/merge"
	"github.com/John-Robertt/clashmerge/internal/profile"
	"github.com/John-Robertt/clashmerge/internal/ruleset"
	"github.com/John-Robertt/clashmerge/internal/sub"
)

const subConcurrency = 4

type convertHandler struct {
	opt     Options
	merger  *merge.Merger
	metrics *metricsSet
}

type convertRequest struct {
	Subs     []string
	Template string
	Profile  string
	FileName string
}

func (h *convertHandler) handleSub(c *gin.Context) {
	if h.opt.Token != "" {
		got := c.Query("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.opt.Token)) != 1 {
			h.writeErrorFromErr(c, apiError(http.StatusUnauthorized, appErr("UNAUTHORIZED", "token 无效", "validate_request"), nil))
			return
		}
	}

	req, err := parseConvertRequest(c)
	if err != nil {
		h.writeErrorFromErr(c, err)
		return
	}
	var disposition string
	if req.FileName != "" {
		name, err := outputFileName(req.FileName)
		if err != nil {
			h.writeErrorFromErr(c, err)
			return
		}
		disposition = contentDispositionAttachment(name)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opt.ConvertTimeout)
	defer cancel()

	start := time.Now()
	out, header, err := h.convert(ctx, req)
	if err != nil {
		h.writeErrorFromErr(c, err)
		return
	}
	h.metrics.convert.Observe(time.Since(start).Seconds())

	for _, k := range sub.TransparentHeaders {
		if v := header.Get(k); v != "" {
			c.Header(k, v)
		}
	}
	if disposition != "" {
		c.Header("Content-Disposition", disposition)
	}
	WriteYAML(c, http.StatusOK, out)
}

func parseConvertRequest(c *gin.Context) (convertRequest, error) {
	var req convertRequest

	seen := make(map[string]struct{})
	for _, s := range c.QueryArray("sub") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		// The same subscription twice would only duplicate proxy names.
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		req.Subs = append(req.Subs, s)
	}
	if len(req.Subs) == 0 {
		return req, requestError("INVALID_ARGUMENT", "缺少 sub 参数", "至少提供一个 sub=<订阅 URL>")
	}

	var err error
	if req.Template, err = singleQuery(c, "template"); err != nil {
		return req, err
	}
	if req.Template == "" {
		return req, requestError("INVALID_ARGUMENT", "缺少 template 参数", "template=<配置模板 URL>")
	}
	if req.Profile, err = singleQuery(c, "profile"); err != nil {
		return req, err
	}
	if req.FileName, err = singleQuery(c, "filename"); err != nil {
		return req, err
	}
	return req, nil
}

func singleQuery(c *gin.Context, key string) (string, error) {
	vals := c.QueryArray(key)
	if len(vals) > 1 {
		return "", requestError("INVALID_ARGUMENT", "参数重复: "+key, "每个参数只允许出现一次")
	}
	if len(vals) == 0 {
		return "", nil
	}
	return strings.TrimSpace(vals[0]), nil
}

// convert runs the whole pipeline and returns the rendered YAML and the
// merged subscription headers.
func (h *convertHandler) convert(ctx context.Context, req convertRequest) ([]byte, http.Header, error) {
	fopt := fetch.Options{Timeout: h.opt.FetchTimeout}

	merger := h.merger
	if req.Profile != "" {
		text, err := fetch.FetchTextWithOptions(ctx, fetch.KindProfile, req.Profile, fopt)
		if err != nil {
			return nil, nil, err
		}
		spec, err := profile.ParseProfileYAML(req.Profile, text)
		if err != nil {
			return nil, nil, err
		}
		merger = merge.New(spec)
	}

	subs, err := sub.FetchAll(ctx, req.Subs, fopt, subConcurrency)
	if err != nil {
		return nil, nil, err
	}
	merged := sub.Merge(subs)

	tpl, err := fetch.FetchTextWithOptions(ctx, fetch.KindTemplate, req.Template, fopt)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := clash.Parse(req.Template, []byte(tpl))
	if err != nil {
		return nil, nil, err
	}
	cfg.Proxies = merged.Proxies

	switch h.opt.RulesetMode {
	case RulesetProvider:
		ps := ruleset.Providers(merger.Spec())
		cfg.RuleProviders = ruleset.ProviderConfig(ps)
		cfg.Rules = ruleset.ProviderRules(ps)
	default:
		var f ruleset.Fetcher = ruleset.HTTPFetcher(fopt)
		if h.opt.Cache != nil {
			f = ruleset.CachedFetcher(h.opt.Cache, f)
		}
		expanded, err := ruleset.Expand(ctx, merger.Spec(), f, ruleset.Options{Concurrency: h.opt.RulesetConcurrency})
		if err != nil {
			return nil, nil, err
		}
		cfg.Rules = expanded
	}

	out, err := merger.Merge(cfg)
	if err != nil {
		return nil, nil, err
	}
	out = sub.AddInfoGroup(out, merged.Infos)
	h.metrics.proxies.Set(float64(len(out.Proxies)))

	b, err := clash.MarshalYAML(out)
	if err != nil {
		return nil, nil, err
	}
	logrus.WithFields(logrus.Fields{
		"subs":    len(req.Subs),
		"proxies": len(out.Proxies),
		"groups":  len(out.ProxyGroups),
		"rules":   len(out.Rules),
	}).Debug("converted")
	return b, merged.Header, nil
}
