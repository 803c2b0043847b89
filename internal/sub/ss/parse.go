// Package ss reads ss:// subscription lists (plain or base64) into runtime
// proxy entries, for providers that do not serve Clash YAML.
package ss

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/clashmerge/internal/clash"
	"github.com/John-Robertt/clashmerge/internal/model"
)

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Looks reports whether content is plausibly an ss list: it contains a raw
// ss:// URI, or base64 that decodes to one.
func Looks(content string) bool {
	s := strings.TrimSpace(strings.TrimPrefix(content, "\uFEFF"))
	if strings.Contains(s, "ss://") {
		return true
	}
	decoded, err := decodeBase64(removeSpace(s))
	return err == nil && strings.Contains(string(decoded), "ss://")
}

// Parse decodes the list. Blank lines and # comments are skipped; any other
// scheme is an error.
func Parse(sourceURL, content string) ([]clash.Proxy, error) {
	s := strings.TrimSpace(strings.TrimPrefix(content, "\uFEFF"))
	if s == "" {
		return nil, newParseError(sourceURL, 0, "", "SUB_PARSE_ERROR", "订阅内容为空", "", nil)
	}

	if !strings.Contains(s, "ss://") {
		b, err := decodeBase64(removeSpace(s))
		if err != nil {
			return nil, newParseError(sourceURL, 0, truncateSnippet(s, 200), "SUB_BASE64_DECODE_ERROR", "订阅 base64 解码失败", "", err)
		}
		if !utf8.Valid(b) {
			return nil, newParseError(sourceURL, 0, "", "SUB_BASE64_DECODE_ERROR", "订阅 base64 解码结果不是合法 UTF-8", "", nil)
		}
		s = strings.TrimSpace(strings.TrimPrefix(string(b), "\uFEFF"))
	}

	lines := strings.Split(s, "\n")
	out := make([]clash.Proxy, 0, len(lines))
	for i, raw := range lines {
		l := line{url: sourceURL, no: i + 1, raw: raw}
		text := strings.TrimSpace(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if !strings.HasPrefix(text, "ss://") {
			return nil, l.failHint("SUB_UNSUPPORTED_SCHEME", "仅支持 ss:// 协议", "expected: ss://...", nil)
		}
		p, err := l.parseURI(text)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, newParseError(sourceURL, 0, "", "SUB_PARSE_ERROR", "订阅中没有任何可用节点", "", nil)
	}
	return out, nil
}

type line struct {
	url string
	no  int
	raw string
}

func (l line) fail(msg string, cause error) error {
	return l.failHint("SUB_PARSE_ERROR", msg, "", cause)
}

func (l line) failHint(code, msg, hint string, cause error) error {
	return newParseError(l.url, l.no, truncateSnippet(l.raw, 200), code, msg, hint, cause)
}

// parseURI accepts SIP002 (ss://b64(method:password)@host:port/?plugin=...#name)
// and the legacy ss://b64(method:password@host:port)#name form.
func (l line) parseURI(s string) (clash.Proxy, error) {
	body, frag, _ := strings.Cut(s, "#")
	name, err := url.PathUnescape(frag)
	if err != nil {
		return nil, l.fail("节点名称 URL 解码失败", err)
	}
	name = strings.TrimSpace(name)
	if strings.ContainsAny(name, "\r\n\x00") {
		return nil, l.failHint("SUB_PARSE_ERROR", "节点名称包含非法控制字符", `forbidden: \r \n \0`, nil)
	}

	body, query, _ := strings.Cut(body, "?")
	rest := strings.TrimPrefix(body, "ss://")
	if rest == "" {
		return nil, l.fail("ss:// 后缺少内容", nil)
	}

	var method, password, hostPort string
	if user, host, ok := strings.Cut(rest, "@"); ok {
		if user == "" || host == "" {
			return nil, l.fail("ss uri 格式不合法", nil)
		}
		if i := strings.IndexByte(host, '/'); i >= 0 {
			if host[i:] != "/" {
				return nil, l.fail("ss uri path 不支持（仅允许空或 /）", nil)
			}
			host = host[:i]
		}
		decoded, err := decodeBase64(user)
		if err != nil {
			return nil, l.fail("ss userinfo base64 解码失败", err)
		}
		method, password, err = splitCredential(string(decoded))
		if err != nil {
			return nil, l.fail("ss userinfo 不合法", err)
		}
		hostPort = host
	} else {
		decoded, err := decodeBase64(rest)
		if err != nil {
			return nil, l.fail("ss base64 解码失败", err)
		}
		at := strings.LastIndexByte(string(decoded), '@')
		if at < 0 {
			return nil, l.fail("ss base64 解码结果缺少 @ 分隔符", nil)
		}
		method, password, err = splitCredential(string(decoded[:at]))
		if err != nil {
			return nil, l.fail("ss base64 解码结果缺少 cipher:password", err)
		}
		hostPort = string(decoded[at+1:])
	}

	server, port, err := splitHostPort(hostPort)
	if err != nil {
		return nil, l.fail("服务器地址或端口不合法", err)
	}
	if name == "" {
		name = net.JoinHostPort(server, strconv.Itoa(port))
	}

	p := clash.Proxy{
		"name":     name,
		"type":     "ss",
		"server":   server,
		"port":     port,
		"cipher":   strings.ToLower(method),
		"password": password,
	}
	if err := l.applyPlugin(p, query); err != nil {
		return nil, err
	}
	return p, nil
}

// applyPlugin maps the SIP002 plugin query onto Clash plugin fields. The
// query is split by hand: plugin values carry unescaped semicolons that
// url.ParseQuery rejects.
func (l line) applyPlugin(p clash.Proxy, query string) error {
	var value *string
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		kRaw, vRaw, ok := strings.Cut(part, "=")
		if !ok {
			return l.fail("query 参数必须是 key=value 形式", nil)
		}
		k, err := url.PathUnescape(kRaw)
		if err != nil {
			return l.fail("query 参数解码失败", err)
		}
		v, err := url.PathUnescape(vRaw)
		if err != nil {
			return l.fail("query 参数解码失败", err)
		}
		if k != "plugin" {
			return l.failHint("SUB_PARSE_ERROR", "出现未知 query 参数（仅支持 plugin）", "only allow: plugin", nil)
		}
		if value != nil {
			return l.fail("重复的 plugin 参数", nil)
		}
		value = &v
	}
	if value == nil {
		return nil
	}

	segs := strings.Split(*value, ";")
	plugin := strings.TrimSpace(segs[0])
	if plugin == "" {
		return l.fail("plugin 名称不能为空", nil)
	}
	opts := make(map[string]string, len(segs)-1)
	flags := make(map[string]bool)
	for _, seg := range segs[1:] {
		if seg == "" {
			continue
		}
		k, v, ok := strings.Cut(seg, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			return l.fail("plugin 选项 key 不能为空", nil)
		}
		if !ok {
			flags[k] = true
			continue
		}
		opts[k] = strings.TrimSpace(v)
	}

	switch plugin {
	case "simple-obfs", "obfs-local":
		if opts["obfs"] == "" {
			return l.failHint("UNSUPPORTED_PLUGIN", "simple-obfs/obfs-local 缺少必需选项 obfs=<mode>", "example: ?plugin=simple-obfs;obfs=tls;obfs-host=example.com", nil)
		}
		po := map[string]any{"mode": opts["obfs"]}
		if h := opts["obfs-host"]; h != "" {
			po["host"] = h
		}
		p["plugin"] = "obfs"
		p["plugin-opts"] = po
	case "v2ray-plugin":
		mode := opts["mode"]
		if mode == "" {
			mode = "websocket"
		}
		po := map[string]any{"mode": mode}
		if flags["tls"] {
			po["tls"] = true
		}
		if h := opts["host"]; h != "" {
			po["host"] = h
		}
		if path := opts["path"]; path != "" {
			po["path"] = path
		}
		p["plugin"] = "v2ray-plugin"
		p["plugin-opts"] = po
	default:
		return l.failHint("UNSUPPORTED_PLUGIN", fmt.Sprintf("不支持的 SS plugin：%s", plugin), "supported: simple-obfs, obfs-local, v2ray-plugin", nil)
	}
	return nil
}

func splitCredential(s string) (method, password string, err error) {
	if !utf8.ValidString(s) {
		return "", "", errors.New("not valid utf-8")
	}
	m, pw, ok := strings.Cut(s, ":")
	m, pw = strings.TrimSpace(m), strings.TrimSpace(pw)
	if !ok || m == "" || pw == "" {
		return "", "", errors.New("expected method:password")
	}
	if strings.ContainsAny(s, "\r\n\x00") {
		return "", "", errors.New("control chars in method/password")
	}
	return m, pw, nil
}

func splitHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return "", 0, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, err
	}
	if port < 1 || port > 65535 {
		return "", 0, errors.New("port out of range")
	}
	return host, port, nil
}

// decodeBase64 tries padded and raw forms of both alphabets.
func decodeBase64(s string) ([]byte, error) {
	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func removeSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func newParseError(sourceURL string, lineNo int, snippet, code, message, hint string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "parse_sub",
			URL:     sourceURL,
			Line:    lineNo,
			Snippet: snippet,
			Hint:    hint,
		},
		Cause: cause,
	}
}
