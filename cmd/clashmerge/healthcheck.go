package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newHealthcheckCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "请求 /healthz，用于容器健康检查",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := v.GetString("healthcheck.url")
			if target == "" {
				listen := v.GetString("listen")
				if cmd.Flags().Changed("listen") {
					listen, _ = cmd.Flags().GetString("listen")
				}
				u, err := deriveHealthzURL(listen)
				if err != nil {
					return err
				}
				target = u
			}
			return runHealthcheck(target, v.GetDuration("healthcheck.timeout"))
		},
	}
	cmd.Flags().String("url", "", "健康检查 URL（默认由 listen 推导）")
	// Not bound: "listen" belongs to serve.
	cmd.Flags().String("listen", "", "服务监听地址（默认读取配置中的 listen）")
	cmd.Flags().Duration("timeout", 3*time.Second, "请求超时")
	bindFlag(v, cmd, "url", "healthcheck.url")
	bindFlag(v, cmd, "timeout", "healthcheck.timeout")
	return cmd
}

// deriveHealthzURL turns a listen address into a loopback /healthz URL.
// Wildcard hosts become 127.0.0.1.
func deriveHealthzURL(listen string) (string, error) {
	s := strings.TrimSpace(listen)
	if s == "" {
		s = defaultListen
	}
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")

	if !strings.Contains(s, ":") {
		s = ":" + s
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	if port == "" {
		return "", fmt.Errorf("invalid listen address %q: missing port", listen)
	}
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz", nil
}

func runHealthcheck(target string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
