package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/John-Robertt/clashmerge/internal/httpapi"
)

const defaultListen = "127.0.0.1:25500"

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务（GET /sub）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}
	fs := cmd.Flags()
	fs.String("listen", defaultListen, "HTTP 监听地址")
	fs.String("token", "", "访问令牌（为空则不校验）")
	fs.Duration("convert-timeout", 60*time.Second, "单次转换的总超时（包含远程拉取）")
	fs.String("ruleset-mode", httpapi.RulesetInline, "规则列表输出方式：inline|provider")
	fs.Duration("read-header-timeout", 5*time.Second, "HTTP ReadHeaderTimeout（请求头读取超时）")
	fs.Duration("shutdown-timeout", 10*time.Second, "收到退出信号后的优雅退出等待时间")

	bindFlag(v, cmd, "listen", "listen")
	bindFlag(v, cmd, "token", "token")
	bindFlag(v, cmd, "convert-timeout", "convert.timeout")
	bindFlag(v, cmd, "ruleset-mode", "ruleset.mode")
	bindFlag(v, cmd, "read-header-timeout", "server.read_header_timeout")
	bindFlag(v, cmd, "shutdown-timeout", "server.shutdown_timeout")
	return cmd
}

func serverOptions(v *viper.Viper) (httpapi.Options, error) {
	mode := v.GetString("ruleset.mode")
	if mode != httpapi.RulesetInline && mode != httpapi.RulesetProvider {
		return httpapi.Options{}, fmt.Errorf("ruleset.mode 只能是 inline 或 provider: %q", mode)
	}
	prof, err := loadProfile(v)
	if err != nil {
		return httpapi.Options{}, err
	}
	return httpapi.Options{
		ConvertTimeout:     v.GetDuration("convert.timeout"),
		FetchTimeout:       v.GetDuration("fetch.timeout"),
		Token:              v.GetString("token"),
		Profile:            prof,
		RulesetMode:        mode,
		RulesetConcurrency: v.GetInt("ruleset.concurrency"),
	}, nil
}

func runServe(ctx context.Context, v *viper.Viper) error {
	opt, err := serverOptions(v)
	if err != nil {
		return err
	}
	store, err := openCache(v)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opt.Cache = store
	}

	listen := v.GetString("listen")
	srv := &http.Server{
		Addr:              listen,
		Handler:           httpapi.NewRouterWithOptions(opt),
		ReadHeaderTimeout: v.GetDuration("server.read_header_timeout"),
	}

	logrus.WithFields(logrus.Fields{
		"listen":  listen,
		"ruleset": opt.RulesetMode,
		"cache":   store != nil,
		"auth":    opt.Token != "",
	}).Info("listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logrus.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("server.shutdown_timeout"))
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logrus.WithError(err).Warn("graceful shutdown failed")
			_ = srv.Close()
		}

		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
