package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/John-Robertt/clashmerge/internal/clash"
	"github.com/John-Robertt/clashmerge/internal/fetch"
	"github.com/John-Robertt/clashmerge/internal/merge"
	"github.com/John-Robertt/clashmerge/internal/profile"
	"github.com/John-Robertt/clashmerge/internal/ruleset"
)

type mergeFlags struct {
	input  string
	output string
	format string
	expand bool
}

func newMergeCmd(v *viper.Viper) *cobra.Command {
	var f mergeFlags
	cmd := &cobra.Command{
		Use:   "merge -i base.yaml",
		Short: "将规则表合并进一份基础配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prof, err := loadProfile(v)
			if err != nil {
				return err
			}
			return runMerge(cmd.Context(), v, prof, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "基础配置文件（- 表示标准输入）")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "输出文件（默认标准输出）")
	cmd.Flags().StringVar(&f.format, "format", "yaml", "输出格式：yaml|json")
	cmd.Flags().BoolVar(&f.expand, "expand", false, "拉取远程规则列表并追加到基础配置的规则之后")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runMerge(ctx context.Context, v *viper.Viper, prof *profile.Spec, f mergeFlags, stdout io.Writer) error {
	if f.format != "yaml" && f.format != "json" {
		return fmt.Errorf("不支持的输出格式: %q", f.format)
	}

	cfg, err := readBaseConfig(f.input)
	if err != nil {
		return err
	}

	if f.expand {
		expanded, err := expandRulesets(ctx, v, prof)
		if err != nil {
			return err
		}
		cfg.Rules = append(cfg.Rules, expanded...)
	}

	out, err := merge.MergeConfig(cfg, prof)
	if err != nil {
		return err
	}

	var b []byte
	if f.format == "json" {
		b, err = clash.MarshalJSON(out)
	} else {
		b, err = clash.MarshalYAML(out)
	}
	if err != nil {
		return err
	}

	if f.output == "" || f.output == "-" {
		_, err = stdout.Write(b)
		return err
	}
	if err := os.WriteFile(f.output, b, 0o644); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"output":  f.output,
		"rules":   len(out.Rules),
		"proxies": len(out.Proxies),
	}).Info("config written")
	return nil
}

func readBaseConfig(path string) (*clash.Config, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return clash.Parse(path, b)
}

func expandRulesets(ctx context.Context, v *viper.Viper, prof *profile.Spec) ([]string, error) {
	var f ruleset.Fetcher = ruleset.HTTPFetcher(fetch.Options{Timeout: v.GetDuration("fetch.timeout")})
	store, err := openCache(v)
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
		f = ruleset.CachedFetcher(store, f)
	}
	return ruleset.Expand(ctx, prof, f, ruleset.Options{Concurrency: v.GetInt("ruleset.concurrency")})
}
