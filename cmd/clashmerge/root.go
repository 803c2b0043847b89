package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/John-Robertt/clashmerge/internal/cache"
	"github.com/John-Robertt/clashmerge/internal/logx"
	"github.com/John-Robertt/clashmerge/internal/profile"
	"github.com/John-Robertt/clashmerge/internal/ruleset"
)

var version string

// newRootCmd builds the command tree around its own viper instance so tests
// can run it repeatedly.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CLASHMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "clashmerge",
		Short:         "clashmerge 将规则表与订阅合并进 Clash/mihomo 配置",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := readConfig(v); err != nil {
				return err
			}
			logx.SetupWriter(cmd.ErrOrStderr(), v.GetString("log.level"), v.GetBool("log.json"))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "配置文件路径（默认查找 /etc/clashmerge、~/.clashmerge 与当前目录下的 clashmerge.yaml）")
	pf.String("profile", "", "规则表 YAML 路径（为空则使用内置默认值）")
	pf.String("log-level", "info", "日志级别：debug|info|warn|error")
	pf.Bool("log-json", false, "以 JSON 格式输出日志")
	pf.Duration("fetch-timeout", 15*time.Second, "单次远程拉取的超时")
	pf.String("cache-path", "", "规则列表缓存数据库路径（为空则不缓存）")
	pf.Duration("cache-expire", cache.DefaultExpire, "缓存有效期")
	pf.Int("ruleset-concurrency", ruleset.DefaultConcurrency, "并发拉取规则列表的数量")

	bindFlag(v, root, "config", "config")
	bindFlag(v, root, "profile", "profile")
	bindFlag(v, root, "log-level", "log.level")
	bindFlag(v, root, "log-json", "log.json")
	bindFlag(v, root, "fetch-timeout", "fetch.timeout")
	bindFlag(v, root, "cache-path", "cache.path")
	bindFlag(v, root, "cache-expire", "cache.expire")
	bindFlag(v, root, "ruleset-concurrency", "ruleset.concurrency")

	root.AddCommand(
		newMergeCmd(v),
		newNodesCmd(v),
		newRulesetsCmd(v),
		newServeCmd(v),
		newHealthcheckCmd(v),
		newCacheCmd(v),
	)
	return root
}

// bindFlag binds a flag of cmd (persistent or local) to a viper key.
func bindFlag(v *viper.Viper, cmd *cobra.Command, name, key string) {
	f := cmd.PersistentFlags().Lookup(name)
	if f == nil {
		f = cmd.Flags().Lookup(name)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func readConfig(v *viper.Viper) error {
	if f := v.GetString("config"); f != "" {
		v.SetConfigFile(f)
		return v.ReadInConfig()
	}

	v.SetConfigName("clashmerge")
	v.AddConfigPath("/etc/clashmerge/")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".clashmerge"))
	}
	if wd, err := os.Getwd(); err == nil {
		v.AddConfigPath(wd)
	}

	// The config file is optional.
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func loadProfile(v *viper.Viper) (*profile.Spec, error) {
	return profile.LoadFile(v.GetString("profile"))
}

// openCache returns nil when no cache path is configured.
func openCache(v *viper.Viper) (*cache.Store, error) {
	p := v.GetString("cache.path")
	if p == "" {
		return nil, nil
	}
	return cache.Open(p, v.GetDuration("cache.expire"))
}
