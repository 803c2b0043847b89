package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCacheCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "管理规则列表缓存",
	}
	var all bool
	purge := &cobra.Command{
		Use:   "purge",
		Short: "删除过期的缓存条目（--all 删除全部）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(v)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("未配置 cache.path")
			}
			defer store.Close()

			del := store.Purge
			if all {
				del = store.Clear
			}
			n, err := del(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries\n", n)
			return nil
		},
	}
	purge.Flags().BoolVar(&all, "all", false, "删除全部条目")
	cmd.AddCommand(purge)
	return cmd
}
