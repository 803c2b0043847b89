package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/John-Robertt/clashmerge/internal/merge"
	"github.com/John-Robertt/clashmerge/internal/profile"
)

func newNodesCmd(v *viper.Viper) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "nodes -i base.yaml",
		Short: "列出参与分组的节点，以及每个节点过滤器的匹配结果",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prof, err := loadProfile(v)
			if err != nil {
				return err
			}
			cfg, err := readBaseConfig(input)
			if err != nil {
				return err
			}
			return printNodes(cmd.OutOrStdout(), prof, merge.ExtractNodeNames(cfg.Proxies, prof))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "基础配置文件（- 表示标准输入）")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func printNodes(w io.Writer, prof *profile.Spec, names []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "nodes (%d):\n", len(names))
	for _, n := range names {
		fmt.Fprintf(&b, "  %s\n", n)
	}
	for _, rs := range prof.RuleSets {
		if rs.Nodes == nil {
			continue
		}
		writeMatches(&b, "rule set "+rs.Name, profile.MatchNames(rs.Nodes, names))
	}
	for _, nf := range prof.NodeFilters {
		writeMatches(&b, "filter "+nf.Name, prof.FilterNodes(nf.Name, names))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeMatches(b *strings.Builder, title string, names []string) {
	fmt.Fprintf(b, "%s (%d):", title, len(names))
	if len(names) == 0 {
		b.WriteString(" -\n")
		return
	}
	b.WriteString(" " + strings.Join(names, ", ") + "\n")
}
