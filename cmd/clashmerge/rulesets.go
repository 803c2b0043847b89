package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/John-Robertt/clashmerge/internal/profile"
	"github.com/John-Robertt/clashmerge/internal/ruleset"
)

func newRulesetsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rulesets",
		Short: "列出已注册的远程规则列表",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prof, err := loadProfile(v)
			if err != nil {
				return err
			}
			return printRulesets(cmd.OutOrStdout(), prof)
		},
	}
}

// printRulesets prints one line per registered entry with the provider name
// it gets in provider mode.
func printRulesets(w io.Writer, prof *profile.Spec) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tPROVIDER\tURL")
	for _, p := range ruleset.Providers(prof) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Group, p.Name, p.URL)
	}
	return tw.Flush()
}
