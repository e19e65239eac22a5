package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/v0xg/formpilot/internal/intent"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <kind> <description>",
		Short: "Show how a step description is parsed, without a browser",
		Example: `  formpilot classify tap '性别选择中的"男"选项'
  formpilot classify input 意见建议输入框`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := intent.ParseKind(args[0])
			if err != nil {
				return err
			}
			in := intent.New(kind, strings.Join(args[1:], " "))
			fmt.Fprintln(cmd.OutOrStdout(), in)
			if !in.Searchable() && kind == intent.KindTap {
				fmt.Fprintln(cmd.OutOrStdout(), "  (no literal or category: only the AI resolver can act on this)")
			}
			return nil
		},
	}
}
