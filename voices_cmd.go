package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/tts/engines"
)

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the speakers of the configured engine",
	Long:    paragraph(fmt.Sprintf("\n%s the speaker names the selected engine accepts for --speaker.", keyword("List"))),
	Example: paragraph("readaloud voices --engine openai\nreadaloud voices -e piper"),
	Args:    cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return validateOptions(cmd)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		provider, err := engines.New(opts.engine, opts.engines)
		if err != nil {
			return err
		}

		voices := provider.Voices()
		if len(voices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), paragraph(fmt.Sprintf("%s accepts any speaker name.", keyword(provider.Name()))))
			return nil
		}
		for _, v := range voices {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		return nil
	},
}
