package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wudi/colorkit/cmm"
)

var profileCmd = &cobra.Command{
	Use:   "profile <name-or-file>...",
	Short: "Describe built-in spaces or ICC profile files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmm.NewFactory()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROFILE\tNAME\tCLASS\tSPACE\tPCS\tSIZE")
		for _, arg := range args {
			p, err := cmm.LoadProfile(f, arg)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%q\t%q\t%d\n", arg, p.Name(), p.Class(), p.ColorSpace(), p.PCS(), len(p.Data()))
		}
		return tw.Flush()
	},
}
