// Command auditverify checks a hash-chained audit log for tampering,
// wrapping audit.Verify with a CLI surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"corekernel/audit"
)

func main() {
	root := &cobra.Command{
		Use:   "auditverify <log-file>",
		Short: "Verify the hash chain of an audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := audit.Verify(args[0])
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			fmt.Printf("checked %d entries\n", res.EntriesChecked)
			if len(res.Errors) == 0 {
				fmt.Println("chain intact")
				return nil
			}
			for _, e := range res.Errors {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			return fmt.Errorf("%d chain violation(s) found", len(res.Errors))
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "auditverify:", err)
		os.Exit(1)
	}
}
