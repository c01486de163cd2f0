// Command mkinitrd builds a CPIO or TAR initial-ramdisk image from a
// host directory tree, for cmd/kerneld's -initrd flag. Grounded on
// biscuit's mkfs.go host-directory walk, restated around initrd.WriteCPIO/
// WriteTAR instead of a full on-disk filesystem image.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"corekernel/initrd"
)

func main() {
	var format string
	var outPath string

	root := &cobra.Command{
		Use:   "mkinitrd <host-dir>",
		Short: "Build a CPIO or TAR initial-ramdisk image from a host directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostDir := args[0]

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch format {
			case "cpio":
				return initrd.WriteCPIO(out, hostDir)
			case "tar":
				return initrd.WriteTAR(out, hostDir)
			default:
				return fmt.Errorf("unknown format %q (want cpio or tar)", format)
			}
		},
	}

	root.Flags().StringVarP(&format, "format", "f", "cpio", "image format: cpio or tar")
	root.Flags().StringVarP(&outPath, "output", "o", "", "output path (default: stdout)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mkinitrd:", err)
		os.Exit(1)
	}
}
