// Command mylogger-decode is the offline decoder driver's CLI entrypoint
// (spec.md §6, "Decoder CLI"), grounded on the cobra command structure in
// rzbill-flo's cmd/flo/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TMac-wei/mylogger/decoder"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "mylogger-decode <input_log> <server_private_hex> <output_txt>",
		Short: "Decode an encrypted mylogger rolling log file to plain text",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, serverPrivHex, outputPath := args[0], args[1], args[2]
			count := 0
			err := decoder.Run(decoder.Options{
				InputPath:     inputPath,
				ServerPrivHex: serverPrivHex,
				OutputPath:    outputPath,
				Pattern:       pattern,
				ProgressHandler: func(itemsDecoded int) {
					count = itemsDecoded
					fmt.Fprintf(os.Stderr, "decoded %d items\n", itemsDecoded)
				},
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w (last progress report: %d items decoded)", inputPath, err, count)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "formatting pattern for decoded records (default uses the built-in pattern)")
	return cmd
}
