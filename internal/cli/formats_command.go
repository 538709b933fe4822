package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mixdeck.click/internal/sample"
)

// newFormatsCommand creates the formats subcommand
func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported file formats, encodings, and backends",
		Args:  cobra.NoArgs,
		RunE:  runFormatsE,
	}
}

func runFormatsE(cmd *cobra.Command, args []string) error {
	cli := cliFromContext(cmd.Context())
	if cli == nil {
		return fmt.Errorf("internal error: CLI instance not available")
	}
	cli.initializeSystems()

	cmd.Printf("File formats: %s\n", strings.Join(cli.registry.SupportedFormats(), ", "))

	encodings := []sample.Encoding{
		sample.EncodingU8,
		sample.EncodingS16,
		sample.EncodingS24,
		sample.EncodingS32,
		sample.EncodingF32,
	}
	names := make([]string, len(encodings))
	for i, e := range encodings {
		names[i] = e.String()
	}
	cmd.Printf("Device encodings: %s\n", strings.Join(names, ", "))

	cmd.Printf("Output backends: %s\n", strings.Join(cli.backendFactory.GetSupportedBackends(), ", "))
	return nil
}
