package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kubev2v/document-extractor/pkg/version"
	"github.com/spf13/cobra"
)

type VersionOptions struct {
	Output string
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print document extractor version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json).")
	return cmd
}

func (o *VersionOptions) Run(out io.Writer) error {
	versionInfo := version.Get()
	switch o.Output {
	case "":
		_, err := fmt.Fprintf(out, "Document Extractor Version: %s\n", versionInfo.String())
		return err
	case "json":
		return json.NewEncoder(out).Encode(versionInfo)
	default:
		return fmt.Errorf("unknown output format %q", o.Output)
	}
}
