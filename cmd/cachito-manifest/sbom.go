package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fepas/cachito/sbom"
	"github.com/fepas/cachito/sbom/cyclonedx"
	"github.com/fepas/cachito/sbom/spdx"
)

var (
	flagFormat       string
	flagSerialNumber bool
)

var sbomCmd = &cobra.Command{
	Use:   "sbom",
	Short: "Generate a Software Bill of Materials",
	Long: `Generate an SBOM document for the request's resolved packages.

Examples:
  cachito-manifest sbom --packages packages.json --repo https://example.com/org/repo --ref deadbeef
  cachito-manifest sbom --format spdx -p packages.json -o sbom.spdx.json`,
	RunE: runSBOM,
}

func init() {
	sbomCmd.Flags().StringVarP(&flagFormat, "format", "f", "", "output format: cyclonedx or spdx (overrides the configuration file)")
	sbomCmd.Flags().BoolVar(&flagSerialNumber, "serial-number", false, "add a serial number to CycloneDX documents")
}

func runSBOM(cmd *cobra.Command, args []string) error {
	cm, cfg, err := loadManifest()
	if err != nil {
		return err
	}
	format := cfg.Format
	if flagFormat != "" {
		format = flagFormat
	}

	var enc sbom.Encoder
	switch format {
	case "cyclonedx", "cdx":
		var opts []cyclonedx.Option
		if flagSerialNumber {
			opts = append(opts, cyclonedx.WithSerialNumber())
		}
		enc = cyclonedx.NewDefaultEncoder(opts...)
	case "spdx":
		enc = spdx.NewDefaultEncoder(
			spdx.WithDocumentName(cm.Request.RepoName()),
			spdx.WithDocumentNamespace(cm.Request.Repo),
		)
	default:
		return fmt.Errorf("unsupported format %q (supported: cyclonedx, spdx)", format)
	}

	w, closer, err := openOutput()
	if err != nil {
		return err
	}
	if err := enc.Encode(cmd.Context(), w, cm); err != nil {
		closer()
		return err
	}
	return closer()
}
