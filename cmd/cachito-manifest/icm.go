package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var icmCmd = &cobra.Command{
	Use:   "icm",
	Short: "Generate an Image Content Manifest",
	Long: `Generate the request's Image Content Manifest as JSON.

Examples:
  cachito-manifest icm --packages packages.json --repo https://example.com/org/repo --ref deadbeef
  resolver | cachito-manifest icm --repo https://example.com/org/repo --ref deadbeef -o icm.json`,
	RunE: runICM,
}

func runICM(cmd *cobra.Command, args []string) error {
	cm, _, err := loadManifest()
	if err != nil {
		return err
	}
	icm, err := cm.ICM(cmd.Context())
	if err != nil {
		return err
	}

	w, closer, err := openOutput()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(icm); err != nil {
		closer()
		return err
	}
	return closer()
}
