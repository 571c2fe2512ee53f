package main

import (
	"fmt"
	"io"
	"os"

	"github.com/quay/zlog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/fepas/cachito"
	"github.com/fepas/cachito/contentmanifest"
)

var (
	flagDebug    bool
	flagConfig   string
	flagPackages string
	flagRepo     string
	flagRef      string
	flagOutput   string
)

// config is the optional YAML configuration file. Flags take precedence over
// the file's values.
type config struct {
	Repo   string `yaml:"repo"`
	Ref    string `yaml:"ref"`
	Format string `yaml:"format"`
}

var rootCmd = &cobra.Command{
	Use:   "cachito-manifest",
	Short: "Generate content manifests for resolved build requests",
	Long: `cachito-manifest reads the JSON package list produced by a dependency
resolver and emits either an Image Content Manifest (ICM) or an SBOM
document describing the request's content.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if flagDebug {
			level = zerolog.DebugLevel
		}
		l := zerolog.New(os.Stderr).
			Level(level).
			With().
			Timestamp().
			Logger()
		zlog.Set(&l)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flagDebug, "debug", false, "enable debug logging")
	pf.StringVarP(&flagConfig, "config", "c", "", "path to a YAML configuration file")
	pf.StringVarP(&flagPackages, "packages", "p", "-", "path to the resolved packages JSON (use '-' for stdin)")
	pf.StringVar(&flagRepo, "repo", "", "URL of the request's repository")
	pf.StringVar(&flagRef, "ref", "", "resolved commit or tag of the request")
	pf.StringVarP(&flagOutput, "output", "o", "-", "output file path (use '-' for stdout)")

	rootCmd.AddCommand(icmCmd)
	rootCmd.AddCommand(sbomCmd)
}

// loadConfig reads the configuration file, if given, and fills in any flag
// values the caller omitted.
func loadConfig() (*config, error) {
	var cfg config
	if flagConfig != "" {
		buf, err := os.ReadFile(flagConfig)
		if err != nil {
			return nil, fmt.Errorf("unable to read configuration: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("unable to parse configuration: %w", err)
		}
	}
	if flagRepo != "" {
		cfg.Repo = flagRepo
	}
	if flagRef != "" {
		cfg.Ref = flagRef
	}
	if cfg.Format == "" {
		cfg.Format = "cyclonedx"
	}
	return &cfg, nil
}

// loadManifest assembles a ContentManifest from the configuration and the
// packages file.
func loadManifest() (*contentmanifest.ContentManifest, *config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var buf []byte
	if flagPackages == "-" {
		buf, err = io.ReadAll(os.Stdin)
	} else {
		buf, err = os.ReadFile(flagPackages)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read packages: %w", err)
	}
	pkgs, err := cachito.ParsePackages(buf)
	if err != nil {
		return nil, nil, err
	}

	req := &cachito.Request{Repo: cfg.Repo, Ref: cfg.Ref}
	return contentmanifest.New(req, pkgs), cfg, nil
}

// openOutput returns the writer for the document and a close function.
func openOutput() (io.Writer, func() error, error) {
	if flagOutput == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(flagOutput)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open output: %w", err)
	}
	return f, f.Close, nil
}
