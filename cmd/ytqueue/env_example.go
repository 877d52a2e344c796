package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("Successfully generated .env.example file")
	return nil
}

// envSection groups related flags under one heading in .env.example.
type envSection struct {
	title string
	flags []string
}

var envSections = []envSection{
	{
		title: "YouTube Music provider",
		flags: []string{
			"provider-base-url",
			"provider-auth-file",
			"provider-rate-limit",
			"provider-timeout-secs",
			"provider-oembed-fallback",
		},
	},
	{
		title: "Queue engine",
		flags: []string{
			"infinite-mode",
			"min-queue-size",
			"refill-batch-size",
			"primary-floor",
			"tracking-capacity",
			"cache-ttl-secs",
			"fetch-timeout-ms",
			"instant-timeout-ms",
			"refill-check-interval-secs",
		},
	},
	{
		title: "Taste profile",
		flags: []string{"taste-artists", "taste-genres"},
	},
	{
		title: "HTTP server and control API",
		flags: []string{"server-host", "server-port", "api-limit-per-minute", "api-radio-limit-per-minute"},
	},
	{
		title: "Persistence",
		flags: []string{"store-enabled", "store-path"},
	},
	{
		title: "Logging",
		flags: []string{"log-level"},
	},
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# ytqueue Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n\n")

	for _, section := range envSections {
		generateSection(&content, cmd, section)
	}

	return content.String()
}

func generateSection(content *strings.Builder, cmd *cobra.Command, section envSection) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", section.title)
	content.WriteString("# -----------------------------------------------------------------------------\n")

	for _, name := range section.flags {
		f := cmd.Root().PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(content, "# %s (default: %q)\n", f.Usage, f.DefValue)
		fmt.Fprintf(content, "%s=%s\n", flagToEnvVar(name), f.DefValue)
	}
	content.WriteString("\n")
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
