//go:build !integration

package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subcommandNames(c *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range c.Commands() {
		names[sub.Name()] = true
	}
	return names
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(rootCmd)
	for _, name := range []string{
		"scrape", "geocode", "reconcile", "classify", "aggregate", "trends",
		"reviews", "migrate", "load", "export", "serve",
	} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "school-research", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level"} {
		f := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, "root should have --%s", name)
		assert.Empty(t, f.DefValue)
	}
}

func TestRootCommand_MissingConfigFails(t *testing.T) {
	t.Cleanup(func() { configPath = "" })
	err := runRoot(t, "--config", "/nonexistent/school-research.yaml", "reviews", "dates", "--in", "x.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestScrapeCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(scrapeCmd)
	for _, name := range []string{
		"2gis-list", "2gis-school", "2gis-reviews", "yandex-list", "yandex-school",
		"yandex-reviews", "uchi", "google", "cadastral", "runs", "purge-cache",
	} {
		assert.True(t, names[name], "scrape should have subcommand %q", name)
	}
}

func TestScrapeCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"browser-only", "cache-ttl", "reset"} {
		assert.NotNil(t, scrapeCmd.PersistentFlags().Lookup(name), "scrape should have --%s", name)
	}
	assert.Equal(t, "24h0m0s", scrapeCmd.PersistentFlags().Lookup("cache-ttl").DefValue)
}

func TestNestedCommands(t *testing.T) {
	tests := []struct {
		parent *cobra.Command
		want   []string
	}{
		{geocodeCmd, []string{"forward", "reverse", "near"}},
		{reconcileCmd, []string{"sources", "near"}},
		{reviewsCmd, []string{"filter", "split", "merge", "dates", "check"}},
		{loadCmd, []string{"schools", "reviews"}},
		{exportCmd, []string{"xlsx", "json"}},
	}
	for _, tt := range tests {
		t.Run(tt.parent.Name(), func(t *testing.T) {
			names := subcommandNames(tt.parent)
			for _, w := range tt.want {
				assert.True(t, names[w], "%s should have subcommand %q", tt.parent.Name(), w)
			}
		})
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestReviewsFilter_RequiredFlags(t *testing.T) {
	for _, name := range []string{"in", "out", "ids"} {
		f := reviewsFilterCmd.Flags().Lookup(name)
		require.NotNil(t, f, "filter should have --%s", name)
		assert.Equal(t, []string{"true"}, f.Annotations[cobra.BashCompOneRequiredFlag])
	}
}
