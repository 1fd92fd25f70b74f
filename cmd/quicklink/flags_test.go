package main

import (
	"flag"
	"io"
	"testing"

	"github.com/aleister1102/quicklink/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("quicklink", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags(newFlagSet(), []string{
		"-u", "https://example.com/a, https://example.com/b",
		"-c", "quicklink.yaml",
		"-m", "headless",
		"-set", "limit=4",
		"-set", `origins=["cdn.example.com"]`,
		"-set", "onError=log",
		"https://example.com/c",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}, flags.PageURLs)
	assert.Equal(t, "quicklink.yaml", flags.GlobalConfigFile)
	assert.Equal(t, "headless", flags.Mode)
	assert.Equal(t, float64(4), flags.Overrides["limit"])
	assert.Equal(t, []any{"cdn.example.com"}, flags.Overrides["origins"])
	assert.Equal(t, "log", flags.Overrides["onError"])
}

func TestParseFlags_LongNamesWin(t *testing.T) {
	flags, err := ParseFlags(newFlagSet(), []string{"-url", "https://a.test", "-u", "https://b.test", "-config", "x.json", "-c", "y.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test"}, flags.PageURLs)
	assert.Equal(t, "x.json", flags.GlobalConfigFile)
}

func TestParseFlags_Errors(t *testing.T) {
	_, err := ParseFlags(newFlagSet(), nil)
	assert.Error(t, err)

	_, err = ParseFlags(newFlagSet(), []string{"-url", "https://a.test", "-set", "novalue"})
	assert.Error(t, err)

	flags, err := ParseFlags(newFlagSet(), []string{"-history", "5", "-site", "example.com"})
	require.NoError(t, err)
	assert.Equal(t, 5, flags.ShowHistory)
	assert.Equal(t, "example.com", flags.HistorySite)
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.NewDefaultGlobalConfig()
	cfg.PrefetchConfig.Overrides = nil

	applyOverrides(cfg, map[string]any{"throttle": float64(100)})
	assert.Equal(t, float64(100), cfg.PrefetchConfig.Overrides["throttle"])
}
