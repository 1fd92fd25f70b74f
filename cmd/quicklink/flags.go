package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"
)

type AppFlags struct {
	PageURLs         []string
	GlobalConfigFile string
	Mode             string
	Overrides        map[string]any
	ShowHistory      int
	HistorySite      string
}

// optionFlags collects repeated -set key=value arguments
type optionFlags map[string]any

func (o optionFlags) String() string {
	parts := make([]string, 0, len(o))
	for key, value := range o {
		parts = append(parts, fmt.Sprintf("%s=%v", key, value))
	}
	return strings.Join(parts, ",")
}

// Set parses key=value. Values are decoded as JSON when possible, so
// -set limit=4 and -set 'origins=["cdn.example.com"]' carry their types.
func (o optionFlags) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", raw)
	}

	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err == nil {
		o[key] = decoded
	} else {
		o[key] = value
	}
	return nil
}

func ParseFlags(fs *flag.FlagSet, args []string) (AppFlags, error) {
	pageURLs := fs.String("url", "", "Page URL to observe (comma-separated for several pages)")
	pageURLsAlias := fs.String("u", "", "Alias for -url")

	globalConfigFile := fs.String("config", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	globalConfigFileAlias := fs.String("c", "", "Alias for -config")

	modeFlag := fs.String("mode", "", "Observer mode: static or headless (overrides config file if set)")
	modeFlagAlias := fs.String("m", "", "Alias for -mode")

	showHistory := fs.Int("history", 0, "Print the N most recent runs from the history database and exit")
	historySite := fs.String("site", "", "Restrict -history to pages under this registrable domain")

	overrides := optionFlags{}
	fs.Var(overrides, "set", "Prefetch option override as key=value (repeatable)")

	if err := fs.Parse(args); err != nil {
		return AppFlags{}, err
	}

	flags := AppFlags{
		Overrides:   overrides,
		ShowHistory: *showHistory,
		HistorySite: *historySite,
	}

	rawURLs := *pageURLs
	if rawURLs == "" {
		rawURLs = *pageURLsAlias
	}
	for _, u := range strings.Split(rawURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			flags.PageURLs = append(flags.PageURLs, u)
		}
	}
	flags.PageURLs = append(flags.PageURLs, fs.Args()...)

	if *globalConfigFile != "" {
		flags.GlobalConfigFile = *globalConfigFile
	} else if *globalConfigFileAlias != "" {
		flags.GlobalConfigFile = *globalConfigFileAlias
	}

	if *modeFlag != "" {
		flags.Mode = *modeFlag
	} else if *modeFlagAlias != "" {
		flags.Mode = *modeFlagAlias
	}

	if len(flags.PageURLs) == 0 && flags.ShowHistory <= 0 {
		return flags, fmt.Errorf("-url is required")
	}

	return flags, nil
}
