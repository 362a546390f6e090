package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"fips", "nsi", "census", "mapping", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "incore-data", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestNSIInventoryCommand_Flags(t *testing.T) {
	for _, name := range []string{"fips", "state", "geojson", "region", "random", "seed", "out-csv", "out-shp", "out-geojson", "summary", "save"} {
		assert.NotNil(t, nsiInventoryCmd.Flags().Lookup(name), "missing --%s", name)
	}
	assert.NotNil(t, nsiFetchCmd.Flags().Lookup("out-geojson"))
}

func TestCensusDislocationCommand_Flags(t *testing.T) {
	f := censusDislocationCmd.Flags()
	for _, name := range []string{"counties", "vintage", "dataset", "out-csv", "out-shp", "out-html", "save"} {
		assert.NotNil(t, f.Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, "geo_name", f.Lookup("geo-name").DefValue)
	assert.Equal(t, "program_name", f.Lookup("program-name").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "expected runs subcommand %q not found", name)
	}
}
