package lib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/cfdem/lib/errs"
)

func TestParseCommandLine(t *testing.T) {
	args, err := ParseCommandLine(nil)
	require.NoError(t, err)
	assert.Equal(t, HelpMode, args.Mode)

	args, err = ParseCommandLine([]string{"version"})
	require.NoError(t, err)
	assert.Equal(t, VersionMode, args.Mode)

	args, err = ParseCommandLine([]string{
		"run", "cfdem.cfg", "--Run.MaxStep", "100", "--Output.PlotInt=10",
		"--strictness", "warn",
	})
	require.NoError(t, err)
	assert.Equal(t, RunMode, args.Mode)
	assert.Equal(t, "cfdem.cfg", args.ConfigFile)
	assert.Equal(t, []string{"Run.MaxStep=100", "Output.PlotInt=10"},
		args.Overrides)
	assert.Equal(t, WarnOnError, args.Strictness)

	args, err = ParseCommandLine([]string{"CHECK", "a.cfg"})
	require.NoError(t, err)
	assert.Equal(t, CheckMode, args.Mode)
}

func TestParseCommandLineErrors(t *testing.T) {
	for _, argv := range [][]string{
		{"convert"},
		{"run"},
		{"run", "--Run.MaxStep", "3"},
		{"run", "a.cfg", "--Run.MaxStep"},
		{"run", "a.cfg", "Run.MaxStep", "3"},
		{"run", "a.cfg", "--MaxStep", "3"},
		{"run", "a.cfg", "--strictness", "sometimes"},
		{"version", "extra"},
	} {
		_, err := ParseCommandLine(argv)
		assert.Error(t, err, argv)
	}
}

func writeConfig(t *testing.T, text string) string {
	fname := filepath.Join(t.TempDir(), "cfdem.cfg")
	require.NoError(t, os.WriteFile(fname, []byte(text), 0644))
	return fname
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	fname := writeConfig(t, "[Amr]\nNCellX = 8\nNCellY = 8\nNCellZ = 8\n"+
		"BlockingFactor = 4\n[Output]\nCheckFile = "+
		filepath.Join(dir, "chk")+"\n")

	cfg, warnings, err := Check(&Args{Mode: CheckMode, ConfigFile: fname})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 8, cfg.Amr.NCellX)

	cfg, _, err = Check(&Args{Mode: CheckMode, ConfigFile: fname,
		Overrides: []string{"Run.MaxStep=7"}})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Run.MaxStep)

	_, _, err = Check(&Args{Mode: CheckMode, ConfigFile: fname,
		Overrides: []string{"Amr.NCellX=6"}})
	assert.Equal(t, errs.Config, errs.KindOf(err))
}

func TestCheckStrictness(t *testing.T) {
	fname := writeConfig(t, "[Run]\nRestart = "+
		filepath.Join(t.TempDir(), "missing")+"\n"+
		"[Output]\nCheckFile = "+filepath.Join(t.TempDir(), "chk")+"\n")

	_, _, err := Check(&Args{Mode: CheckMode, ConfigFile: fname})
	assert.Equal(t, errs.Config, errs.KindOf(err))

	cfg, warnings, err := Check(&Args{Mode: CheckMode, ConfigFile: fname,
		Strictness: WarnOnError})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Restart")
}

func TestSetThreads(t *testing.T) {
	assert.NoError(t, SetThreads(-1))
	assert.NoError(t, SetThreads(1))
	assert.Error(t, SetThreads(1<<20))
}

func TestVersionString(t *testing.T) {
	assert.Contains(t, VersionString(), Version)
}
