package lib

/* check.go contains the core functions of cfdem's "check" mode. */

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/errs"
)

// Check reads and validates the config file named in args. Invalid
// configurations always return an error. Problems which only show up when
// looking at the environment (missing input files, output directories which
// don't exist, too many threads) are returned as an error under
// CrashOnError and as warnings under WarnOnError.
func Check(args *Args) (cfg *config.Config, warnings []string, err error) {
	cfg, err = config.Read(args.ConfigFile, args.Overrides...)
	if err != nil {
		return nil, nil, err
	}

	problems := environmentProblems(cfg)
	if len(problems) > 0 && args.Strictness == CrashOnError {
		return nil, nil, &errs.ConfigError{
			Section: problems[0].section, Key: problems[0].key,
			Msg: problems[0].msg,
		}
	}
	for _, p := range problems {
		warnings = append(warnings, fmt.Sprintf("[%s] %s: %s",
			p.section, p.key, p.msg))
	}
	return cfg, warnings, nil
}

type problem struct {
	section, key, msg string
}

func environmentProblems(cfg *config.Config) []problem {
	var out []problem
	add := func(section, key, format string, a ...interface{}) {
		out = append(out, problem{section, key, fmt.Sprintf(format, a...)})
	}

	if n := cfg.Amr.Threads; n > runtime.NumCPU() {
		add("Amr", "Threads", "%d threads requested, but there are only "+
			"%d cores", n, runtime.NumCPU())
	}

	run := &cfg.Run
	switch {
	case strings.EqualFold(run.Restart, "latest"):
		if cfg.Output.CatalogFile == "" {
			add("Run", "Restart", "restarting from 'latest' needs "+
				"[Output] CatalogFile")
		}
	case run.Restart != "":
		if _, err := os.Stat(run.Restart); err != nil {
			add("Run", "Restart", "can't find checkpoint '%s'", run.Restart)
		}
	}

	pc := &cfg.Particles
	if run.Restart == "" && run.SolveDEM &&
		strings.EqualFold(pc.InitType, "file") {
		if _, err := os.Stat(pc.InputFile); err != nil {
			add("Particles", "InputFile", "can't find particle input "+
				"file '%s'", pc.InputFile)
		}
	}

	oc := &cfg.Output
	outputs := []struct {
		key, prefix string
		interval    int
	}{
		{"CheckFile", oc.CheckFile, oc.CheckInt},
		{"PlotFile", oc.PlotFile, oc.PlotInt},
		{"ParAsciiFile", oc.ParAsciiFile, oc.ParAsciiInt},
		{"AvgFile", oc.AvgFile, oc.AvgInt},
	}
	for _, o := range outputs {
		if o.interval <= 0 && o.key != "CheckFile" {
			continue
		}
		dir := filepath.Dir(o.prefix)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			add("Output", o.key, "the directory '%s' doesn't exist", dir)
		}
	}
	return out
}
