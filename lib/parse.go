package lib

import (
	"fmt"
	"strings"
)

// Usage is printed by the "help" mode and after command line errors.
const Usage = `Usage:
    cfdem <mode> [config file] [--Section.Key value]...

Modes:
    run      Run the simulation described by the config file.
    check    Check the config file for errors without running anything.
    example  Print an example config file listing every variable.
    version  Print the version.
    help     Print this message.

Any config variable can be overridden on the command line, e.g.
    cfdem run cfdem.cfg --Run.MaxStep 100 --Output.PlotInt=10

The flag --strictness (crash or warn) controls whether problems found by
check which don't make the config invalid stop the run.
`

// Args stores the processed command line.
type Args struct {
	Mode       Mode
	ConfigFile string
	// Overrides are "Section.Key=Value" assignments applied on top of the
	// config file.
	Overrides  []string
	Strictness CheckStrictness
}

// ParseCommandLine parses the command line arguments, not including the
// program name. Expects that the arguments are presented in the order:
// $ cfdem <mode> <config file> [--<Arg1> <Value1>] [--<Arg2>=<Value2>]
func ParseCommandLine(argv []string) (*Args, error) {
	args := &Args{Mode: HelpMode, Strictness: CrashOnError}
	if len(argv) == 0 {
		return args, nil
	}

	var err error
	if args.Mode, err = ParseMode(argv[0]); err != nil {
		return nil, err
	}
	rest := argv[1:]
	if !args.Mode.NeedsConfig() {
		if len(rest) > 0 {
			return nil, fmt.Errorf("the '%s' mode takes no arguments",
				args.Mode)
		}
		return args, nil
	}

	if len(rest) == 0 || strings.HasPrefix(rest[0], "--") {
		return nil, fmt.Errorf("the '%s' mode needs a config file", args.Mode)
	}
	args.ConfigFile, rest = rest[0], rest[1:]

	for len(rest) > 0 {
		arg := rest[0]
		if !strings.HasPrefix(arg, "--") || len(arg) == 2 {
			return nil, fmt.Errorf("expected a flag like --Section.Key, "+
				"got '%s'", arg)
		}
		key, value, hasValue := strings.Cut(arg[2:], "=")
		rest = rest[1:]
		if !hasValue {
			if len(rest) == 0 {
				return nil, fmt.Errorf("the flag --%s has no value", key)
			}
			value, rest = rest[0], rest[1:]
		}

		if strings.EqualFold(key, "strictness") {
			if args.Strictness, err = ParseStrictness(value); err != nil {
				return nil, err
			}
			continue
		}
		if !strings.Contains(key, ".") {
			return nil, fmt.Errorf("the flag --%s must have the form "+
				"--Section.Key", key)
		}
		args.Overrides = append(args.Overrides, key+"="+value)
	}
	return args, nil
}
