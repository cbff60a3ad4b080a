package lib

import (
	"fmt"
	"strings"
)

// Mode is the mode cfdem is run in, the first command line argument.
type Mode int

const (
	HelpMode Mode = iota
	VersionMode
	ExampleMode
	CheckMode
	RunMode
)

var modeNames = []string{"help", "version", "example", "check", "run"}

func (m Mode) String() string { return modeNames[m] }

// NeedsConfig returns true if the mode reads a configuration file.
func (m Mode) NeedsConfig() bool { return m == CheckMode || m == RunMode }

// ParseMode converts a mode name to a Mode.
func ParseMode(name string) (Mode, error) {
	for i := range modeNames {
		if strings.EqualFold(name, modeNames[i]) {
			return Mode(i), nil
		}
	}
	return HelpMode, fmt.Errorf("'%s' is not a mode. The valid modes are "+
		"%s", name, strings.Join(modeNames, ", "))
}

// CheckStrictness indicates how the "check" mode should behave when it
// encounters a problem which doesn't make the configuration invalid.
type CheckStrictness int

const (
	CrashOnError CheckStrictness = iota
	WarnOnError
)

// ParseStrictness converts "crash" or "warn" to a CheckStrictness.
func ParseStrictness(name string) (CheckStrictness, error) {
	switch strings.ToLower(name) {
	case "crash":
		return CrashOnError, nil
	case "warn":
		return WarnOnError, nil
	}
	return CrashOnError, fmt.Errorf("'%s' is not a check strictness. "+
		"Use 'crash' or 'warn'", name)
}
