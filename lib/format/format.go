/*package format handles cfdem's miniature formatting languages for output
steps and output names, e.g:

   CheckFile = out/chk{%06d,step}
   CheckSteps = 0..10 + 100 - 3

Name formats are a combination of fixed text and variables. Variables are
written as {verb,step}, where verb is a printf() verb (e.g. %05d). Names
without any variables have "%05d" of the step appended to them, so "chk"
becomes chk00010 at step 10.

Sequence formats are a generic way to specify non-contiguous sequences of
natural numbers. They consist of a series of tokens separated by "+" or "-".
Each token can be either a number or two numbers separted by "..". E.g.:

  100
  0..100
  0..10 + 100
  0..100 - 63 - 10..20

All spaces around "-" and "+" symbols are ignored.
*/
package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// Any expanded formats which would have more than BigNumber elements are
	// assumed to be bugs.
	BigNumber = 1 << 20
)

// StepSet is a set of step numbers built from a sequence format.
type StepSet map[int]bool

// NewStepSet parses a sequence format into a StepSet. An empty format gives
// an empty set.
func NewStepSet(format string) (StepSet, error) {
	set := StepSet{}
	if strings.TrimSpace(format) == "" {
		return set, nil
	}
	steps, err := ExpandSequenceFormat(format)
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		set[s] = true
	}
	return set, nil
}

// Contains returns true if step is in the set.
func (set StepSet) Contains(step int) bool { return set[step] }

// ExpandSequenceFormat expands a sequence format string into a sorted sequence
// of integers.
func ExpandSequenceFormat(format string) ([]int, error) {
	tok, err := tokeniseSequenceFormat(format)
	if err != nil {
		return nil, err
	}
	adds, subs, err := addsSubsSequenceFormat(tok)
	if err != nil {
		return nil, err
	}

	m := map[int]bool{}
	for i := range adds {
		for _, n := range parseSequenceFormatToken(adds[i]) {
			if m[n] {
				return nil, fmt.Errorf("the number %d is added more than "+
					"once", n)
			}
			m[n] = true
		}
	}

	for i := range subs {
		for _, n := range parseSequenceFormatToken(subs[i]) {
			if !m[n] {
				return nil, fmt.Errorf("the number %d is removed more times "+
					"than it was inserted", n)
			}
			delete(m, n)
		}
	}

	if len(m) > BigNumber {
		return nil, fmt.Errorf("this sequence would have %d elements, which "+
			"is almost certainly a bug", len(m))
	}

	out := make([]int, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Ints(out)

	return out, nil
}

// tokeniseSequenceFormat splits a sequence format into numeric tokens and
// operators.
func tokeniseSequenceFormat(format string) ([]string, error) {
	clean := strings.ReplaceAll(format, "+", " + ")
	clean = strings.ReplaceAll(clean, "-", " - ")

	tok := []string{}
	for _, t := range strings.Fields(clean) {
		tok = append(tok, t)
	}

	if len(tok) == 0 {
		return nil, fmt.Errorf("the format string is empty")
	}
	return tok, nil
}

func addsSubsSequenceFormat(tok []string) (adds, subs []string, err error) {
	if len(tok) == 0 {
		return nil, nil, fmt.Errorf("format string is empty")
	}

	// A leading "+" may be dropped.
	adds, subs = []string{}, []string{}
	start := 0
	if tok[0] != "+" && tok[0] != "-" {
		if err := isSequenceFormatToken(tok[0]); err != nil {
			return nil, nil, fmt.Errorf("element 1, '%s', cannot be "+
				"parsed because %s", tok[0], err.Error())
		}
		adds = append(adds, tok[0])
		start = 1
	}

	for i := start; i < len(tok); i += 2 {
		if tok[i] != "-" && tok[i] != "+" {
			return nil, nil, fmt.Errorf("element %d, '%s', should be a "+
				"'-' or '+', but isn't", i+1, tok[i])
		}
		if i+1 >= len(tok) {
			return nil, nil, fmt.Errorf("the format string ends in a "+
				"trailing '%s'", tok[i])
		}
		if err := isSequenceFormatToken(tok[i+1]); err != nil {
			return nil, nil, fmt.Errorf("element %d, '%s', cannot be "+
				"parsed because %s", i+2, tok[i+1], err.Error())
		}

		if tok[i] == "+" {
			adds = append(adds, tok[i+1])
		} else {
			subs = append(subs, tok[i+1])
		}
	}

	return adds, subs, nil
}

// isSequenceFormatToken returns a nil error if tok is a valid token for
// a sequence format and an error describing the problem otherwise. The error
// message assumes it is printed after a trailing "because".
func isSequenceFormatToken(tok string) error {
	if len(tok) == 0 {
		return fmt.Errorf("the token is empty")
	}

	bounds := strings.Split(tok, "..")
	switch len(bounds) {
	case 1:
		if _, err := strconv.Atoi(bounds[0]); err != nil {
			return fmt.Errorf("'%s' is not an integer", bounds[0])
		}
		return nil
	case 2:
		start, err := strconv.Atoi(bounds[0])
		if err != nil {
			return fmt.Errorf("'%s' is not an integer", bounds[0])
		}
		end, err := strconv.Atoi(bounds[1])
		if err != nil {
			return fmt.Errorf("'%s' is not an integer", bounds[1])
		}
		if end < start {
			return fmt.Errorf("lower bound %d is larger than upper bound %d",
				start, end)
		}
		return nil
	}
	return fmt.Errorf("it has more than one '..'")
}

// parseSequenceFormatToken expands a token which has already passed
// isSequenceFormatToken.
func parseSequenceFormatToken(tok string) []int {
	bounds := strings.Split(tok, "..")
	if len(bounds) == 1 {
		n, _ := strconv.Atoi(tok)
		return []int{n}
	}

	start, _ := strconv.Atoi(bounds[0])
	end, _ := strconv.Atoi(bounds[1])
	out := make([]int, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, n)
	}
	return out
}

// StepName expands a name format for the given step.
func StepName(format string, step int) (string, error) {
	starts, ends, err := startsEndsFormatString(format)
	if err != nil {
		return "", err
	}
	if len(starts) == 0 {
		return fmt.Sprintf("%s%05d", format, step), nil
	}

	sb := &strings.Builder{}
	prev := 0
	for i := range starts {
		sb.WriteString(format[prev:starts[i]])

		v := format[starts[i]+1 : ends[i]-1]
		tok := strings.Split(v, ",")
		if len(tok) != 2 || strings.TrimSpace(tok[1]) != "step" {
			return "", fmt.Errorf("the name format '%s' has an invalid "+
				"variable, '{%s}'. Variables must look like {%%05d,step}",
				format, v)
		}
		verb := strings.TrimSpace(tok[0])
		if !strings.HasPrefix(verb, "%") || !strings.HasSuffix(verb, "d") {
			return "", fmt.Errorf("the name format '%s' uses the verb '%s', "+
				"but only integer verbs are allowed", format, verb)
		}
		fmt.Fprintf(sb, verb, step)

		prev = ends[i]
	}
	sb.WriteString(format[prev:])

	return sb.String(), nil
}

// startsEndsFormatString returns the indices of the beginning and end of each
// format variable.
func startsEndsFormatString(format string) (starts, ends []int, err error) {
	starts, ends = []int{}, []int{}
	nested := 0

	for i := range format {
		switch format[i] {
		case '{':
			nested++
			starts = append(starts, i)
		case '}':
			nested--
			ends = append(ends, i+1)
		}

		if nested > 1 {
			return nil, nil, fmt.Errorf("the name format '%s' has nested "+
				"'{' characters at index %d", format, i)
		} else if nested < 0 {
			return nil, nil, fmt.Errorf("the name format '%s' has a '}' "+
				"without a '{' at index %d", format, i)
		}
	}

	if len(ends) != len(starts) {
		return nil, nil, fmt.Errorf("the name format '%s' has a '{' "+
			"without a matching '}' at index %d", format,
			starts[len(starts)-1])
	}

	return starts, ends, nil
}
