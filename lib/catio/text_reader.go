package catio

import (
	"bytes"
	"fmt"
	"strconv"
)

type textReader struct {
	config TextConfig
	lines  [][]byte
	// lineNums maps lines back to their (one-indexed) position in the text.
	lineNums []int
}

// newTextReader creates a new textReader over text. An optional config can be
// provided, otherwise DefaultConfig will be used.
func newTextReader(text []byte, config ...TextConfig) *textReader {
	reader := &textReader{config: DefaultConfig}
	if len(config) > 0 {
		reader.config = config[0]
	}

	lines := split(text, '\n')
	lines = uncomment(lines, reader.config.Comment)
	lines = trim(lines, reader.config.Separator)
	reader.lines, reader.lineNums = nonEmpty(lines)

	skip := reader.config.SkipLines
	if skip > len(reader.lines) {
		skip = len(reader.lines)
	}
	reader.lines = reader.lines[skip:]
	reader.lineNums = reader.lineNums[skip:]

	return reader
}

func (t *textReader) Lines() int { return len(t.lines) }

// columnIndices converts the generic columns variable into integer indices.
// If columns is []int, it returns them, if columns is []string, it looks up
// the corresponding ints.
func (t *textReader) columnIndices(columns interface{}) ([]int, error) {
	switch cols := columns.(type) {
	case []int:
		return cols, nil
	case []string:
		idxs := make([]int, len(cols))
		for i := range cols {
			idx, ok := t.config.ColumnNames[cols[i]]
			if !ok {
				return nil, fmt.Errorf("unknown column name '%s'", cols[i])
			}
			idxs[i] = idx
		}
		return idxs, nil
	}
	return nil, fmt.Errorf("columns argument must be []int or []string, "+
		"not %T", columns)
}

// ReadInts reads the specified columns and interprets them as ints.
func (t *textReader) ReadInts(columns interface{}) ([][]int, error) {
	idxs, err := t.columnIndices(columns)
	if err != nil {
		return nil, err
	}
	return readColumns(t, idxs, func(s string) (int, error) {
		return strconv.Atoi(s)
	})
}

// ReadFloat64s reads the specified columns and interprets them as float64s.
func (t *textReader) ReadFloat64s(columns interface{}) ([][]float64, error) {
	idxs, err := t.columnIndices(columns)
	if err != nil {
		return nil, err
	}
	return readColumns(t, idxs, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func readColumns[T any](
	t *textReader, idxs []int, parse func(string) (T, error),
) ([][]T, error) {
	out := make([][]T, len(idxs))
	for i := range out {
		out[i] = make([]T, len(t.lines))
	}

	for j, line := range t.lines {
		words := fields(line, t.config.Separator)
		for i, col := range idxs {
			if col < 0 || col >= len(words) {
				return nil, fmt.Errorf("line %d has %d columns, but column "+
					"%d was requested", t.lineNums[j], len(words), col)
			}
			x, err := parse(string(words[col]))
			if err != nil {
				return nil, fmt.Errorf("could not parse column %d of line "+
					"%d: %w", col, t.lineNums[j], err)
			}
			out[i][j] = x
		}
	}

	return out, nil
}

// split splits text into lines. Windows line endings are tolerated.
func split(text []byte, sep byte) [][]byte {
	lines := bytes.Split(text, []byte{sep})
	for i := range lines {
		lines[i] = bytes.TrimSuffix(lines[i], []byte{'\r'})
	}
	return lines
}

// uncomment removes everything after the comment character on each line.
func uncomment(lines [][]byte, comment byte) [][]byte {
	for i := range lines {
		if idx := bytes.IndexByte(lines[i], comment); idx >= 0 {
			lines[i] = lines[i][:idx]
		}
	}
	return lines
}

// trim removes leading and trailing separators and tabs.
func trim(lines [][]byte, sep byte) [][]byte {
	cut := string([]byte{sep, '\t'})
	for i := range lines {
		lines[i] = bytes.Trim(lines[i], cut)
	}
	return lines
}

func nonEmpty(lines [][]byte) ([][]byte, []int) {
	out, nums := [][]byte{}, []int{}
	for i := range lines {
		if len(lines[i]) > 0 {
			out = append(out, lines[i])
			nums = append(nums, i+1)
		}
	}
	return out, nums
}

// fields splits a line into words. A space separator splits on any run of
// whitespace.
func fields(line []byte, sep byte) [][]byte {
	if sep == ' ' {
		return bytes.Fields(line)
	}
	words := bytes.Split(line, []byte{sep})
	for i := range words {
		words[i] = bytes.TrimSpace(words[i])
	}
	return words
}
