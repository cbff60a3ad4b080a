/*package catio reads whitespace-separated text tables, such as the particle
input deck read at startup.
*/
package catio

import (
	"os"
)

// TextConfig contains the information needed to parse a text table.
type TextConfig struct {
	Separator   byte           // Character used to separate fields.
	Comment     byte           // Character used to start comments.
	SkipLines   int            // Number of non-empty lines to skip at the start.
	ColumnNames map[string]int // Map from column names to column indices.
}

// DefaultConfig is a TextConfig which reads space-separated tables with
// '#' comments.
var DefaultConfig = TextConfig{
	Separator:   ' ',
	Comment:     '#',
	SkipLines:   0,
	ColumnNames: map[string]int{},
}

// Reader gives access to the columns of a text table. columns may be []int
// or []string, in which case the names are looked up in the
// TextConfig.ColumnNames.
type Reader interface {
	ReadInts(columns interface{}) ([][]int, error)
	ReadFloat64s(columns interface{}) ([][]float64, error)

	// Lines returns the number of data lines in the table.
	Lines() int
}

// TextFile creates a Reader for a text file.
func TextFile(fname string, config ...TextConfig) (Reader, error) {
	text, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	return Text(text, config...), nil
}

// Text creates a Reader for a block of text.
func Text(text []byte, config ...TextConfig) Reader {
	return newTextReader(text, config...)
}
