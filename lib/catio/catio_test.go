package catio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	text := `# header comment
1 2.5 3
  4	5.5   6 # trailing

7 8.5 9
`
	config := DefaultConfig
	config.ColumnNames = map[string]int{"a": 0, "b": 1, "c": 2}
	rd := Text([]byte(text), config)
	assert.Equal(t, 3, rd.Lines())

	ints, err := rd.ReadInts([]int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 4, 7}, {3, 6, 9}}, ints)

	floats, err := rd.ReadFloat64s([]string{"b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2.5, 5.5, 8.5}}, floats)

	_, err = rd.ReadInts([]string{"d"})
	assert.Error(t, err)
	_, err = rd.ReadInts([]int{3})
	assert.Error(t, err)
	_, err = rd.ReadInts([]int{1})
	assert.Error(t, err)
	_, err = rd.ReadInts(3)
	assert.Error(t, err)
}

func TestSeparator(t *testing.T) {
	config := DefaultConfig
	config.Separator = ','
	config.SkipLines = 1
	rd := Text([]byte("x,y\r\n1, 2\r\n3 ,4\r\n"), config)
	got, err := rd.ReadInts([]int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 3}, {2, 4}}, got)
}

func TestReadParticleInput(t *testing.T) {
	text := `2
1  0.1 0.2 0.3  0.01 1500  0 0 -1
2  0.5 0.5 0.5  0.02 2500  1 2 3
`
	ps, err := ReadParticleInput([]byte(text))
	require.NoError(t, err)
	require.Len(t, ps, 2)

	assert.Equal(t, int32(1), ps[0].Phase)
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, ps[0].Pos)
	assert.Equal(t, [3]float64{0, 0, -1}, ps[0].Vel)
	assert.Equal(t, 0.01, ps[0].Radius)
	assert.Equal(t, 1500.0, ps[0].Density)
	assert.InDelta(t, 4.0/3*3.141592653589793*1e-6*1500, ps[0].Mass, 1e-12)
	assert.Equal(t, int64(0), ps[0].ID)

	assert.Equal(t, int32(2), ps[1].Phase)
	assert.Equal(t, [3]float64{1, 2, 3}, ps[1].Vel)
}

func TestReadParticleInputErrors(t *testing.T) {
	tests := []string{
		"",
		"2\n1 0 0 0 0.1 1 0 0 0\n",
		"1 2\n1 0 0 0 0.1 1 0 0 0\n",
		"-1\n",
		"1\n1 0 0 0 0.1 1 0 0\n",
		"1\n1 0 0 0 -0.1 1 0 0 0\n",
		"1\nx 0 0 0 0.1 1 0 0 0\n",
	}
	for i := range tests {
		_, err := ReadParticleInput([]byte(tests[i]))
		assert.Error(t, err, "%d) %q", i, tests[i])
	}

	ps, err := ReadParticleInput([]byte("0\n"))
	require.NoError(t, err)
	assert.Len(t, ps, 0)
}

func TestReadParticleFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "particle_input.dat")
	lines := []string{"3", "0 0 0 0 1 1 0 0 0", "0 1 0 0 1 1 0 0 0",
		"0 2 0 0 1 1 0 0 0"}
	require.NoError(t, os.WriteFile(fname,
		[]byte(strings.Join(lines, "\n")), 0644))

	ps, err := ReadParticleFile(fname)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, 2.0, ps[2].Pos[0])

	_, err = ReadParticleFile(filepath.Join(t.TempDir(), "missing.dat"))
	assert.Error(t, err)
}
