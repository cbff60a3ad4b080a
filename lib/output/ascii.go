package output

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/phil-mansfield/cfdem/lib/particles"
)

// AsciiColumns describes the lines of a particle ASCII dump. The first nine
// columns are the particle input deck format, so a dump can be used as the
// input of a new run.
const AsciiColumns = "phase x y z radius density u v w id state"

// WriteParticleAscii writes every particle of f, ordered by ID, to the
// dump for f.Step and returns the file name.
func (w *Writer) WriteParticleAscii(f Frame) (string, error) {
	fname, err := stepName(w.ParAsciiFile, f.Step)
	if err != nil {
		return "", err
	}

	tmp := fname + ".tmp"
	fp, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := writeAscii(fp, f); err != nil {
		fp.Close()
		return "", fmt.Errorf("could not write %s: %w", fname, err)
	}
	if err := fp.Close(); err != nil {
		return "", err
	}
	return fname, os.Rename(tmp, fname)
}

func writeAscii(fp *os.File, f Frame) error {
	bw := bufio.NewWriter(fp)
	ps := f.Particles.All()

	fmt.Fprintf(bw, "# step = %d, time = %s\n", f.Step, formatFloat(f.Time))
	fmt.Fprintf(bw, "# %s\n", AsciiColumns)
	fmt.Fprintf(bw, "%d\n", len(ps))

	var line []byte
	for i := range ps {
		line = appendParticle(line[:0], &ps[i])
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func appendParticle(b []byte, p *particles.Particle) []byte {
	b = strconv.AppendInt(b, int64(p.Phase), 10)
	for _, x := range []float64{p.Pos[0], p.Pos[1], p.Pos[2], p.Radius,
		p.Density, p.Vel[0], p.Vel[1], p.Vel[2]} {
		b = append(b, ' ')
		b = strconv.AppendFloat(b, x, 'g', -1, 64)
	}
	b = append(b, ' ')
	b = strconv.AppendInt(b, p.ID, 10)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(p.State), 10)
	return append(b, '\n')
}

func formatFloat(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
