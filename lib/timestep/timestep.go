/*package timestep chooses the length of each time step from the CFL
condition and the user's limits.
*/
package timestep

import (
	"math"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/errs"
)

// Input is everything the controller needs to know about the current
// state. Maxima are global, i.e. already reduced over ranks.
type Input struct {
	// Vmax is the largest |u_g| component.
	Vmax float64
	// MaxNu is the largest mu_g / ro_g.
	MaxNu float64
	// MinRo is the smallest gas density.
	MinRo float64
	// MaxGradP is the largest |gp_d| along each dimension.
	MaxGradP [3]float64
	Gravity  [3]float64
	// Dx is the cell size of the finest level.
	Dx [3]float64

	Time, StopTime float64
}

// Controller computes time steps.
type Controller struct {
	Cfl, FixedDt, DtMin, DtMax float64
}

// New creates a controller from the [TimeStep] configuration section.
func New(c *config.TimeStepConfig) *Controller {
	return &Controller{c.Cfl, c.FixedDt, c.DtMin, c.DtMax}
}

// Compute returns the length of the next step. It's pure: calling it twice
// with the same input gives the same dt.
func (c *Controller) Compute(in Input) (float64, error) {
	var dt float64
	if c.FixedDt > 0 {
		dt = c.FixedDt
	} else {
		dt = c.cflStep(in)
	}

	if c.DtMax > 0 && dt > c.DtMax {
		dt = c.DtMax
	}
	if in.StopTime >= 0 && in.Time+dt > in.StopTime {
		if remaining := in.StopTime - in.Time; remaining > 0 {
			dt = remaining
		}
	}

	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 || dt < c.DtMin {
		return 0, &errs.NumericalError{Quantity: "dt", Level: -1, Box: -1,
			Value: dt}
	}
	return dt, nil
}

func (c *Controller) cflStep(in Input) float64 {
	dxMin := math.Min(in.Dx[0], math.Min(in.Dx[1], in.Dx[2]))
	conv := in.Vmax / dxMin

	visc := 0.0
	for d := 0; d < 3; d++ {
		visc += 1 / (in.Dx[d] * in.Dx[d])
	}
	visc *= 2 * in.MaxNu

	force := 0.0
	for d := 0; d < 3; d++ {
		// The sign of gp varies across the domain, so the bound adds the
		// magnitudes.
		fd := math.Abs(in.Gravity[d])
		if in.MinRo > 0 {
			fd += math.Abs(in.MaxGradP[d]) / in.MinRo
		}
		force = math.Max(force, fd/in.Dx[d])
	}

	cv := conv + visc
	denom := cv + math.Sqrt(cv*cv+4*force)
	if denom == 0 {
		return math.Inf(+1)
	}
	return 2 * c.Cfl / denom
}
