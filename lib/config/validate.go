package config

import (
	"strings"

	"github.com/phil-mansfield/cfdem/lib/errs"
	"github.com/phil-mansfield/cfdem/lib/format"
)

// Names accepted by enumerated variables. Matching is case-insensitive.
var (
	BoundaryTypes    = []string{"wall", "inflow", "outflow"}
	BCPolicies       = []string{"preserve", "wall"}
	LoadBalanceTypes = []string{"KnapSack", "RoundRobin"}
	BottomSolvers    = []string{"cg", "smoother", "dense"}
	CouplingModes    = []string{"explicit", "implicit"}
	DiffusionModes   = []string{"explicit", "implicit"}
	Shapes           = []string{"none", "box", "cylinder", "sphere"}
	Axes             = []string{"x", "y", "z"}
	ParticleInits    = []string{"none", "file", "auto"}
)

// Index returns the index of name in options, ignoring case, or -1.
func Index(name string, options []string) int {
	for i := range options {
		if strings.EqualFold(strings.TrimSpace(name), options[i]) {
			return i
		}
	}
	return -1
}

func (amr *AmrConfig) ValidNCell() bool {
	return amr.NCellX > 0 && amr.NCellY > 0 && amr.NCellZ > 0
}
func (amr *AmrConfig) ValidProb() bool {
	return amr.ProbHiX > amr.ProbLoX && amr.ProbHiY > amr.ProbLoY &&
		amr.ProbHiZ > amr.ProbLoZ
}
func (amr *AmrConfig) ValidRegridInt() bool { return amr.RegridInt != 0 }
func (amr *AmrConfig) ValidRefRatio() bool {
	return amr.RefRatio == 2 || amr.RefRatio == 4
}
func (amr *AmrConfig) ValidBlockingFactor() bool {
	b := amr.BlockingFactor
	return b > 0 && b&(b-1) == 0 && amr.MaxGridSize%b == 0
}

func (run *RunConfig) ValidReplication() bool {
	return run.ReplX >= 1 && run.ReplY >= 1 && run.ReplZ >= 1
}

func (ts *TimeStepConfig) ValidCfl() bool { return ts.Cfl > 0 && ts.Cfl <= 1 }
func (ts *TimeStepConfig) ValidDtRange() bool {
	return ts.DtMin >= 0 && ts.DtMax > ts.DtMin
}

func (s *SolverConfig) ValidTolerances() bool {
	return s.RTol >= 0 && s.ATol >= 0 && (s.RTol > 0 || s.ATol > 0)
}

// Validate checks every section and returns the first problem found as an
// errs.ConfigError.
func (c *Config) Validate() error {
	amr := &c.Amr
	switch {
	case !amr.ValidNCell():
		return errs.Configf("Amr", "NCell", "all of NCellX, NCellY, "+
			"NCellZ must be positive, got %v", c.NCell())
	case !amr.ValidProb():
		return errs.Configf("Amr", "ProbHi", "ProbHi %v must be above "+
			"ProbLo %v in every dimension", c.ProbHi(), c.ProbLo())
	case amr.MaxLevel < 0:
		return errs.Configf("Amr", "MaxLevel", "must be non-negative")
	case !amr.ValidRefRatio():
		return errs.Configf("Amr", "RefRatio", "must be 2 or 4, got %d",
			amr.RefRatio)
	case amr.MaxGridSize <= 0:
		return errs.Configf("Amr", "MaxGridSize", "must be positive")
	case !amr.ValidBlockingFactor():
		return errs.Configf("Amr", "BlockingFactor", "must be a power of "+
			"two which divides MaxGridSize = %d, got %d",
			amr.MaxGridSize, amr.BlockingFactor)
	case !amr.ValidRegridInt():
		return errs.Configf("Amr", "RegridInt", "must be > 0 or < 0")
	case Index(amr.LoadBalanceType, LoadBalanceTypes) < 0:
		return errs.Configf("Amr", "LoadBalanceType", "'%s' is not one "+
			"of %v", amr.LoadBalanceType, LoadBalanceTypes)
	case amr.Ranks <= 0:
		return errs.Configf("Amr", "Ranks", "must be positive")
	}
	for d, n := range c.NCell() {
		if n%amr.BlockingFactor != 0 {
			return errs.Configf("Amr", "NCell", "dimension %d has %d "+
				"cells, which isn't a multiple of BlockingFactor = %d",
				d, n, amr.BlockingFactor)
		}
	}

	periodic := c.Periodic()
	for d, faces := range c.Faces() {
		if periodic[d] {
			continue
		}
		for _, f := range faces {
			if Index(f, BoundaryTypes) < 0 {
				return errs.Configf("Domain", "", "boundary type '%s' on "+
					"dimension %d is not one of %v", f, d, BoundaryTypes)
			}
		}
	}
	if Index(c.Domain.ReplicationBCPolicy, BCPolicies) < 0 {
		return errs.Configf("Domain", "ReplicationBCPolicy", "'%s' is not "+
			"one of %v", c.Domain.ReplicationBCPolicy, BCPolicies)
	}

	run := &c.Run
	switch {
	case !run.ValidReplication():
		return errs.Configf("Run", "Repl", "replication factors must be "+
			">= 1, got %v", c.Replication())
	case c.Replicated() && run.Restart == "":
		return errs.Configf("Run", "Repl", "replication requires Restart")
	case run.SteadyState && run.SteadyStateTol <= 0:
		return errs.Configf("Run", "SteadyStateTol", "must be positive "+
			"for steady state runs")
	case run.SteadyStateMaxIter <= 0:
		return errs.Configf("Run", "SteadyStateMaxIter", "must be positive")
	case run.InitialIterations < 0:
		return errs.Configf("Run", "InitialIterations", "must be >= 0")
	case run.RoG <= 0:
		return errs.Configf("Run", "RoG", "must be positive")
	case run.MuG < 0:
		return errs.Configf("Run", "MuG", "must be non-negative")
	case Index(run.Diffusion, DiffusionModes) < 0:
		return errs.Configf("Run", "Diffusion", "'%s' is not one of %v",
			run.Diffusion, DiffusionModes)
	}

	ts := &c.TimeStep
	switch {
	case !ts.ValidCfl():
		return errs.Configf("TimeStep", "Cfl", "must be in (0, 1], got %g",
			ts.Cfl)
	case !ts.ValidDtRange():
		return errs.Configf("TimeStep", "DtMax", "need 0 <= DtMin < DtMax, "+
			"got DtMin = %g, DtMax = %g", ts.DtMin, ts.DtMax)
	}

	solvers := []struct {
		name string
		s    *SolverConfig
	}{
		{"MacProjection", &c.MacProjection},
		{"NodalProjection", &c.NodalProjection},
		{"Diffusion", &c.Diffusion},
	}
	for _, sv := range solvers {
		s := sv.s
		switch {
		case s.MaxIter <= 0 || s.CGMaxIter <= 0:
			return errs.Configf(sv.name, "MaxIter", "iteration limits "+
				"must be positive")
		case !s.ValidTolerances():
			return errs.Configf(sv.name, "RTol", "tolerances must be "+
				"non-negative and not both zero")
		case Index(s.BottomSolver, BottomSolvers) < 0:
			return errs.Configf(sv.name, "BottomSolver", "'%s' is not one "+
				"of %v", s.BottomSolver, BottomSolvers)
		case s.MaxCoarseningLevel < 0:
			return errs.Configf(sv.name, "MaxCoarseningLevel", "must be >= 0")
		case s.PreSmooth < 0 || s.PostSmooth < 0:
			return errs.Configf(sv.name, "PreSmooth", "smoothing counts "+
				"must be >= 0")
		}
	}

	if Index(c.Drag.Coupling, CouplingModes) < 0 {
		return errs.Configf("Drag", "Coupling", "'%s' is not one of %v",
			c.Drag.Coupling, CouplingModes)
	}
	if c.Drag.MinVolumeFraction <= 0 || c.Drag.MinVolumeFraction >= 1 {
		return errs.Configf("Drag", "MinVolumeFraction", "must be in (0, 1)")
	}

	geo := &c.Geometry
	switch {
	case Index(geo.Shape, Shapes) < 0:
		return errs.Configf("Geometry", "Shape", "'%s' is not one of %v",
			geo.Shape, Shapes)
	case Index(geo.Axis, Axes) < 0:
		return errs.Configf("Geometry", "Axis", "'%s' is not one of %v",
			geo.Axis, Axes)
	case (strings.EqualFold(geo.Shape, "cylinder") ||
		strings.EqualFold(geo.Shape, "sphere")) && geo.Radius <= 0:
		return errs.Configf("Geometry", "Radius", "must be positive for "+
			"shape '%s'", geo.Shape)
	case strings.EqualFold(geo.Shape, "box") &&
		(geo.HiX <= geo.LoX || geo.HiY <= geo.LoY || geo.HiZ <= geo.LoZ):
		return errs.Configf("Geometry", "Hi", "box shape needs Hi > Lo")
	case geo.LevelSetRefinement < 1:
		return errs.Configf("Geometry", "LevelSetRefinement", "must be >= 1")
	case geo.LevelSetPad < 0:
		return errs.Configf("Geometry", "LevelSetPad", "must be >= 0")
	}

	p := &c.Particles
	switch {
	case Index(p.InitType, ParticleInits) < 0:
		return errs.Configf("Particles", "InitType", "'%s' is not one of %v",
			p.InitType, ParticleInits)
	case strings.EqualFold(p.InitType, "file") && p.InputFile == "":
		return errs.Configf("Particles", "InputFile", "must be set when "+
			"InitType = file")
	case strings.EqualFold(p.InitType, "auto") &&
		(p.AutoCount < 0 || p.AutoDiameter <= 0 || p.AutoDensity <= 0):
		return errs.Configf("Particles", "Auto", "AutoCount must be >= 0 "+
			"and AutoDiameter and AutoDensity must be positive")
	case p.WallStiffness <= 0:
		return errs.Configf("Particles", "WallStiffness", "must be positive")
	case p.WallRestitution <= 0 || p.WallRestitution > 1:
		return errs.Configf("Particles", "WallRestitution",
			"must be in (0, 1]")
	case p.TcollRatio <= 0:
		return errs.Configf("Particles", "TcollRatio", "must be positive")
	}

	out := &c.Output
	switch {
	case out.CheckFile == "":
		return errs.Configf("Output", "CheckFile", "must not be empty")
	case out.PlotFile == "":
		return errs.Configf("Output", "PlotFile", "must not be empty")
	case out.PlotAccuracy <= 0:
		return errs.Configf("Output", "PlotAccuracy", "must be positive")
	}
	for _, s := range []struct{ key, val string }{
		{"CheckSteps", out.CheckSteps}, {"PlotSteps", out.PlotSteps},
	} {
		if s.val == "" {
			continue
		}
		if _, err := format.ExpandSequenceFormat(s.val); err != nil {
			return errs.Configf("Output", s.key, "%s", err.Error())
		}
	}

	for _, name := range c.RegionNames() {
		r := c.AverageRegion[name]
		if r.HiX < r.LoX || r.HiY < r.LoY || r.HiZ < r.LoZ {
			return errs.Configf("AverageRegion", name, "Hi must not be "+
				"below Lo")
		}
	}

	return nil
}
