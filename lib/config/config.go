/*package config reads and validates cfdem's configuration files.

Configuration files are gcfg (INI-style) files with one section per component.
Every variable has a default, so a configuration file only needs to list the
values it changes. ExampleFile documents every variable. After Read returns, a
Config is treated as immutable: components copy the sections they need.
*/
package config

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"
)

// AmrConfig describes the grid hierarchy and how work is split across ranks.
type AmrConfig struct {
	NCellX, NCellY, NCellZ int
	ProbLoX, ProbLoY, ProbLoZ float64
	ProbHiX, ProbHiY, ProbHiZ float64

	MaxLevel       int
	RefRatio       int
	MaxGridSize    int
	BlockingFactor int
	RegridInt      int

	LoadBalanceType string
	Ranks           int
	Threads         int
}

// DomainConfig describes the boundary of the computational domain.
type DomainConfig struct {
	PeriodicX, PeriodicY, PeriodicZ bool
	// Face boundary types: wall, inflow, or outflow. Ignored along periodic
	// dimensions.
	XLo, XHi, YLo, YHi, ZLo, ZHi string
	// Speed of gas entering through inflow faces.
	InflowVelocity float64
	// ReplicationBCPolicy decides the boundary types of the outer faces of
	// a replicated domain: preserve or wall.
	ReplicationBCPolicy string
}

// RunConfig controls the outer time loop and the gas properties.
type RunConfig struct {
	MaxStep            int
	StopTime           float64
	SteadyState        bool
	SteadyStateTol     float64
	SteadyStateMaxIter int

	SolveFluid bool
	SolveDEM   bool

	Restart          string
	ReplX, ReplY, ReplZ int

	DoInitialProj     bool
	InitialIterations int

	GravityX, GravityY, GravityZ float64
	GP0X, GP0Y, GP0Z             float64

	RoG, MuG      float64
	IcU, IcV, IcW float64

	// Diffusion is explicit or implicit.
	Diffusion string

	Verbose             int
	CheckpointOnFailure bool
}

// TimeStepConfig controls the Time-Step Controller.
type TimeStepConfig struct {
	Cfl     float64
	FixedDt float64
	DtMin   float64
	DtMax   float64
}

// SolverConfig holds the parameters of one multigrid solve.
type SolverConfig struct {
	Verbose            int
	CGVerbose          int
	MaxIter            int
	CGMaxIter          int
	RTol, ATol         float64
	BottomSolver       string
	MaxCoarseningLevel int
	PreSmooth          int
	PostSmooth         int
}

// DragConfig selects the drag law and how it's coupled to the gas.
type DragConfig struct {
	Type string
	// Coupling is explicit or implicit.
	Coupling string
	// MinVolumeFraction is the floor applied to deposited gas volume
	// fractions.
	MinVolumeFraction float64
}

// GeometryConfig describes the embedded boundary.
type GeometryConfig struct {
	// Shape is one of none, box, cylinder, or sphere.
	Shape  string
	Invert bool

	LoX, LoY, LoZ, HiX, HiY, HiZ float64

	CenterX, CenterY, CenterZ float64
	Radius                    float64
	Axis                      string

	LevelSetRefinement int
	LevelSetPad        int
	InflowWalls        bool
}

// ParticlesConfig describes particle initialisation and wall collisions.
type ParticlesConfig struct {
	// InitType is one of none, file, or auto.
	InitType  string
	InputFile string

	AutoCount    int
	AutoDiameter float64
	AutoDensity  float64
	Seed         int

	WallStiffness   float64
	WallRestitution float64
	TcollRatio      float64

	RemoveOutOfRange bool
}

// RegridConfig controls which cells are refined.
type RegridConfig struct {
	TagSolidsFraction float64
	TagWallDistance   float64
}

// OutputConfig controls checkpoints and diagnostic output.
type OutputConfig struct {
	CheckFile  string
	CheckInt   int
	CheckSteps string

	PlotFile          string
	PlotInt           int
	PlotSteps         string
	PlotfileOnRestart bool
	PlotAccuracy      float64

	ParAsciiFile string
	ParAsciiInt  int

	AvgFile string
	AvgInt  int

	CatalogFile string

	PltVelG, PltEpG, PltPG, PltRoG, PltTrac, PltMuG bool
	PltVort, PltDiveu, PltGradP                      bool
}

// AverageRegionConfig is a rectangular region over which field averages are
// periodically reported.
type AverageRegionConfig struct {
	LoX, LoY, LoZ, HiX, HiY, HiZ float64
}

// Config is the full, validated configuration of a run.
type Config struct {
	Amr             AmrConfig
	Domain          DomainConfig
	Run             RunConfig
	TimeStep        TimeStepConfig
	MacProjection   SolverConfig
	NodalProjection SolverConfig
	Diffusion       SolverConfig
	Drag            DragConfig
	Geometry        GeometryConfig
	Particles       ParticlesConfig
	Regrid          RegridConfig
	Output          OutputConfig
	AverageRegion   map[string]*AverageRegionConfig
}

// Default returns a Config with every variable set to its default value.
func Default() *Config {
	c := &Config{}

	c.Amr = AmrConfig{
		NCellX: 16, NCellY: 16, NCellZ: 16,
		ProbHiX: 1, ProbHiY: 1, ProbHiZ: 1,
		MaxLevel: 0, RefRatio: 2, MaxGridSize: 32, BlockingFactor: 8,
		RegridInt: -1, LoadBalanceType: "KnapSack", Ranks: 1, Threads: -1,
	}

	c.Domain = DomainConfig{
		XLo: "wall", XHi: "wall", YLo: "wall", YHi: "wall",
		ZLo: "wall", ZHi: "wall", ReplicationBCPolicy: "preserve",
	}

	c.Run = RunConfig{
		MaxStep: -1, StopTime: -1,
		SteadyStateTol: 1e-6, SteadyStateMaxIter: 100000000,
		SolveFluid: true, SolveDEM: true,
		ReplX: 1, ReplY: 1, ReplZ: 1,
		DoInitialProj: true, InitialIterations: 3,
		RoG: 1, MuG: 1.8e-5,
		Diffusion: "implicit", Verbose: 1, CheckpointOnFailure: true,
	}

	c.TimeStep = TimeStepConfig{Cfl: 0.5, FixedDt: -1, DtMin: 0, DtMax: 1e14}

	c.MacProjection = defaultSolver(200)
	c.NodalProjection = defaultSolver(100)
	c.Diffusion = defaultSolver(100)

	c.Drag = DragConfig{
		Type: "WenYu", Coupling: "explicit", MinVolumeFraction: 0.1,
	}

	c.Geometry = GeometryConfig{
		Shape: "none", Axis: "z", LevelSetRefinement: 1, LevelSetPad: 2,
		InflowWalls: true,
	}

	c.Particles = ParticlesConfig{
		InitType: "none", InputFile: "particle_input.dat",
		AutoDiameter: 1e-2, AutoDensity: 1000, Seed: 1337,
		WallStiffness: 1e3, WallRestitution: 0.9, TcollRatio: 50,
		RemoveOutOfRange: true,
	}

	c.Regrid = RegridConfig{TagSolidsFraction: 0.1}

	c.Output = OutputConfig{
		CheckFile: "chk", CheckInt: -1,
		PlotFile: "plt", PlotInt: -1, PlotAccuracy: 1e-6,
		ParAsciiFile: "par", ParAsciiInt: -1,
		AvgFile: "avg_region", AvgInt: -1,
		PltVelG: true, PltEpG: true, PltPG: true,
	}

	c.AverageRegion = map[string]*AverageRegionConfig{}

	return c
}

func defaultSolver(maxIter int) SolverConfig {
	return SolverConfig{
		MaxIter: maxIter, CGMaxIter: 1000, RTol: 1e-11, ATol: 1e-14,
		BottomSolver: "cg", MaxCoarseningLevel: 100,
		PreSmooth: 2, PostSmooth: 2,
	}
}

// Read reads a configuration file on top of the defaults, applies any
// command line overrides and validates the result. Overrides have the form
// "Section.Key=Value".
func Read(fname string, overrides ...string) (*Config, error) {
	c := Default()
	if fname != "" {
		if err := gcfg.ReadFileInto(c, fname); err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", fname, err)
		}
	}
	if err := c.Override(overrides...); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadString is identical to Read, but reads the configuration from a
// string. This is mostly useful for tests.
func ReadString(text string, overrides ...string) (*Config, error) {
	c := Default()
	if err := gcfg.ReadStringInto(c, text); err != nil {
		return nil, fmt.Errorf("could not parse configuration: %w", err)
	}
	if err := c.Override(overrides...); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Override applies "Section.Key=Value" assignments to c. It should only be
// called before the Config is handed to any component.
func (c *Config) Override(overrides ...string) error {
	if len(overrides) == 0 {
		return nil
	}

	sections := map[string][]string{}
	for _, o := range overrides {
		eq := strings.Index(o, "=")
		dot := strings.Index(o, ".")
		if eq < 0 || dot < 0 || dot > eq {
			return fmt.Errorf("override '%s' is not of the form "+
				"Section.Key=Value", o)
		}
		sec, key := o[:dot], strings.TrimSpace(o[dot+1:eq])
		val := strings.TrimSpace(o[eq+1:])
		sections[sec] = append(sections[sec], fmt.Sprintf("%s = %s", key, val))
	}

	names := make([]string, 0, len(sections))
	for sec := range sections {
		names = append(names, sec)
	}
	sort.Strings(names)

	sb := &strings.Builder{}
	for _, sec := range names {
		fmt.Fprintf(sb, "[%s]\n", sec)
		for _, line := range sections[sec] {
			fmt.Fprintln(sb, line)
		}
	}

	if err := gcfg.ReadStringInto(c, sb.String()); err != nil {
		return fmt.Errorf("could not apply overrides: %w", err)
	}
	return nil
}

// NCell returns the number of level-0 cells along each dimension.
func (c *Config) NCell() [3]int {
	return [3]int{c.Amr.NCellX, c.Amr.NCellY, c.Amr.NCellZ}
}

// ProbLo returns the lower corner of the physical domain.
func (c *Config) ProbLo() [3]float64 {
	return [3]float64{c.Amr.ProbLoX, c.Amr.ProbLoY, c.Amr.ProbLoZ}
}

// ProbHi returns the upper corner of the physical domain.
func (c *Config) ProbHi() [3]float64 {
	return [3]float64{c.Amr.ProbHiX, c.Amr.ProbHiY, c.Amr.ProbHiZ}
}

// Periodic returns the periodicity of each dimension.
func (c *Config) Periodic() [3]bool {
	return [3]bool{c.Domain.PeriodicX, c.Domain.PeriodicY, c.Domain.PeriodicZ}
}

// Gravity returns the gravitational acceleration vector.
func (c *Config) Gravity() [3]float64 {
	return [3]float64{c.Run.GravityX, c.Run.GravityY, c.Run.GravityZ}
}

// GP0 returns the imposed background pressure gradient.
func (c *Config) GP0() [3]float64 {
	return [3]float64{c.Run.GP0X, c.Run.GP0Y, c.Run.GP0Z}
}

// Replication returns the restart replication factors.
func (c *Config) Replication() [3]int {
	return [3]int{c.Run.ReplX, c.Run.ReplY, c.Run.ReplZ}
}

// Faces returns the boundary types of the six domain faces as
// [dim][lo/hi].
func (c *Config) Faces() [3][2]string {
	return [3][2]string{
		{c.Domain.XLo, c.Domain.XHi},
		{c.Domain.YLo, c.Domain.YHi},
		{c.Domain.ZLo, c.Domain.ZHi},
	}
}

// Replicated returns true if a restart should tile the checkpointed domain.
func (c *Config) Replicated() bool {
	r := c.Replication()
	return r[0] > 1 || r[1] > 1 || r[2] > 1
}

// RegionNames returns the names of the average regions in sorted order.
func (c *Config) RegionNames() []string {
	names := make([]string, 0, len(c.AverageRegion))
	for name := range c.AverageRegion {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
