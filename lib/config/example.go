package config

// ExampleFile is an annotated configuration file listing every variable with
// its default value. It's printed by "cfdem example".
const ExampleFile = `# Variables which are commented out are set to their defaults.

[Amr]
# Number of level-0 cells along each dimension. Must be multiples of
# BlockingFactor.
NCellX = 16
NCellY = 16
NCellZ = 16

# Physical extent of the domain.
# ProbLoX = 0
# ProbLoY = 0
# ProbLoZ = 0
ProbHiX = 1
ProbHiY = 1
ProbHiZ = 1

# Finest level which will be refined to and the refinement ratio between
# levels (2 or 4).
# MaxLevel = 0
# RefRatio = 2

# Boxes are never wider than MaxGridSize cells and are always aligned with
# BlockingFactor cells.
# MaxGridSize = 32
# BlockingFactor = 8

# Steps between regrids. Negative numbers disable regridding. Zero is an error.
# RegridInt = -1

# KnapSack weights boxes by their particle count, RoundRobin ignores it.
# LoadBalanceType = KnapSack

# Number of ranks the domain is split across and the number of threads used
# to run them. Threads = -1 uses every core.
# Ranks = 1
# Threads = -1

[Domain]
# PeriodicX = false
# PeriodicY = false
# PeriodicZ = false

# Boundary type of each non-periodic face: wall, inflow, or outflow.
# XLo = wall
# XHi = wall
# YLo = wall
# YHi = wall
# ZLo = wall
# ZHi = wall
# InflowVelocity = 0

# Boundary type of the outer faces of a replicated restart: preserve keeps the
# types listed above, wall turns every non-periodic face into a wall.
# ReplicationBCPolicy = preserve

[Run]
# Either of these can be negative to disable it.
# MaxStep = -1
# StopTime = -1

# Steady state runs iterate until the relative change in gas velocity drops
# below SteadyStateTol.
# SteadyState = false
# SteadyStateTol = 1e-6
# SteadyStateMaxIter = 100000000

# SolveFluid = true
# SolveDEM = true

# Checkpoint directory to restart from. "latest" picks the newest entry in
# the checkpoint catalogue. ReplX, ReplY, and ReplZ tile the restarted domain.
# Restart = chk00100
# ReplX = 1
# ReplY = 1
# ReplZ = 1

# DoInitialProj = true
# InitialIterations = 3

# GravityX = 0
# GravityY = 0
# GravityZ = 0
# GP0X = 0
# GP0Y = 0
# GP0Z = 0

# Gas density, viscosity, and initial velocity.
# RoG = 1
# MuG = 1.8e-5
# IcU = 0
# IcV = 0
# IcW = 0

# Diffusion = implicit
# Verbose = 1
# CheckpointOnFailure = true

[TimeStep]
# Cfl = 0.5
# A positive FixedDt overrides the CFL condition.
# FixedDt = -1
# DtMin = 0
# DtMax = 1e14

# MacProjection, NodalProjection, and Diffusion all take the same variables.
[MacProjection]
# Verbose = 0
# CGVerbose = 0
# MaxIter = 200
# CGMaxIter = 1000
# RTol = 1e-11
# ATol = 1e-14
# cg, smoother, or dense.
# BottomSolver = cg
# MaxCoarseningLevel = 100
# PreSmooth = 2
# PostSmooth = 2

[NodalProjection]
# MaxIter = 100

[Diffusion]
# MaxIter = 100

[Drag]
# WenYu, Gidaspow, BVK2, or the name of a registered user law.
# Type = WenYu
# Coupling = explicit
# MinVolumeFraction = 0.1

[Geometry]
# none, box, cylinder, or sphere. Fluid lives inside the shape unless Invert
# is set.
# Shape = none
# Invert = false
# LoX = 0
# LoY = 0
# LoZ = 0
# HiX = 0
# HiY = 0
# HiZ = 0
# CenterX = 0
# CenterY = 0
# CenterZ = 0
# Radius = 0
# Axis = z
# LevelSetRefinement = 1
# LevelSetPad = 2
# Adds virtual walls at inflow faces to the particle view of the geometry.
# InflowWalls = true

[Particles]
# none, file, or auto.
# InitType = none
# InputFile = particle_input.dat
# AutoCount = 0
# AutoDiameter = 1e-2
# AutoDensity = 1000
# Seed = 1337
# WallStiffness = 1e3
# WallRestitution = 0.9
# TcollRatio = 50
# RemoveOutOfRange = true

[Regrid]
# TagSolidsFraction = 0.1
# TagWallDistance = 0

[Output]
# CheckFile = chk
# CheckInt = -1
# Extra steps written in addition to CheckInt, e.g. 0..10 + 100.
# CheckSteps =
# PlotFile = plt
# PlotInt = -1
# PlotSteps =
# PlotfileOnRestart = false
# PlotAccuracy = 1e-6
# ParAsciiFile = par
# ParAsciiInt = -1
# AvgFile = avg_region
# AvgInt = -1
# Sqlite database which records every checkpoint.
# CatalogFile =
# PltVelG = true
# PltEpG = true
# PltPG = true
# PltRoG = false
# PltTrac = false
# PltMuG = false
# PltVort = false
# PltDiveu = false
# PltGradP = false

# Any number of named average regions can be listed.
# [AverageRegion "bed"]
# LoX = 0
# LoY = 0
# LoZ = 0
# HiX = 1
# HiY = 1
# HiZ = 0.5
`
