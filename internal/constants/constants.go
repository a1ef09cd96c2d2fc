// Package constants provides named constants used throughout the stabsim codebase.
// This centralizes protocol parameters and tooling defaults in one place.
package constants

// Protocol parameters. These are the values the convergence and containment
// properties are stated against; overriding them is an experiment knob,
// not a tuning exercise.
const (
	// BaselineSecondary is the secondary priority every node starts with.
	BaselineSecondary = 5

	// LeaderMargin is the amount added on top of the neighborhood maximum
	// when a leader resolves a mixed neighborhood. The promoted node stays
	// leader-classified for at least this many follower increments, which
	// is what lets a locally dominant value propagate down the chain.
	LeaderMargin = 20
)

// Run defaults.
const (
	// DefaultMaxSteps caps a stabilization run that has not converged.
	// Termination is probabilistic, so the cap is generous: expected step
	// counts for chains in the hundreds of nodes sit far below it.
	DefaultMaxSteps = 1_000_000

	// DefaultChainSize is the chain length run and sweep use when no
	// --size flag is given.
	DefaultChainSize = 8

	// DefaultSweepTrials is the number of trials per size in a sweep.
	DefaultSweepTrials = 20

	// DefaultHistoryLimit is how many recorded runs `history` lists.
	DefaultHistoryLimit = 20
)

// Data directory layout.
const (
	// DataDirName is the per-user data directory under $HOME.
	DataDirName = ".stabsim"

	// DatabaseFile is the result store filename inside the data directory.
	DatabaseFile = "stabsim.db"

	// ConfigFile is the configuration filename inside the data directory.
	ConfigFile = "config.yaml"

	// ActivationLogFile is the per-step JSONL log written at debug level.
	ActivationLogFile = "activations.jsonl"

	// BackupDirName is the backup directory inside the data directory.
	BackupDirName = "backups"
)

// Backup defaults.
const (
	// DefaultBackupKeep is how many backup files the default retention
	// policy preserves.
	DefaultBackupKeep = 10
)
