package cli

import "flag"

// RunFlags are the flags for the reconcile batch runner.
type RunFlags struct {
	ConfigFile string
	UserID     string
	DryRun     bool
	Verbose    bool
}

// ParseRunFlags parses batch runner flags from the command line.
func ParseRunFlags() RunFlags {
	var flags RunFlags
	flag.StringVar(&flags.ConfigFile, "config", "config.yaml", "Configuration file path")
	flag.StringVar(&flags.UserID, "user", "", "User to reconcile (required)")
	flag.BoolVar(&flags.DryRun, "dry-run", false, "Score and route without persisting matches")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	ConfigFile string
	Port       int
	Verbose    bool
}

// ParseServeFlags parses command line flags for the serve command.
func ParseServeFlags() *ServeFlags {
	flags := &ServeFlags{}
	flag.StringVar(&flags.ConfigFile, "config", "config.yaml", "Configuration file path")
	flag.IntVar(&flags.Port, "port", 0, "Port to listen on (overrides config)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}
