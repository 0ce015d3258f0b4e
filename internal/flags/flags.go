package flags

import (
	"flag"
)

// The program's flags
var (
	// CfgPathFlag is the path to the chain configuration file
	CfgPathFlag string

	// VerboseFlag raises the logger to DEBUG level when set
	VerboseFlag bool

	// ConnectFlag, when non-empty, is a "host:port" destination that
	// overrides the config file's [destination] table.
	ConnectFlag string
)

// Default values for the flags
const (
	// defaultConfigFilePath is the default path for the configuration file
	defaultConfigFilePath = "./proxytun.toml"
)

// init initializes the command-line flags
func init() {
	flag.StringVar(&CfgPathFlag, "config", defaultConfigFilePath, "path to chain config file")
	flag.BoolVar(&VerboseFlag, "v", false, "enable debug logging")
	flag.StringVar(&ConnectFlag, "connect", "", "destination host:port, overriding the config file's [destination] table")
	flag.Parse()
}
