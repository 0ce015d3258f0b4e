package config

import (
	"errors"
	"sync"
	"time"

	"github.com/go-proxytun/proxytun/internal/logger"
)

var (
	chainConfig            *ChainConfig
	chainConfigLoadingOnce sync.Once
)

// GetChainConfig loads and returns the chain configuration.
// It uses sync.Once to ensure the configuration is loaded only once, even in concurrent scenarios.
// If there's an error loading the configuration, it logs a fatal error and terminates the program.
//
// Parameters:
//   - path: The file path to the chain configuration file.
//
// Returns:
//   - *ChainConfig: A pointer to the loaded chain configuration.
func GetChainConfig(path string) *ChainConfig {
	chainConfigLoadingOnce.Do(func() {
		var err error
		if chainConfig, err = loadChainConfig(path); err != nil {
			logger.Fatal(errors.Join(errInvalidConfigFile, err))
		}
	})
	return chainConfig
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
