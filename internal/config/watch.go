package config

import (
	"log"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch starts watching the config file that Init resolved and delivers
// a re-validated snapshot on the returned channel after each change.
// Reloads that fail to parse or validate are logged and dropped, so the
// consumer only ever sees configurations it could have started with.
// When changes outpace the consumer only the latest snapshot is kept.
// The channel is never closed; it goes quiet when the process exits.
func Watch(logger *log.Logger) <-chan *Config {
	ch := make(chan *Config, 1)

	viper.OnConfigChange(func(in fsnotify.Event) {
		cfg, err := Load()
		if err != nil {
			logger.Printf("Ignoring config change: %v", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			logger.Printf("Ignoring config change: %v", err)
			return
		}

		for {
			select {
			case ch <- cfg:
				return
			default:
				// Displace the stale snapshot.
				select {
				case <-ch:
				default:
				}
			}
		}
	})
	viper.WatchConfig()

	return ch
}
