package config

import (
	"flag"
	"os"
	"time"

	"github.com/scribelab/scribe/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the sync backend (default from Config)
//	-t string   bearer auth token
//	-f string   path of the local SQLite database file
//	-i int      online check interval in seconds (default from Config)
//	-w int      debounce window in milliseconds (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-f", "-i", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the sync backend")
	fs.StringVar(&cfg.AuthToken, "t", cfg.AuthToken, "bearer auth token")
	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "path of the local database file")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	debounceWindow := fs.Int("w", int(cfg.DebounceWindow.Milliseconds()), "debounce window (in milliseconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.DebounceWindow = time.Duration(*debounceWindow) * time.Millisecond
}
