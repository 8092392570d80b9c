package feedsearch

import (
	"os"

	"github.com/rs/zerolog"
)

// NewStderrLogger builds a timestamped zerolog.Logger writing to stderr,
// keeping a CLI's JSON results on stdout clean.
func NewStderrLogger() Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
