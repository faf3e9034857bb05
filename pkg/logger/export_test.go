package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// reset forgets the logger built by Init so each test starts clean.
func reset() {
	once = sync.Once{}
	instance = zerolog.Logger{}
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}
