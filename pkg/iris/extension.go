package iris

import (
	"github.com/rs/zerolog"
)

// Extension is an independently loadable unit of commands and listeners.
//
// Setup is called exactly once per load with the host instance and a child
// logger tagged with the extension's name. Registration is explicit: the
// extension calls RegisterCommand / Subscribe on the bot for everything it
// owns, and the loader records those calls so they can be reversed on
// unload.
type Extension interface {
	// Name returns the name of the extension, unique among loaded extensions
	Name() string

	// Setup registers the extension's commands and listeners with the host
	Setup(bot *Bot, log *zerolog.Logger) error
}
