package options

import "github.com/rs/zerolog/log"

// logWarning is the built-in WarnHandler fallback: structured logging at
// warn level.
func logWarning(w *Warning) {
	log.Warn().Str("code", w.Code).Msg(w.Message)
}
