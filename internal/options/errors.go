package options

import "fmt"

// ErrorKind tags a normalization failure with the short machine code the
// spec requires alongside the human message.
type ErrorKind string

const (
	KindMissingOptions ErrorKind = ""
	KindUnknownOption  ErrorKind = "UNKNOWN_OPTION"
	KindInvalidOption  ErrorKind = "INVALID_OPTION"
)

// Error is the single error type every normalization failure uses. Kind and
// URL are both optional; Message is always populated.
type Error struct {
	Kind    ErrorKind
	Message string
	URL     string
}

func (e *Error) Error() string {
	if e.Kind == KindMissingOptions {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func missingOptions(msg string) error {
	return &Error{Kind: KindMissingOptions, Message: msg}
}

func invalidOption(msg, url string) error {
	return &Error{Kind: KindInvalidOption, Message: msg, URL: url}
}

// Warning is delivered to the caller-supplied WarnHandler. Code mirrors the
// machine codes used by Error where applicable (e.g. "UNKNOWN_OPTION",
// "PLUGIN_WARNING", "MISSING_GLOBAL_NAME", "DYNAMIC_IMPORT_WILL_NOT_SPLIT").
type Warning struct {
	Code    string
	Message string

	// PluginCode carries the plugin-specific sub-code when Code is
	// "PLUGIN_WARNING" (e.g. "ONGENERATE_HOOK_DEPRECATED"); empty otherwise.
	PluginCode string
}

// WarnHandler receives every warning the pipeline emits. def is the
// built-in handler (structured logging); callers that want to fall through
// to default behavior in addition to their own handling can invoke it.
type WarnHandler func(w *Warning, def func(*Warning))
