// Package errors gives driversync failures a machine-readable code so the
// CLI can choose an exit status and a troubleshooting hint without matching
// on message text.
package errors

import "errors"

// Code classifies a failure.
type Code string

const (
	CodeUnknown Code = "unknown"

	// Browser and driver detection.
	CodeBrowserNotFound Code = "browser_not_found"
	CodeCommandFailed   Code = "command_failed"
	CodeParseFailed     Code = "parse_failed"

	// Resolving and installing a driver.
	CodeNetworkFailure     Code = "network_failure"
	CodeManifestMissingKey Code = "manifest_missing_key"
	CodeNoMatchingDownload Code = "no_matching_download"
	CodeExtractionFailed   Code = "extraction_failed"
	CodeUnsupportedOS      Code = "unsupported_platform"

	CodeConfigurationError Code = "configuration_error"
)

// Error carries a Code, a message meant for people, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New builds an Error. err may be nil.
func New(code Code, msg string, err error) Error {
	return Error{Code: code, Message: msg, Err: err}
}

// Error prefers Message, then the cause, then the code itself.
func (e Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Code)
	}
}

func (e Error) Unwrap() error { return e.Err }

// CodeOf returns the code of the first Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var coded Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// IsCode reports whether err's chain carries code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Cause returns the error wrapped by the first Error in err's chain, if any.
func Cause(err error) error {
	var coded Error
	if errors.As(err, &coded) {
		return coded.Err
	}
	return nil
}
