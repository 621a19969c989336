// Package sl holds small helpers for building slog attributes.
package sl

import "log/slog"

// Err returns an slog.Attr with key "error" and the error text as value.
// A nil err yields an empty Attr, which handlers drop.
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
