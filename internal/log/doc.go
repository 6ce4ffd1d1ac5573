// Package log builds the slog logger used across chhaya.
//
// Records are written as text to the console and, when a log file is
// configured, also as JSON to that file. Both destinations sit behind
// SecureHandler, which masks analyzer API keys, bearer tokens and proxy
// credentials embedded in URLs. Those values show up in SDK error strings
// and would otherwise leak into shared log files.
//
//	logger, closeLog, err := log.New(log.Options{File: path, Verbose: true})
//	if err != nil {
//		return err
//	}
//	defer closeLog()
//	slog.SetDefault(logger)
package log
