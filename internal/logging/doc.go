// Package logging provides a simple leveled logging interface for the
// transcoding pipeline.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true.
//
// Long-running work such as a transcoding job logs through a Logger
// obtained from For, which prefixes every line with the job's tags:
//
//	log := logging.For("job", id)
//	log.Info("variant %s finished", name)
package logging
