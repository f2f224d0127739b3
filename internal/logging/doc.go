// Package logging provides a simple leveled logging interface for pichost.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true) and can be overridden with [SetLevel]. Output goes to stderr;
// [EnableFile] additionally writes to a size-rotated file.
package logging
