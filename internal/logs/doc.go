// Package logs reads the trackline log file for the CLI.
//
// Last returns the final lines of a file with bounded memory, ReadFrom
// resumes at a byte offset, and Follow streams appended lines until its
// context ends. Follow watches the log directory rather than the file so a
// lumberjack rotation, which renames the file and creates a new one, is
// picked up from the start of the new file.
package logs
