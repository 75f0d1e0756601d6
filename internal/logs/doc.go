// Package logs reads the JSON log file written under paths.log_dir.
//
// Last returns the final lines with bounded memory; Follow streams lines as
// they are appended, using fsnotify on the log directory so a file created
// after the command starts is still picked up. Both back "scrivener logs".
package logs
