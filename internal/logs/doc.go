// Package logs reads the daemon log file for `rudder logs`: the last N lines,
// lines appended since an offset, and a polling follow mode that survives
// truncation.
package logs
