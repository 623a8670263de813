// Package main hosts the rudder CLI.
//
// Commands open the logbook database directly: the daemon and the CLI share
// one SQLite file, and every write goes through the same in-transaction
// duplicate recheck, so no daemon connection is needed. "rudder run" starts
// the print monitor and HTTP API in the foreground.
package main
