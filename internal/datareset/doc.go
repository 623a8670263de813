// Package datareset backs up, clears and restores the logbook database and
// its saved instruction files.
package datareset
