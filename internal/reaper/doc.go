// Package reaper schedules the idle-session sweep.
//
// The reaper knows nothing about sessions beyond the Cleaner
// interface; the session manager decides what counts as idle. A sweep
// that finds nothing logs nothing.
package reaper
