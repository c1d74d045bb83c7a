// Package logs reads the daemon's rolling log for `reel logs`.
//
// reeld writes one log file per run and keeps a reel.log link pointing
// at the current one. Tail shows the last lines of that link; Follow
// polls it for new lines and survives the link being repointed when the
// daemon restarts.
package logs
