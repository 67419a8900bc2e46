// Package sysperf samples host utilisation and reports it to the hub.
//
// Every poll interval the Sampler reads CPU time from /proc/stat, memory
// from /proc/meminfo and disk usage from statfs(2) on a configured path.
// Each figure is a fraction in [0,1]. CPU utilisation is computed over the
// interval since the previous poll; the first poll uses totals since boot.
//
// A source that fails to read is logged and reported as zero so that a
// missing /proc does not stop the other figures.
package sysperf
