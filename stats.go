package inhttp

import "github.com/puzpuzpuz/xsync/v3"

// Process-wide parse counters. Connections are parsed by independent
// goroutines, so these are the only cross-connection state in the package.
var stats = struct {
	requests    *xsync.Counter
	parseErrors *xsync.Counter
	proxyLines  *xsync.Counter
}{
	requests:    xsync.NewCounter(),
	parseErrors: xsync.NewCounter(),
	proxyLines:  xsync.NewCounter(),
}

// Stats is a snapshot of the process-wide parse counters.
type Stats struct {
	Requests    int64
	ParseErrors int64
	ProxyLines  int64
}

// Snapshot returns the current counter values.
func Snapshot() Stats {
	return Stats{
		Requests:    stats.requests.Value(),
		ParseErrors: stats.parseErrors.Value(),
		ProxyLines:  stats.proxyLines.Value(),
	}
}
