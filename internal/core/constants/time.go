package constants

import "time"

const (
	// Follow mode backoff between polls when the source has no new data
	DefaultPollInterval = 100 * time.Millisecond
	MaxPollInterval     = 10 * time.Second

	// Dialog table bounds
	DefaultMaxDialogs = 100000
	DefaultMaxAge     = time.Duration(0) // disabled

	// Per extractor address line memoization
	DefaultAddrCacheSize = 1024

	// Buffered events between pipelines and the aggregation loop
	DefaultEventBuffer = 1024

	// Maximum accepted trace line length
	MaxLineSize = 1024 * 1024
)
