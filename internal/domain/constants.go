package domain

import "time"

const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 1024
	DefaultBatchFlushWait  = 2 * time.Millisecond

	DefaultObservabilityListenAddress = "127.0.0.1:9464"
	DefaultHTTPListenAddress          = "127.0.0.1:8090"
	DefaultHTTPPath                   = "/mcp"
	DefaultBackstageBaseURL           = "http://127.0.0.1:7007"

	DefaultDiscoveryMode  = DiscoveryModeStatic
	DefaultToolsDirSuffix = "tools.d"
)

// DiscoveryMode selects how tool candidates are enumerated.
type DiscoveryMode string

const (
	// DiscoveryModeStatic enumerates the compiled-in tool set.
	DiscoveryModeStatic DiscoveryMode = "static"
	// DiscoveryModeDynamic enumerates descriptor files from a directory.
	DiscoveryModeDynamic DiscoveryMode = "dynamic"
)

// CacheStoreKind selects the backing store for the cached strategy.
type CacheStoreKind string

const (
	CacheStoreMemory CacheStoreKind = "memory"
	CacheStoreBolt   CacheStoreKind = "bolt"
)
