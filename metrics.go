package clientcache

import "github.com/pascaldekloe/metrics"

// Counters are registered globally and exposed with metrics.ServeHTTP.
var (
	metricBypass      = metrics.MustCounter("clientcache_bypass_total", "Number of requests sent without consulting the cache")
	metricHit         = metrics.MustCounter("clientcache_hit_total", "Number of requests served from the cache")
	metricMiss        = metrics.MustCounter("clientcache_miss_total", "Number of requests fetched because nothing usable was stored")
	metricRevalidated = metrics.MustCounter("clientcache_revalidated_total", "Number of stored responses confirmed by the origin")
	metricReplaced    = metrics.MustCounter("clientcache_replaced_total", "Number of stored responses replaced on revalidation")
	metricFailed      = metrics.MustCounter("clientcache_failed_total", "Number of requests that failed")
	metricStoreFailed = metrics.MustCounter("clientcache_store_fail_total", "Number of cache writes that failed")
	metricInvalidated = metrics.MustCounter("clientcache_invalidated_total", "Number of URIs invalidated by unsafe requests")
)

func countOutcome(result *Result) {
	switch result.Outcome {
	case Bypass:
		metricBypass.Add(1)
	case Hit:
		metricHit.Add(1)
	case MissFetched:
		metricMiss.Add(1)
	case RevalidatedUnchanged:
		metricRevalidated.Add(1)
	case RevalidatedReplaced:
		metricReplaced.Add(1)
	}
}
