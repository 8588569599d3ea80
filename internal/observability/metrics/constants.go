// Package metrics provides Prometheus metric collectors for the pipeline
// and the warehouse store.
package metrics

const (
	// BucketStart1ms is the starting bucket for 1ms histograms
	BucketStart1ms = 0.001

	// BucketStart100ms is the starting bucket for slower operations such
	// as whole pipeline steps
	BucketStart100ms = 0.1

	// BucketFactor2 is the exponential growth factor for histogram buckets
	BucketFactor2 = 2

	// BucketCount12 defines 12 exponential buckets
	BucketCount12 = 12

	// BucketCount15 defines 15 exponential buckets
	BucketCount15 = 15
)
