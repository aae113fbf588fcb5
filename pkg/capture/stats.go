package capture

// Stats describes how a capture went.
type Stats struct {
	Batches             uint64 `yaml:"batches"`
	DroppedBatches      uint64 `yaml:"dropped_batches"`
	InterpolatedSamples int    `yaml:"interpolated_samples"`
	Samples             int    `yaml:"samples"`
}
