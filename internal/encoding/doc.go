// Package encoding converts intermediate media into shareable MP4 files.
// It defines the output profiles (pad filter, codec, quality settings) and
// the blocking ffmpeg invoker used by the pipeline stages.
package encoding
