// Package pulse segments a single-channel blood-pulse recording into beats
// and derives a feature vector for every beat that survives validation.
//
// A Session owns all mutable state for one subject recording: the running
// segmentation threshold, the pressure calibration, the heart-rate history
// and the exact and trailing-averaged feature tables. Batches (typically one
// file or one capture window each) are processed synchronously and in order.
//
// Pipeline per batch:
//
//	raw signal -> first derivative -> Segmenter (rise candidates)
//	  -> trough boundaries -> Normalizer (filter, baseline, calibrate)
//	  -> DetectLandmarks -> ComputeFeatures -> FeatureTable
//
// Beats that fail size or landmark-order checks are dropped with a typed
// Diagnostic; they never fail the batch. Only malformed input does.
//
// A Session is not safe for concurrent use. Run one per subject and process
// subjects in parallel if needed.
package pulse
