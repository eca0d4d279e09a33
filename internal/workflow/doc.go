// Package workflow implements the processing worker.
//
// A Pipeline drives one claimed track through validate, audio, image,
// video, and tags, persisting the record and publishing an event after each
// stage. Progress checkpoints are 0, 33, 66, 90, and 100. Any stage error
// marks the track failed with a message prefixed by its failure class.
//
// A Manager runs a pool of workers over a jobs.Queue. Each worker dequeues a
// track ID, claims the record (pending only, so duplicate deliveries are
// harmless), and runs the pipeline while a heartbeat keeps updated_at fresh.
// Stage errors never escape the worker loop.
package workflow
