// Package pipeline runs the conversion stages that turn game notation and
// uploaded videos into shareable MP4s. Each stage fires off one object-store
// finalize event, records progress in the ledger with advance-if-behind
// writes, and tolerates duplicate event delivery.
package pipeline
