// Package recognizer calls the remote board-recognition service that turns a
// published game video back into notation with per-move timestamps.
package recognizer
