// Package capture enumerates audio input devices and streams fixed-size
// frames of float32 samples from a selected device. The miniaudio-backed
// implementation delivers frames on the backend's own callback goroutine;
// consumers are expected to hand them off to a queue immediately.
package capture
