package capture

import "strings"

// Device describes a discovered input device. Index is the position in the
// enumeration order and is what callers pass to Source.Start.
type Device struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Source is an audio input that pushes frames to a callback. Start begins
// delivery of complete frames to onFrame and reports asynchronous device
// failures through onError. Stop halts delivery; a started source must be
// stopped before it can be started again.
type Source interface {
	ListDevices() ([]Device, error)
	Start(deviceIndex int, onFrame func([]float32), onError func(error)) error
	Stop() error
}

// displayName tags a raw device name so loopback devices stand out in
// listings. Virtual cable outputs carry system audio rather than a
// microphone signal.
func displayName(name string) string {
	if strings.Contains(name, "CABLE Output") {
		return name + " (Virtual Cable)"
	}
	return name + " (Microphone)"
}
