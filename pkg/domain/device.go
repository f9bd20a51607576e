package domain

import "time"

// DeviceStatus records an ambient capability reading
type DeviceStatus struct {
	BluetoothOn bool      `json:"bluetooth_on"`
	Timestamp   time.Time `json:"timestamp"`
}
