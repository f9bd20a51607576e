// Package device provides capability probes.
package device

import (
	"context"
	"sync/atomic"
)

// StaticProbe reports a capability value set by the host. Server deployments
// have no radio, so the value comes from configuration or the API.
type StaticProbe struct {
	bluetooth atomic.Bool
}

// NewStaticProbe creates a probe with the initial Bluetooth state
func NewStaticProbe(bluetoothOn bool) *StaticProbe {
	p := &StaticProbe{}
	p.bluetooth.Store(bluetoothOn)
	return p
}

// BluetoothEnabled returns the current value
func (p *StaticProbe) BluetoothEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.bluetooth.Load(), nil
}

// SetBluetooth updates the reported value
func (p *StaticProbe) SetBluetooth(on bool) {
	p.bluetooth.Store(on)
}
