package mqtt

import "fmt"

// Topic structure for FleetSim Core:
//
//	fleetsim/system/status              — online/offline status (retained)
//	fleetsim/telemetry/{kind}/{device}  — readings, one topic per device
type Topics struct{}

// SystemStatus returns the system status topic.
func (Topics) SystemStatus() string {
	return "fleetsim/system/status"
}

// Telemetry returns the reading topic for a device.
func (Topics) Telemetry(kind, deviceID string) string {
	return fmt.Sprintf("fleetsim/telemetry/%s/%s", kind, deviceID)
}
