package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteReading writes a single device reading to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Switch readings should be converted to 1/0 by the caller.
//
// Example:
//
//	client.WriteReading("sensor-01", "sensor", 21.5, "celsius", time.Now())
func (c *Client) WriteReading(deviceID, kind string, value float64, unit string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": deviceID,
		"kind":      kind,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	point := write.NewPoint(
		"readings",
		tags,
		map[string]interface{}{
			"value": value,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}
