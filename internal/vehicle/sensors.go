package vehicle

import "fmt"

// Sensor is one on-board reading exposed in status snapshots.
type Sensor interface {
	Kind() string
	Reading() string
}

type LightSensor struct{ On bool }

func (s LightSensor) Kind() string    { return "light" }
func (s LightSensor) Reading() string { return fmt.Sprintf("%t", s.On) }

type BrakeSensor struct{ Engaged bool }

func (s BrakeSensor) Kind() string    { return "brake" }
func (s BrakeSensor) Reading() string { return fmt.Sprintf("%t", s.Engaged) }

type SpeedSensor struct{ Kmh float64 }

func (s SpeedSensor) Kind() string    { return "speed" }
func (s SpeedSensor) Reading() string { return fmt.Sprintf("%.1f km/h", s.Kmh) }

type TemperatureSensor struct{ Celsius float64 }

func (s TemperatureSensor) Kind() string    { return "temperature" }
func (s TemperatureSensor) Reading() string { return fmt.Sprintf("%.1f C", s.Celsius) }

func defaultSensors() []Sensor {
	return []Sensor{
		LightSensor{On: false},
		TemperatureSensor{Celsius: 20},
		BrakeSensor{Engaged: true},
		SpeedSensor{Kmh: 0},
	}
}

// Sensors returns the current sensor suite.
func (v *Vehicle) Sensors() []Sensor {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Sensor, len(v.sensors))
	copy(out, v.sensors)
	return out
}

// SensorReport renders one "kind: reading" line per sensor.
func (v *Vehicle) SensorReport() map[string]string {
	out := make(map[string]string)
	for _, s := range v.Sensors() {
		out[s.Kind()] = s.Reading()
	}
	return out
}
