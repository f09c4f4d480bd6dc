package database

import "time"

// CalibratedReading is one calibrated value of one quantity for one sensor.
// Missing values are stored as NULL.
type CalibratedReading struct {
	Time         time.Time `gorm:"column:time;not null;index"`
	RunID        string    `gorm:"column:run_id;not null;index"`
	SensorName   string    `gorm:"column:sensor_name;not null"`
	Resolution   string    `gorm:"column:resolution;not null"`
	Quantity     string    `gorm:"column:quantity;not null"`
	Calibrated   *float64  `gorm:"column:calibrated"`
	Uncalibrated *float64  `gorm:"column:uncalibrated"`
	AQI          *float64  `gorm:"column:aqi"`
}

// TableName specifies the table name for CalibratedReading
func (CalibratedReading) TableName() string {
	return "calibrated_readings"
}
