// Package solar computes the apparent position of the sun, used as a
// time-of-day covariate for sensor calibration.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Position is the apparent position of the sun for an observer.
type Position struct {
	ElevationDeg   float64
	AzimuthDeg     float64
	DeclinationDeg float64
	EqOfTimeMin    float64
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// SunPosition returns the sun's position at instant t for an observer at the
// given latitude and longitude (degrees, east positive). Elevation includes the
// standard refraction correction at the horizon.
func SunPosition(t time.Time, lat, lon float64) Position {
	t = t.UTC()
	jd := julian.TimeToJD(t)
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	omega := 125.04 - 1934.136*T
	lambda := L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	decl := math.Asin(math.Sin(degToRad(eps)) * math.Sin(degToRad(lambda)))

	y := math.Pow(math.Tan(degToRad(eps)/2), 2)
	eqTime := 4 * radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M)))

	minutes := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0
	trueSolarTime := minutes + 4*lon + eqTime
	hourAngle := trueSolarTime/4 - 180

	latRad := degToRad(lat)
	cosZen := math.Sin(latRad)*math.Sin(decl) + math.Cos(latRad)*math.Cos(decl)*math.Cos(degToRad(hourAngle))
	cosZen = math.Max(-1, math.Min(1, cosZen))
	zen := math.Acos(cosZen)

	pos := Position{
		ElevationDeg:   90 - radToDeg(zen) + 0.5667,
		DeclinationDeg: radToDeg(decl),
		EqOfTimeMin:    eqTime,
	}

	den := math.Cos(latRad) * math.Sin(zen)
	if den != 0 {
		cosAz := (math.Sin(decl) - math.Sin(latRad)*cosZen) / den
		az := radToDeg(math.Acos(math.Max(-1, math.Min(1, cosAz))))
		if fixAngle(hourAngle+180) > 180 {
			az = 360 - az
		}
		pos.AzimuthDeg = az
	}
	return pos
}
