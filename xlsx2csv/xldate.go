package xlsx2csv

import (
	"math"
	"time"
)

var (
	epoch1904       = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch1900       = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	epoch1900Minus1 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

const (
	serialTooLarge1900 = 2958466 // Gregorian year 10000
	serialTooLarge1904 = serialTooLarge1900 - 1462
)

// serialToTime converts a spreadsheet serial day-count into a time.Time.
//
// serial: the raw numeric cell value.
// datemode: 0 for the 1900 date system, 1 for the 1904 system.
//
// A serial in [0, 1) is a pure time of day. The false leap day the 1900
// system inherits (serial 60 = "1900-02-29") is handled by shifting the
// epoch for serials from 60 up, so 61 maps to 1900-03-01 as both systems
// agree it should.
func serialToTime(serial float64, datemode int) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 {
		return time.Time{}, false
	}

	var epoch time.Time
	switch {
	case datemode == 1:
		if serial >= serialTooLarge1904 {
			return time.Time{}, false
		}
		epoch = epoch1904
	case serial < 60:
		epoch = epoch1900
	default:
		if serial >= serialTooLarge1900 {
			return time.Time{}, false
		}
		epoch = epoch1900Minus1
	}

	days := int(serial)
	// Round the day-fraction to the nearest second; sub-second residue would
	// otherwise leak into the rendered time.
	seconds := int(math.Round((serial - float64(days)) * 86400.0))
	if seconds >= 86400 {
		days++
		seconds -= 86400
	}
	return epoch.AddDate(0, 0, days).Add(time.Duration(seconds) * time.Second), true
}
