package util

import (
	"time"

	"github.com/jinzhu/now"
)

const DATETIME_FORMAT_YYYYMMDD = "20060102"

// DateAsYYYYMMDD returns the UTC daily bucket for the given time.
func DateAsYYYYMMDD(t time.Time) string {
	return t.UTC().Format(DATETIME_FORMAT_YYYYMMDD)
}

// BeginningOfDay returns midnight for the day of t in t's location.
func BeginningOfDay(t time.Time) time.Time {
	return now.New(t).BeginningOfDay()
}
