package timeutil

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UTCTime is a time.Time that is always stored and compared in UTC.
type UTCTime time.Time

func (t UTCTime) Value() (driver.Value, error) {
	return time.Time(t).UTC(), nil
}

func (t *UTCTime) Scan(value any) error {
	if value == nil {
		return nil
	}
	cvt, err := driver.DefaultParameterConverter.ConvertValue(value)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	cvtTime, ok := cvt.(time.Time)
	if !ok {
		return fmt.Errorf("expected type time.Time, got type %T", cvt)
	}
	*t = UTCTime(cvtTime.UTC())
	return nil
}

func NowUTC() UTCTime {
	return UTCTime(time.Now().UTC())
}

func (t UTCTime) UTC() time.Time { return time.Time(t).UTC() }
func (t UTCTime) IsZero() bool   { return time.Time(t).IsZero() }

func (t UTCTime) Add(delta time.Duration) UTCTime {
	return UTCTime(time.Time(t).Add(delta))
}

func (t UTCTime) String() string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
