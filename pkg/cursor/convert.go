package cursor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layouts of date and time values as the report service renders them.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "2006-01-02 15:04:05"
)

var (
	integerPattern  = regexp.MustCompile(`^-?\d+$`)
	decimalPattern  = regexp.MustCompile(`^-?\d+\.\d+$`)
	exponentPattern = regexp.MustCompile(`^-?\d+\.?\d*[Ee][+-]?\d+$`)
)

// ConversionError reports a value that cannot be read as the requested type.
type ConversionError struct {
	Value string
	Type  string
	Err   error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %q to %s: %v", e.Value, e.Type, e.Err)
	}
	return fmt.Sprintf("cannot convert %q to %s", e.Value, e.Type)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ToInt64 parses an integer value.
func ToInt64(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, &ConversionError{Value: s, Type: "int64", Err: err}
	}
	return v, nil
}

// ToFloat64 parses a floating point value.
func ToFloat64(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &ConversionError{Value: s, Type: "float64", Err: err}
	}
	return v, nil
}

// ToBool accepts true/t/yes/y/1 and false/f/no/n/0 in any case.
func ToBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	default:
		return false, &ConversionError{Value: s, Type: "bool"}
	}
}

// ToDate parses the date part (first ten characters) of a value.
func ToDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return time.Time{}, &ConversionError{Value: s, Type: "date"}
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return time.Time{}, &ConversionError{Value: s, Type: "date", Err: err}
	}
	return t, nil
}

// ToTime parses the time-of-day part of a timestamp value.
func ToTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(TimestampLayout) {
		return time.Time{}, &ConversionError{Value: s, Type: "time"}
	}
	t, err := time.Parse(TimeLayout, s[len(DateLayout)+1:len(TimestampLayout)])
	if err != nil {
		return time.Time{}, &ConversionError{Value: s, Type: "time", Err: err}
	}
	return t, nil
}

// ToTimestamp parses a timestamp value. An ISO 'T' separator is accepted
// and fractional seconds or zone suffixes are ignored.
func ToTimestamp(s string) (time.Time, error) {
	s = strings.Replace(strings.TrimSpace(s), "T", " ", 1)
	if len(s) < len(TimestampLayout) {
		return time.Time{}, &ConversionError{Value: s, Type: "timestamp"}
	}
	t, err := time.Parse(TimestampLayout, s[:len(TimestampLayout)])
	if err != nil {
		return time.Time{}, &ConversionError{Value: s, Type: "timestamp", Err: err}
	}
	return t, nil
}

// ToNumber infers a value's type: integers become int64, decimals and
// exponent notation float64, anything else stays a string.
func ToNumber(s string) any {
	switch {
	case integerPattern.MatchString(s):
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	case decimalPattern.MatchString(s), exponentPattern.MatchString(s):
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return s
}
