package functions

import (
	"fmt"
	"regexp"
	"time"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/lazy"
)

// DateDiff counts the days from start to end. With a daysToIgnore list
// column, it counts the days of the inclusive range start..end that are not
// in the list, minus one and never below zero. The result is null when
// either date is null. Both inputs must be date columns.
func DateDiff(start, end lazy.Expr, daysToIgnore ...lazy.Expr) lazy.Expr {
	args := []lazy.Expr{start, end}
	withIgnore := len(daysToIgnore) > 0
	if withIgnore {
		args = append(args, daysToIgnore[0])
	}
	return lazy.Map(core.Int64, func(row []any) (any, error) {
		s, ok1 := row[0].(core.Date)
		e, ok2 := row[1].(core.Date)
		if !ok1 || !ok2 {
			return nil, nil
		}
		if !withIgnore {
			return daysBetween(s, e), nil
		}
		ignored := map[core.Date]bool{}
		if list, ok := row[2].([]any); ok {
			for _, v := range list {
				if d, ok := v.(core.Date); ok {
					ignored[d] = true
				}
			}
		}
		var kept int64
		for d := s.Time(); !d.After(e.Time()); d = d.AddDate(0, 0, 1) {
			if !ignored[core.DateOf(d)] {
				kept++
			}
		}
		return max(kept-1, 0), nil
	}, args...).Alias(start.Name())
}

var yyyymmdd = regexp.MustCompile(`^\d{8}$`)

func daysBetween(start, end core.Date) int64 {
	return int64(end.Time().Sub(start.Time()) / (24 * time.Hour))
}

// IntToDate reads an eight digit YYYYMMDD value as a date. Other values
// become null.
func IntToDate(col lazy.Expr) lazy.Expr {
	return lazy.Map(core.DateType, func(row []any) (any, error) {
		if row[0] == nil {
			return nil, nil
		}
		s := fmt.Sprint(row[0])
		if !yyyymmdd.MatchString(s) {
			return nil, nil
		}
		t, err := time.Parse("20060102", s)
		if err != nil {
			return nil, nil
		}
		return core.DateOf(t), nil
	}, col).Alias(col.Name())
}

// ConvertIntsToDates applies IntToDate to the named columns that exist in
// the frame.
func ConvertIntsToDates(f *lazy.Frame, columns []string) (*lazy.Frame, error) {
	return mapExisting(f, columns, IntToDate)
}

// TimestampToDate parses a string column with a Go time layout and keeps the
// date part. Unparseable values become null.
func TimestampToDate(col lazy.Expr, layout string) lazy.Expr {
	return lazy.Map(core.DateType, func(row []any) (any, error) {
		s, ok := row[0].(string)
		if !ok {
			return nil, nil
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return nil, nil
		}
		return core.DateOf(t), nil
	}, col).Alias(col.Name())
}

// ConvertTimestampsToDates applies TimestampToDate to the named columns that
// exist in the frame.
func ConvertTimestampsToDates(f *lazy.Frame, columns []string, layout string) (*lazy.Frame, error) {
	return mapExisting(f, columns, func(c lazy.Expr) lazy.Expr {
		return TimestampToDate(c, layout)
	})
}
