package dataintegrity

import (
	"fmt"
	"regexp"
	"time"

	"sdvc/pkg/model"
)

// dateTimeStampRE enforces XML Schema 1.1 dateTimeStamp: a full date
// and time with mandatory time-zone designator.
var dateTimeStampRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,7})?(Z|[+-]\d{2}:\d{2})$`)

// ValidateDateTimeStamp checks the wire form of created/expires values.
// A timestamp without a time-zone designator fails.
func ValidateDateTimeStamp(s string) error {
	if !dateTimeStampRE.MatchString(s) {
		return fmt.Errorf("%w: %q", model.ErrInvalidDateTimeStamp, s)
	}
	return nil
}

// FormatDateTimeStamp renders a time as a dateTimeStamp in UTC. The
// engine never reads the system clock; callers pass every timestamp in.
func FormatDateTimeStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
