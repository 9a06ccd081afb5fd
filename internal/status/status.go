// Package status answers health and identity queries for the service.
//
// Every value returned by a Reporter is built fresh for the call and never
// mutated afterwards, so handlers may serialize it without coordination.
package status

import (
	"errors"
	"time"
)

// Liveness signals whether the process is running and responsive.
type Liveness string

const (
	StatusOK       Liveness = "OK"
	StatusDegraded Liveness = "DEGRADED"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a point in time serialized with TimestampLayout.
type Timestamp time.Time

// Time returns the underlying time value.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(TimestampLayout)+2)
	buf = append(buf, '"')
	buf = time.Time(t).UTC().AppendFormat(buf, TimestampLayout)
	buf = append(buf, '"')
	return buf, nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("timestamp must be a JSON string")
	}
	parsed, err := time.Parse(time.RFC3339Nano, string(data[1:len(data)-1]))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// StatusResponse is the liveness document served on the health route.
type StatusResponse struct {
	Status    Liveness  `json:"status"`
	Service   string    `json:"service"`
	Timestamp Timestamp `json:"timestamp"`
	Version   string    `json:"version"`
}

// Welcome is the static identity document served on the API root.
type Welcome struct {
	Message    string `json:"message" yaml:"message"`
	Philosophy string `json:"philosophy" yaml:"philosophy"`
	Hierarchy  string `json:"hierarchy" yaml:"hierarchy"`
}

// Report is the detailed status document, including check results.
type Report struct {
	Status    Liveness        `json:"status"`
	Service   string          `json:"service"`
	Version   string          `json:"version"`
	Timestamp Timestamp       `json:"timestamp"`
	StartedAt Timestamp       `json:"started_at"`
	Uptime    string          `json:"uptime"`
	Checks    map[string]bool `json:"checks"`
}

// Manifest is the service identity a Reporter answers with.
type Manifest struct {
	Service string
	Version string
	Welcome Welcome
}

var (
	ErrEmptyService = errors.New("service name cannot be empty")
	ErrEmptyVersion = errors.New("service version cannot be empty")
)

// Validate reports every missing identity field.
func (m Manifest) Validate() error {
	var errs []error
	if m.Service == "" {
		errs = append(errs, ErrEmptyService)
	}
	if m.Version == "" {
		errs = append(errs, ErrEmptyVersion)
	}
	return errors.Join(errs...)
}
