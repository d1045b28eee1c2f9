package httpcmd

import (
	"encoding/json"

	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusUnknown Status = "unknown"
)

var ErrMalformedStatus = errors.New("malformed status body")

type statusBody struct {
	Status string `json:"status"`
}

// ParseStatus reads a {"status": "open"|"closed"} body. Any other status
// value is reported as StatusUnknown without an error.
func ParseStatus(body []byte) (Status, error) {
	var b statusBody
	if err := json.Unmarshal(body, &b); err != nil {
		return StatusUnknown, errors.Wrap(ErrMalformedStatus, err.Error())
	}

	switch Status(b.Status) {
	case StatusOpen:
		return StatusOpen, nil
	case StatusClosed:
		return StatusClosed, nil
	}
	return StatusUnknown, nil
}

// Position maps a known status to its boundary position.
func (s Status) Position() (int, bool) {
	switch s {
	case StatusOpen:
		return blinds.FullOpenPosition, true
	case StatusClosed:
		return blinds.FullClosePosition, true
	}
	return 0, false
}
