package invocation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Direction of a run.
type Direction string

const (
	DirectionPush Direction = "push" // spreadsheet -> board
	DirectionPull Direction = "pull" // board -> spreadsheet
)

// Request asks for one run. A front end sends it as JSON.
type Request struct {
	Direction Direction `json:"direction"`
	BoardID   string    `json:"boardId"`
	APIKey    string    `json:"apiKey"`
	FilePath  string    `json:"filePath"`
}

// Result is what the front end gets back.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"runId,omitempty"`
}

// Validate checks that every field needed for a run is present.
func (r Request) Validate() error {
	var missing []string
	if r.BoardID == "" {
		missing = append(missing, "boardId")
	}
	if r.APIKey == "" {
		missing = append(missing, "apiKey")
	}
	if r.FilePath == "" {
		missing = append(missing, "filePath")
	}
	if len(missing) > 0 {
		return fmt.Errorf("request is missing %s", strings.Join(missing, ", "))
	}
	switch r.Direction {
	case DirectionPush, DirectionPull:
		return nil
	default:
		return fmt.Errorf("unknown direction %q (want push or pull)", r.Direction)
	}
}

// DecodeRequest reads one JSON request.
func DecodeRequest(r io.Reader) (Request, error) {
	var req Request
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("decoding request: %w", err)
	}
	return req, nil
}

// Failure builds an unsuccessful result from err.
func Failure(err error) Result {
	return Result{Success: false, Message: err.Error()}
}
