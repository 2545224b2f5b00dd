package store

import (
	"encoding/json"

	"github.com/denysvitali/carshare-anon/anonapi"
)

// ErrorStatus describes the outcome of the last update.
type ErrorStatus struct {
	HasError bool
	Err      error
}

func (e ErrorStatus) MarshalJSON() ([]byte, error) {
	out := struct {
		HasError bool   `json:"hasError"`
		Error    string `json:"error,omitempty"`
	}{HasError: e.HasError}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}

type Snapshot struct {
	anonapi.Bundle
	Position    anonapi.Position `json:"position"`
	ErrorStatus ErrorStatus      `json:"errorStatus"`
}
