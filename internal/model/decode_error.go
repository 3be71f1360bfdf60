package model

// DecodeError records an instruction line that could not be parsed.
type DecodeError struct {
	Line  uint64 `json:"line"`
	Seq   uint64 `json:"seq,omitempty"`
	Error string `json:"error"`
}
