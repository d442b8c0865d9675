package common

// HttpResponse is the JSON envelope used by HTTP APIs in this project:
// exactly one of Error or Result is set.
type HttpResponse[T any] struct {
	Error  *string `json:"error"`
	Result *T      `json:"result,omitempty"`
}
