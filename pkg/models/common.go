package models

// APIError is the error body the license service returns alongside non-2xx responses.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Text returns the most descriptive message carried by the error body.
func (e APIError) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
