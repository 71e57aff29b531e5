package server

// HTTPError is the JSON error envelope returned by the error handler.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest is the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the JWT for Bearer flows.
type TokenResponse struct {
	Token string `json:"token"`
}

// MeResponse reports the caller's remaining quota.
type MeResponse struct {
	Credits int `json:"credits"`
}

// CreateReportRequest starts a report run.
type CreateReportRequest struct {
	Topic string `json:"topic"`
}

// CreateReportResponse acknowledges an accepted run.
type CreateReportResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
