package browser

// Credentials is the account used to sign in before collecting.
type Credentials struct {
	Username string
	Password string
}

// LoginSelectors locate the login form. The flow is: type the username,
// press Next, type the password, press Submit.
type LoginSelectors struct {
	Username string
	Next     string
	Password string
	Submit   string
}

// StatusInfo describes the current browser state.
type StatusInfo struct {
	Running bool   `json:"running"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
}
