package auth

// TokenResponse is returned by every token operation
type TokenResponse struct {
	Valid   bool     `json:"valid"`
	Account *Account `json:"account,omitempty"`
	Token   string   `json:"token,omitempty"`
	Status  Status   `json:"status"`
	Code    int      `json:"code"`
	Message string   `json:"message"`
}

// NewTokenResponse builds the response for status. The account is
// only exposed on OK responses, WithAccount overrides that.
func NewTokenResponse(status Status, account *Account, token string) *TokenResponse {
	resp := &TokenResponse{
		Valid:   status == StatusOK,
		Token:   token,
		Status:  status,
		Code:    HTTPCode(status),
		Message: Message(status),
	}
	if status == StatusOK {
		resp.Account = account
	}
	return resp
}

// WithMessage overrides the mapped message when msg is not empty
func (r *TokenResponse) WithMessage(msg string) *TokenResponse {
	if msg != "" {
		r.Message = msg
	}
	return r
}

// WithAccount exposes account regardless of status
func (r *TokenResponse) WithAccount(account *Account) *TokenResponse {
	r.Account = account
	return r
}

// PasswordResponse is returned by the password reset operations
type PasswordResponse struct {
	Successful bool                `json:"successful"`
	Status     Status              `json:"status"`
	Code       int                 `json:"code"`
	Message    string              `json:"message"`
	Messages   []ValidationMessage `json:"messages,omitempty"`
}

// NewResetPasswordResponse builds the response of a password reset
func NewResetPasswordResponse(status Status) *PasswordResponse {
	return &PasswordResponse{
		Successful: status == StatusOK,
		Status:     status,
		Code:       HTTPCode(status),
		Message:    ResetPasswordMessage(status),
	}
}

// NewRequestResetPasswordResponse builds the response of a reset request
func NewRequestResetPasswordResponse(status Status) *PasswordResponse {
	return &PasswordResponse{
		Successful: status == StatusOK,
		Status:     status,
		Code:       HTTPCode(status),
		Message:    RequestResetPasswordMessage(status),
	}
}

// NewInvalidPasswordResponse reports password policy failures
func NewInvalidPasswordResponse(messages []ValidationMessage) *PasswordResponse {
	resp := NewResetPasswordResponse(StatusInvalidPassword)
	resp.Messages = messages
	if len(messages) > 0 && messages[0].Message != "" {
		resp.Message = messages[0].Message
	}
	return resp
}
