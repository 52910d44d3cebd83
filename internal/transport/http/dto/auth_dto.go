package dto

type RequestCodeRequest struct {
	Phone string `json:"phone"`
}

type RequestCodeResponse struct {
	OK bool `json:"ok"`
	// DebugCode is populated only when SMS delivery is disabled.
	DebugCode string `json:"debug_code,omitempty"`
}

type VerifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthMeResponse struct {
	ID    int64  `json:"id"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

type AuthTokensResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresInSec int64          `json:"expires_in_sec"`
	Me           AuthMeResponse `json:"me"`
}

type LogoutResponse struct {
	OK bool `json:"ok"`
}
