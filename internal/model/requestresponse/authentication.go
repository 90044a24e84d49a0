package requestresponse

// RegisterRequest : тело запроса регистрации
type RegisterRequest struct {
	Email    string  `json:"email" example:"jane.doe@example.com"`
	Password string  `json:"password" example:"Str0ng!Passw0rd"`
	Name     *string `json:"name,omitempty" example:"Jane Doe"`
}

// LoginRequest : тело запроса на аутентификацию
type LoginRequest struct {
	Email    string `json:"email" example:"jane.doe@example.com"`
	Password string `json:"password" example:"Str0ng!Passw0rd"`
}

// GoogleLoginRequest : ID-токен, полученный клиентом от Google
type GoogleLoginRequest struct {
	IDToken string `json:"idToken" example:"eyJhbGciOiJSUzI1NiIsImtpZCI6..."`
}

// AccessTokenResponse : ответ на успешную аутентификацию или refresh.
// Refresh и CSRF токены приходят в cookie
type AccessTokenResponse struct {
	AccessToken string `json:"accessToken" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}
