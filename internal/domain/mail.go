package domain

const (
	MailTypeApplicationReceived = "application_received"
	MailTypeResetPassword       = "reset_password"
	MailTypeWelcome             = "welcome"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type WelcomeMailData struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	CollegeName string `json:"collegeName"`
}

type ApplicationReceivedMailData struct {
	StudentName string `json:"studentName"`
	JobTitle    string `json:"jobTitle"`
	Company     string `json:"company"`
}

type ResetPasswordMailData struct {
	Name       string `json:"name"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"`
}
