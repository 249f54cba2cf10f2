package mailer

import (
	"fmt"
	"html"
	"net/url"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendInvite(toEmail, teamName, inviterName, token string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	siteURL     string
}

func NewEmailService(host string, port int, username, password, senderName, siteURL string) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: username,
		senderName:  senderName,
		siteURL:     siteURL,
	}
}

// InviteLink is the page the invitee opens to accept.
func InviteLink(siteURL, token string) string {
	return fmt.Sprintf("%s/join?token=%s", siteURL, url.QueryEscape(token))
}

func (s *emailService) SendInvite(toEmail, teamName, inviterName, token string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("You're invited to join %s", teamName))

	link := InviteLink(s.siteURL, token)
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Join %s</h2>
			<p>%s invited you to review sessions with their team.</p>
			<a href="%s" style="background-color: #4C7EF3; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Accept invite</a>
			<p>Or copy this link:</p>
			<p>%s</p>
			<p>If you weren't expecting this, you can ignore this email.</p>
		</div>
	`, html.EscapeString(teamName), html.EscapeString(inviterName), link, link)

	m.SetBody("text/html", body)
	m.AddAlternative("text/plain", fmt.Sprintf("%s invited you to join %s: %s", inviterName, teamName, link))

	return s.dialer.DialAndSend(m)
}
