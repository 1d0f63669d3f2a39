package services

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var mailLayout = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>{{.Heading}}</h1></div>
        <p>Hello {{.Name}},</p>
        <p>{{.Intro}}</p>
        <p><a href="{{.Link}}" class="button">{{.Action}}</a></p>
        <p>Or copy and paste this link in your browser:<br><code>{{.Link}}</code></p>
        <p>This link expires in {{.ExpiresIn}}.</p>
        <div class="footer">
            <p>{{.Ignore}}</p>
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`))

type mailContent struct {
	Heading   string
	Name      string
	Intro     string
	Action    string
	Link      string
	ExpiresIn string
	Ignore    string
}

func renderMail(to, subject string, c mailContent) (Message, error) {
	var buf bytes.Buffer
	if err := mailLayout.Execute(&buf, c); err != nil {
		return Message{}, fmt.Errorf("failed to render %q email: %w", subject, err)
	}

	text := fmt.Sprintf("%s\n\nHello %s,\n\n%s\n\n%s\n\nThis link expires in %s.\n\n%s\n",
		c.Heading, c.Name, c.Intro, c.Link, c.ExpiresIn, c.Ignore)

	return Message{To: to, Subject: subject, HTMLBody: buf.String(), TextBody: text}, nil
}

func verificationMessage(to, name, link string, ttl time.Duration) (Message, error) {
	return renderMail(to, "Email Verification", mailContent{
		Heading:   "Verify your Email",
		Name:      name,
		Intro:     "Please confirm your email address to finish setting up your alumni account.",
		Action:    "Verify Email",
		Link:      link,
		ExpiresIn: humanDuration(ttl),
		Ignore:    "If you did not create this account, you can ignore this email.",
	})
}

func passwordResetMessage(to, name, link string, ttl time.Duration) (Message, error) {
	return renderMail(to, "Password Reset", mailContent{
		Heading:   "Reset your Password",
		Name:      name,
		Intro:     "We received a request to reset the password on your alumni account.",
		Action:    "Reset Password",
		Link:      link,
		ExpiresIn: humanDuration(ttl),
		Ignore:    "If you did not request a password reset, you can ignore this email. Your password will not change.",
	})
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
