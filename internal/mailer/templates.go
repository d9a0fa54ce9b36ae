package mailer

import (
	"bytes"
	"html/template"
	"strings"
)

var htmlLayout = template.Must(template.New("mail").Parse(`<!doctype html>
<html><body style="font-family:Helvetica,Arial,sans-serif;color:#1f2933">
<p>{{if .Name}}Hi {{.Name}},{{else}}Hi,{{end}}</p>
<p>{{.Intro}}</p>
<p><a href="{{.Link}}" style="background:#1f3a5f;color:#fff;padding:10px 16px;border-radius:4px;text-decoration:none">{{.Action}}</a></p>
<p style="color:#52606d;font-size:12px">{{.Outro}}</p>
</body></html>`))

type mailData struct {
	Name   string
	Intro  string
	Action string
	Link   string
	Outro  string
}

func build(to, subject string, d mailData) Message {
	var html bytes.Buffer
	if err := htmlLayout.Execute(&html, d); err != nil {
		html.Reset()
	}
	greeting := "Hi,"
	if d.Name != "" {
		greeting = "Hi " + d.Name + ","
	}
	text := strings.Join([]string{greeting, "", d.Intro, "", d.Link, "", d.Outro}, "\n")
	return Message{To: to, Subject: subject, Text: text, HTML: html.String()}
}

func VerificationEmail(to, name, link string) Message {
	return build(to, "Confirm your CVitaPilot account", mailData{
		Name:   name,
		Intro:  "Please confirm your email address to start building your CV.",
		Action: "Confirm email",
		Link:   link,
		Outro:  "Unconfirmed accounts are removed automatically after a few days.",
	})
}

func PasswordResetEmail(to, name, link string) Message {
	return build(to, "Reset your CVitaPilot password", mailData{
		Name:   name,
		Intro:  "We received a request to reset your password.",
		Action: "Choose a new password",
		Link:   link,
		Outro:  "If you did not ask for this, you can ignore this email.",
	})
}
