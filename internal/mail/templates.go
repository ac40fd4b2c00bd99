// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package mail

import (
	"html/template"

	"github.com/canonical/teams-service/internal/types"
)

type message struct {
	subject string
	path    string
	body    *template.Template
}

const layout = `<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .btn { display: inline-block; background: #2563eb; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; }
    </style>
</head>
<body>
<div class="container">
{{template "content" .}}
    <p class="footer">If you were not expecting this email, you can ignore it.</p>
</div>
</body>
</html>
`

func parse(name, content string) *template.Template {
	t := template.Must(template.New(name).Parse(layout))
	template.Must(t.New("content").Parse(content))
	return t
}

// link paths are resolved against the public URL, the token is appended as a query parameter
var messages = map[types.NotificationKind]message{
	types.NotificationVerify: {
		subject: "Verify your email address",
		path:    "/verify",
		body: parse("verify", `
    <p>Hello,</p>
    <p>Confirm your email address to finish setting up your account.</p>
    <a href="{{.Link}}" class="btn">Verify email</a>
    <p>Or use this code: <code>{{.Token}}</code></p>
`),
	},
	types.NotificationReset: {
		subject: "Reset your password",
		path:    "/password/reset",
		body: parse("reset", `
    <p>Hello,</p>
    <p>A password reset was requested for your account. The link is valid for a short time and can be used once.</p>
    <a href="{{.Link}}" class="btn">Choose a new password</a>
    <p>Or use this code: <code>{{.Token}}</code></p>
`),
	},
	types.NotificationEmailChange: {
		subject: "Confirm your new email address",
		path:    "/settings/email/confirm",
		body: parse("email_change", `
    <p>Hello,</p>
    <p>Confirm that this address should become the email of your account.</p>
    <a href="{{.Link}}" class="btn">Confirm email change</a>
    <p>Or use this code: <code>{{.Token}}</code></p>
`),
	},
	types.NotificationInvitation: {
		subject: "You have been invited to a team",
		path:    "/invitation",
		body: parse("invitation", `
    <p>Hello,</p>
    <p>{{with index .Data "inviter"}}<strong>{{.}}</strong>{{else}}Someone{{end}} invited you to join
    <strong>{{index .Data "team"}}</strong>{{with index .Data "role"}} as {{.}}{{end}}.</p>
    <a href="{{.Link}}" class="btn">Accept invitation</a>
`),
	},
}
