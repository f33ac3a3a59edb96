package notify

import (
	"fmt"
	"html"
)

type rendered struct {
	Subject  string
	TextBody string
	HTMLBody string
}

const footer = `<hr/><p style="font-size:12px;color:#888;">This email was sent automatically. Please don't reply.</p>`

func render(msg Message) rendered {
	name := msg.Data["username"]
	esc := func(key string) string {
		v := msg.Data[key]
		if v == "" {
			v = "unknown"
		}
		return html.EscapeString(v)
	}

	switch msg.Kind {
	case KindWelcome:
		return rendered{
			Subject:  "Welcome to Scripta",
			TextBody: fmt.Sprintf("Hi %s,\n\nWelcome to Scripta, your social media writing assistant! You can now log in and start creating your first post.", name),
			HTMLBody: fmt.Sprintf("<h2>Hi %s,</h2><p>Welcome to <b>Scripta</b>, your social media writing assistant!</p><p>You can now log in and start creating your first post.</p>%s", esc("username"), footer),
		}
	case KindLoginCode:
		return rendered{
			Subject:  "Verify your login to Scripta",
			TextBody: fmt.Sprintf("Hi %s,\n\nWe detected a login attempt from a new device.\nIP Address: %s\nDevice: %s\n\nYour verification code is %s. It expires in 10 minutes.", name, msg.Data["ip"], msg.Data["userAgent"], msg.Data["code"]),
			HTMLBody: fmt.Sprintf(`<h3>Hi %s,</h3><p>We detected a login attempt from a new device.</p><p><b>IP Address:</b> %s<br/><b>Device:</b> %s</p><p>Please verify this login by entering the code below:</p><h2 style="text-align:center;letter-spacing:4px;">%s</h2><p>This code will expire in 10 minutes.</p>%s`,
				esc("username"), esc("ip"), esc("userAgent"), esc("code"), footer),
		}
	case KindPasswordReset:
		return rendered{
			Subject:  "Reset your Scripta password",
			TextBody: fmt.Sprintf("Hi %s,\n\nUse the code %s to reset your password. It expires in 10 minutes.\nIf you didn't request this, please ignore this email.", name, msg.Data["code"]),
			HTMLBody: fmt.Sprintf(`<h3>Hi %s,</h3><p>You requested a password reset for your Scripta account.</p><p>Please use the code below to reset your password:</p><h2 style="text-align:center;letter-spacing:4px;">%s</h2><p>This code will expire in 10 minutes.</p><p>If you didn't request this, please ignore this email.</p>%s`,
				esc("username"), esc("code"), footer),
		}
	case KindNewLogin:
		return rendered{
			Subject:  "New Login to Your Scripta Account",
			TextBody: fmt.Sprintf("Hey %s,\n\nWe noticed a new login to your Scripta account from %s. If this wasn't you, reset your password immediately.", name, msg.Data["ip"]),
			HTMLBody: fmt.Sprintf("<h3>Hey %s,</h3><p>We noticed a new login to your Scripta account from %s.</p><p>If this was you, great! If not, please reset your password immediately.</p>%s", esc("username"), esc("ip"), footer),
		}
	case KindPasswordChanged:
		return rendered{
			Subject:  "Your Scripta password was changed",
			TextBody: fmt.Sprintf("Hi %s,\n\nYour password was changed and all trusted devices were signed out.", name),
			HTMLBody: fmt.Sprintf("<h3>Hi %s,</h3><p>Your password was changed and all trusted devices were signed out.</p>%s", esc("username"), footer),
		}
	default:
		return rendered{
			Subject:  "Scripta notification",
			TextBody: fmt.Sprintf("Hi %s,", name),
			HTMLBody: fmt.Sprintf("<p>Hi %s,</p>%s", esc("username"), footer),
		}
	}
}
