package shell

import (
	"context"
	"strings"

	"foodchat/internal/logger"
	"foodchat/pkg/chattypes"

	"github.com/abiosoft/ishell/v2"
)

// New builds the interactive shell around session. Lines that are not commands are sent
// as chat messages.
func New(ctx context.Context, session *Session, banner string) *ishell.Shell {
	sh := ishell.New()

	// Replace the prompt as the view changes, including after a delayed redirect.
	session.cfg.PromptChanged = sh.SetPrompt

	if banner != "" {
		sh.Println(banner)
	}
	sh.Println("Type 'help' for commands. Anything else is sent to the assistant.")

	sh.AddCmd(&ishell.Cmd{
		Name: "login",
		Help: "log in with email and password",
		Func: func(c *ishell.Context) {
			email, password := readCredentials(c)
			session.Login(ctx, email, password)
		},
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "register",
		Help: "create an account; you are returned to login afterwards",
		Func: func(c *ishell.Context) {
			email, password := readCredentials(c)
			session.Register(ctx, email, password)
		},
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "form",
		Help: "switch between the login and register forms: form login|register",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: form login|register")
				return
			}
			session.SwitchTo(chattypes.View(strings.ToLower(c.Args[0])))
		},
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "logout",
		Help: "end the session and forget the stored credential",
		Func: func(_ *ishell.Context) { session.Logout() },
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "say",
		Help: "send text that starts with a command name",
		Func: func(c *ishell.Context) { session.Send(ctx, strings.Join(c.Args, " ")) },
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show session state",
		Func: func(_ *ishell.Context) { session.Status() },
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "history",
		Help: "show the conversation",
		Func: func(_ *ishell.Context) { session.History() },
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "health",
		Help: "check the chat service",
		Func: func(_ *ishell.Context) {
			if err := session.CheckHealth(ctx); err != nil {
				logger.Debug("Health check failed", "error", err)
			}
		},
	})

	sh.NotFound(func(c *ishell.Context) {
		if len(c.RawArgs) == 0 {
			return
		}
		session.Send(ctx, strings.Join(c.RawArgs, " "))
	})

	return sh
}

// readCredentials takes the email from the first argument or asks for it, then reads the
// password without echo.
func readCredentials(c *ishell.Context) (string, string) {
	var email string
	if len(c.Args) > 0 {
		email = c.Args[0]
	} else {
		c.Print("Email: ")
		email = c.ReadLine()
	}
	c.Print("Password: ")
	password := c.ReadPassword()
	return strings.TrimSpace(email), password
}
