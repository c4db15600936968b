package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/chat"
	"github.com/jrsteele09/go-jobportal-client/internal/utils"
	"github.com/jrsteele09/go-jobportal-client/notifications"
	"github.com/jrsteele09/go-jobportal-client/realtime"
	"github.com/jrsteele09/go-jobportal-client/session"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/spf13/cobra"
)

func loginCmd(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.report("Login Failed", a.session.Login(ctx, email, password)); err != nil {
					return err
				}
				u := a.session.User()
				fmt.Fprintf(a.out, "Logged in as %s (%s)\n", u.FullName(), u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	return cmd
}

func registerCmd(opts *options) *cobra.Command {
	var payload session.RegisterPayload
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload.Role = users.RoleType(strings.ToUpper(role))
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.report("Registration Failed", a.session.Register(ctx, payload)); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Welcome, %s\n", a.session.User().FullName())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&payload.Email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&payload.Password, "password", "p", "", "Password (8+ chars, mixed case, a digit)")
	cmd.Flags().StringVar(&payload.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&payload.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&payload.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&role, "role", string(users.RoleCandidate), "CANDIDATE or EMPLOYER")
	return cmd
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				a.session.Init(ctx)
				a.session.Logout(ctx)
				fmt.Fprintln(a.out, "Logged out")
				return nil
			})
		},
	}
}

func whoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.resume(ctx); err != nil {
					return err
				}
				u := a.session.User()
				w := tabwriter.NewWriter(a.out, 0, 2, 2, ' ', 0)
				fmt.Fprintf(w, "ID\t%s\n", u.ID)
				fmt.Fprintf(w, "Name\t%s\n", u.FullName())
				fmt.Fprintf(w, "Email\t%s\n", u.Email)
				fmt.Fprintf(w, "Role\t%s\n", u.Role)
				fmt.Fprintf(w, "Phone\t%s\n", utils.Value(u.Phone))
				return w.Flush()
			})
		},
	}
}

func forgotPasswordCmd(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a one time code for resetting the password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.report("Reset Failed", a.session.ForgotPassword(ctx, email)); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "If the account exists a code has been sent")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	return cmd
}

func resetPasswordCmd(opts *options) *cobra.Command {
	var email, otp, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password using the emailed code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				resetToken, res := a.session.VerifyOTP(ctx, email, otp)
				if err := a.report("Invalid Code", res); err != nil {
					return err
				}
				res = a.session.ResetPassword(ctx, apiclient.ResetPasswordRequest{Email: email, ResetToken: resetToken, NewPassword: password})
				if err := a.report("Reset Failed", res); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Password updated, you can log in now")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVar(&otp, "otp", "", "Code from the email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "New password")
	return cmd
}

func jobsCmd(opts *options) *cobra.Command {
	var q apiclient.JobQuery
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Search job listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.resume(ctx); err != nil {
					return err
				}
				page, err := a.client.ListJobs(ctx, q)
				if err != nil {
					return a.reportErr("Jobs", err)
				}
				w := tabwriter.NewWriter(a.out, 0, 2, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tCOMPANY\tLOCATION\tTYPE")
				for _, j := range page.Jobs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Title, j.Company, j.Location, j.Type)
				}
				fmt.Fprintf(w, "\npage %d, %d of %d jobs\n", page.Page, len(page.Jobs), page.Total)
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&q.Search, "search", "s", "", "Free text search")
	cmd.Flags().StringVarP(&q.Location, "location", "l", "", "Location filter")
	cmd.Flags().IntVar(&q.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&q.Limit, "limit", 10, "Jobs per page")
	return cmd
}

func applyCmd(opts *options) *cobra.Command {
	var coverLetter string
	cmd := &cobra.Command{
		Use:   "apply JOB_ID",
		Short: "Apply to a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.resume(ctx); err != nil {
					return err
				}
				application, err := a.client.ApplyToJob(ctx, args[0], coverLetter)
				if err != nil {
					return a.reportErr("Application Failed", err)
				}
				fmt.Fprintf(a.out, "Application %s is %s\n", application.ID, application.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&coverLetter, "cover-letter", "", "Cover letter text")
	return cmd
}

func notificationsCmd(opts *options) *cobra.Command {
	var limit int
	var markAll bool
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.resume(ctx); err != nil {
					return err
				}
				center := notifications.NewCenter(a.client, realtime.NewNotifier(apiclient.RealtimeConfig{}),
					notifications.WithPollInterval(0),
					notifications.WithFallbackLimit(a.cfg.GetUnreadFallbackLimit()),
				)
				defer center.Close()
				center.Start(ctx, a.session.User().ID)

				items, err := center.Load(ctx, limit)
				if err != nil {
					return a.reportErr("Notifications", err)
				}
				if markAll {
					if err := center.MarkAllRead(ctx); err != nil {
						return a.reportErr("Notifications", err)
					}
				}
				for _, n := range items {
					marker := " "
					if !n.IsRead {
						marker = "*"
					}
					fmt.Fprintf(a.out, "%s %s  %s: %s\n", marker, n.CreatedAt.Format("2006-01-02 15:04"), n.Title, n.Message)
				}
				fmt.Fprintf(a.out, "%d unread\n", center.UnreadCount())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "How many notifications to show")
	cmd.Flags().BoolVar(&markAll, "mark-all-read", false, "Mark every notification as read")
	return cmd
}

func chatCmd(opts *options) *cobra.Command {
	var send string
	var follow bool
	cmd := &cobra.Command{
		Use:   "chat CHAT_ID",
		Short: "Show a conversation, optionally sending a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.resume(ctx); err != nil {
					return err
				}
				notifier := realtime.FromAPI(ctx, a.client, realtime.WithMetrics(a.metrics))
				defer notifier.Close()

				room, err := chat.Open(ctx, a.client, notifier, args[0])
				if err != nil {
					return a.reportErr("Chat", err)
				}
				defer room.Close()

				me := a.session.User().ID
				printMessage := func(m apiclient.Message) {
					who := m.SenderID
					if who == me {
						who = "me"
					}
					fmt.Fprintf(a.out, "[%s] %s: %s\n", m.CreatedAt.Format("15:04"), who, m.Content)
				}
				for _, m := range room.Messages() {
					printMessage(m)
				}
				if send != "" {
					m, err := room.Send(ctx, send)
					if err != nil {
						return a.reportErr("Message Not Sent", err)
					}
					printMessage(m)
				}
				if !follow {
					return nil
				}
				room.Subscribe(printMessage)
				waitForStopSignal(ctx)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&send, "send", "", "Message to send")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new messages until interrupted")
	return cmd
}
