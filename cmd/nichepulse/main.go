// Package main implements the NichePulse dashboard CLI: login, keyword
// browsing, credit-gated unlocks and checkout redirects against the remote
// service.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/nichepulse/nichepulse-go/internal/api"
	"github.com/nichepulse/nichepulse-go/internal/billing"
	"github.com/nichepulse/nichepulse-go/internal/config"
	"github.com/nichepulse/nichepulse-go/internal/identity"
	"github.com/nichepulse/nichepulse-go/internal/keywords"
	"github.com/nichepulse/nichepulse-go/internal/logging"
	"github.com/nichepulse/nichepulse-go/internal/session"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: nichepulse <command> [flags]

Commands:
  login       Log in (prints the OAuth URL, or use -code / -email flags)
  send-code   Email a verification code to an address
  me          Show the current user
  keywords    List one page of keywords
  live        Show the live feed
  unlock      Spend one credit to reveal a locked keyword
  checkout    Create a checkout session for a plan
  plans       List available plans
  logout      Clear the local session
`)
	os.Exit(2)
}

type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    *identity.Store
	client   *api.Client
	session  *session.Manager
	keywords *keywords.Service
	billing  *billing.Service
}

func newApp() *app {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New("nichepulse", cfg.LogLevel, cfg.LogFormat)

	storage, err := identity.NewFileStorage(cfg.StateDir)
	if err != nil {
		log.Fatalf("Failed to open state directory: %v", err)
	}
	store := identity.NewStore(storage, cfg.AppName)

	interceptor := &api.Interceptor{
		Store:  store,
		Logger: logger,
	}
	client, err := api.New(api.Config{
		BaseURL:     cfg.BaseURL,
		TokenSource: store.Token,
		Interceptor: interceptor,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("Failed to create API client: %v", err)
	}

	sess := session.New(session.Config{
		Store:        store,
		Client:       client,
		Logger:       logger,
		OAuthTimeout: cfg.OAuthTimeout,
	})
	interceptor.OnUnauthorized = sess.HandleUnauthorized
	interceptor.OnUserUpdate = sess.HandleUserUpdate

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		client:  client,
		session: sess,
		keywords: keywords.NewService(keywords.Config{
			Client:       client,
			Logger:       logger,
			PageSize:     cfg.PageSize,
			PageCacheTTL: cfg.PageCacheTTL,
			LiveCacheTTL: cfg.LiveCacheTTL,
		}),
		billing: billing.NewService(client, logger),
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := newApp()
	a.session.Start(ctx)

	var err error
	switch os.Args[1] {
	case "login":
		err = a.cmdLogin(ctx, os.Args[2:])
	case "send-code":
		err = a.cmdSendCode(ctx, os.Args[2:])
	case "me":
		err = a.cmdMe(ctx)
	case "keywords":
		err = a.cmdKeywords(ctx, os.Args[2:])
	case "live":
		err = a.cmdLive(ctx)
	case "unlock":
		err = a.cmdUnlock(ctx, os.Args[2:])
	case "checkout":
		err = a.cmdCheckout(ctx, os.Args[2:])
	case "plans":
		err = a.cmdPlans()
	case "logout":
		err = a.cmdLogout()
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	code := fs.String("code", "", "One-time login code")
	email := fs.String("email", "", "Email address (with -code: emailed verification code)")
	fs.Parse(args)

	switch {
	case *email != "" && *code != "":
		if err := a.session.LoginWithEmail(ctx, *email, *code); err != nil {
			return err
		}
	case *code != "":
		if err := a.session.LoginWithCode(ctx, *code); err != nil {
			return err
		}
	default:
		url, err := a.session.BeginOAuth(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Open this URL to log in:\n  %s\n\nThen run: nichepulse login -code <code>\n", url)
		return nil
	}

	user := a.session.User()
	fmt.Printf("Logged in as %s (%s, %d credits)\n", user.Email, user.MembershipLevel, user.Credits)
	return nil
}

func (a *app) cmdSendCode(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send-code", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	fs.Parse(args)
	if *email == "" {
		return fmt.Errorf("-email is required")
	}

	if err := a.session.SendVerificationCode(ctx, *email); err != nil {
		return err
	}
	fmt.Printf("Verification code sent to %s\n", *email)
	return nil
}

func (a *app) cmdMe(ctx context.Context) error {
	if !a.session.IsAuthenticated() {
		fmt.Println("Not logged in")
		return nil
	}
	if err := a.session.Refresh(ctx, true); err != nil {
		return err
	}
	user := a.session.User()
	if user == nil {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Printf("Email:      %s\n", user.Email)
	fmt.Printf("Membership: %s\n", user.MembershipLevel)
	fmt.Printf("Credits:    %d\n", user.Credits)
	fmt.Printf("Referral:   %s\n", user.ReferralCode)
	return nil
}

func (a *app) cmdKeywords(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("keywords", flag.ExitOnError)
	page := fs.Int("page", 0, "Page index (zero-based)")
	fs.Parse(args)

	items, err := a.keywords.List(ctx, *page)
	if err != nil {
		return err
	}
	printKeywords(items)
	return nil
}

func (a *app) cmdLive(ctx context.Context) error {
	items, err := a.keywords.Live(ctx)
	if err != nil {
		return err
	}
	printKeywords(items)
	return nil
}

func (a *app) cmdUnlock(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: nichepulse unlock <keyword-id>")
	}
	id := args[0]

	item := keywords.Keyword{ID: id, IsLocked: true}
	flow := a.keywords.NewUnlockFlow(a.session, &item)

	switch flow.Begin() {
	case keywords.UnlockAnonymousGate:
		return fmt.Errorf("log in first: unlocking spends a credit from your account")
	case keywords.UnlockConfirmGate:
		cost, balance := flow.Cost()
		fmt.Printf("Unlocking %s costs %d credit (you have %d). Continue? [y/N] ", id, cost, balance)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			fmt.Println("Cancelled")
			return nil
		}
	default:
		return fmt.Errorf("keyword %s is not locked", id)
	}

	if err := flow.Confirm(ctx); err != nil {
		return err
	}

	fmt.Printf("Unlocked %q\n", item.Term)
	printKeywords([]keywords.Keyword{item})
	if user := a.session.User(); user != nil {
		fmt.Printf("Credits remaining: %d\n", user.Credits)
	}
	return nil
}

func (a *app) cmdCheckout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	planID := fs.String("plan", "", "Plan ID (see: nichepulse plans)")
	fs.Parse(args)

	plan, ok := billing.PlanByID(*planID)
	if !ok {
		return fmt.Errorf("unknown plan %q", *planID)
	}
	url, err := a.billing.CheckoutURL(ctx, plan)
	if err != nil {
		return err
	}
	fmt.Printf("Open this URL to complete checkout:\n  %s\n", url)
	return nil
}

func (a *app) cmdPlans() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tINTERVAL")
	for _, p := range billing.Plans {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Interval)
	}
	return w.Flush()
}

func (a *app) cmdLogout() error {
	if err := a.session.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func printKeywords(items []keywords.Keyword) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTERM\tGROWTH\tVOLUME\tPROFIT\tCATEGORY")
	for _, k := range items {
		if k.IsLocked {
			fmt.Fprintf(w, "%s\t[locked] %s\t-\t-\t-\t%s\n", k.ID, k.Highlight, k.Category)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%d\t$%.0f\t%s\n", k.ID, k.Term, k.Growth, k.Volume, k.ProfitEstimate, k.Category)
	}
	w.Flush()
}
