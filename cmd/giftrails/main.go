package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"giftrails/internal/allowance"
	"giftrails/internal/config"
	"giftrails/internal/fault"
	"giftrails/internal/giftcard"
	"giftrails/internal/mintwatch"
	"giftrails/internal/quote"
	"giftrails/internal/session"
	"giftrails/internal/workflow"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.coordinator.MetricsHandler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.WithFields(logrus.Fields{"error": err}).Warn("metrics listener stopped")
			}
		}()
	}

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.WithFields(logrus.Fields{"retryable": fault.Retryable(err)}).
			Fatalf("%s: %v", os.Args[1], err)
	}
}

type app struct {
	cfg         *config.AppConfig
	log         *logrus.Logger
	session     *session.Session
	backend     *giftcard.Client
	quotes      *quote.Service
	poller      *mintwatch.Poller
	coordinator *workflow.Coordinator
}

func buildApp(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger) (*app, error) {
	var store session.Store
	if cfg.Session.PostgresDSN != "" {
		pg, err := session.NewPostgresStore(ctx, cfg.Session.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		store = pg
	} else {
		store = session.NewFileStore(cfg.Session.StorePath)
	}

	var sess *session.Session
	backend := giftcard.NewClient(cfg.Backend.BaseURL, tokenFunc(func() string { return sess.Token() }), log)
	sess = session.New(store, backend, log)
	if err := sess.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	var chain allowance.Chain = allowance.NewFakeChain()
	if cfg.Chain.PrivateKey != "" {
		ethChain, err := allowance.NewEthClient(ctx, allowance.EthClientConfig{
			RPCURL:         cfg.Chain.RPCURL,
			PrivateKeyHex:  cfg.Chain.PrivateKey,
			TokenAddress:   cfg.Deployment.Contracts.Stablecoin,
			SpenderAddress: cfg.Deployment.Contracts.Marketplace,
		})
		if err != nil {
			return nil, fmt.Errorf("chain client: %w", err)
		}
		chain = ethChain
	}
	if hc, ok := chain.(allowance.HealthChecker); ok {
		if err := hc.Ping(ctx); err != nil {
			return nil, fmt.Errorf("chain rpc unreachable: %w", err)
		}
	}
	auth := allowance.NewAuthorizer(chain, cfg.Chain.AllowanceTimeout, log)

	var spot quote.SpotSource = quote.FixedSpotSource(1)
	if cfg.Backend.SpotPriceURL != "" {
		spot = quote.NewHTTPSpotSource(cfg.Backend.SpotPriceURL)
	}

	return &app{
		cfg:         cfg,
		log:         log,
		session:     sess,
		backend:     backend,
		quotes:      quote.NewService(spot, backend, cfg.Backend.QuoteTimeout, log),
		poller:      mintwatch.NewPoller(backend, cfg.Poll.Interval, cfg.Poll.MaxWait, log),
		coordinator: workflow.NewCoordinator(sess, backend, auth, log),
	}, nil
}

type tokenFunc func() string

func (f tokenFunc) Token() string { return f() }

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "connect":
		return a.cmdConnect(ctx, args)
	case "disconnect":
		return a.session.Disconnect(ctx)
	case "issue":
		return a.cmdIssue(ctx, args)
	case "get":
		return a.cmdGet(ctx, args)
	case "claim":
		return a.cmdClaim(ctx, args)
	case "quote":
		return a.cmdQuote(ctx, args)
	case "mint":
		return a.cmdMint(ctx, args)
	case "status":
		return a.cmdStatus(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) cmdConnect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	address := fs.String("address", "", "wallet address")
	signature := fs.String("signature", "", "ownership signature")
	_ = fs.Parse(args)

	return a.session.Connect(ctx, *address, *signature)
}

func (a *app) cmdIssue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("issue", flag.ExitOnError)
	backgroundID := fs.String("background", "", "background id")
	price := fs.String("price", "", "price in coin units")
	message := fs.String("message", "", "gift message")
	recipient := fs.String("to", "", "recipient wallet address (direct transfer)")
	username := fs.String("username", "", "recipient base username")
	bySecret := fs.Bool("secret", false, "deliver via claim link")
	erc20 := fs.Bool("erc20", false, "pay with the stablecoin")
	amount := fs.String("amount", "", "stablecoin amount in base units")
	approve := fs.Bool("approve", false, "submit an approval if the allowance falls short")
	linkBase := fs.String("link-base", "https://app.giftrails.io", "claim link base URL")
	_ = fs.Parse(args)

	if !a.session.Connected() {
		return fmt.Errorf("connect a wallet first")
	}

	var method workflow.Method
	switch {
	case *recipient != "":
		method = workflow.Direct{RecipientAddress: *recipient}
	case *username != "":
		method = workflow.ByUsername{Username: *username}
	case *bySecret:
		method = workflow.BySecret{}
	}

	payment := workflow.PaymentNative
	var required *big.Int
	if *erc20 {
		payment = workflow.PaymentStablecoin
		parsed, ok := new(big.Int).SetString(*amount, 10)
		if !ok {
			return fmt.Errorf("invalid -amount %q", *amount)
		}
		required = parsed
	}

	issuance := a.coordinator.NewIssuance(*backgroundID, *price)
	defer issuance.Close()

	if err := issuance.ChooseMethod(method); err != nil {
		return err
	}
	err := issuance.ConfirmDetails(ctx, *message, payment, required)
	if err != nil && *approve && fault.KindOf(err) == fault.KindAllowance {
		if apErr := issuance.ApprovePayment(ctx, required); apErr != nil {
			return apErr
		}
		err = issuance.ConfirmDetails(ctx, *message, payment, required)
	}
	if err != nil {
		return err
	}

	outcome, err := issuance.Submit(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("gift card %s issued\n", outcome.GiftCardID)
	if link := outcome.ClaimLink(*linkBase); link != "" {
		fmt.Printf("claim link: %s\n", link)
	}
	if outcome.Warning != "" {
		fmt.Printf("warning: %s\n", outcome.Warning)
	}
	return nil
}

func (a *app) cmdGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	id := fs.String("id", "", "gift card id")
	_ = fs.Parse(args)

	card, err := a.backend.Get(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("gift card %s: %s (price %s, creator %s)\n",
		card.ID, card.Status, card.Price, card.CreatorAddress)
	if card.Message != "" {
		fmt.Printf("message: %s\n", card.Message)
	}
	return nil
}

func (a *app) cmdClaim(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	id := fs.String("id", "", "gift card id")
	secret := fs.String("secret", "", "claim secret")
	_ = fs.Parse(args)

	if !a.session.Connected() {
		return fmt.Errorf("connect a wallet first")
	}
	if err := a.backend.Claim(ctx, *id, *secret, a.session.Address()); err != nil {
		return err
	}
	fmt.Printf("gift card %s claimed\n", *id)
	return nil
}

func (a *app) cmdQuote(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	backgroundID := fs.String("background", "", "background id")
	price := fs.String("price", "", "price in coin units")
	_ = fs.Parse(args)

	q, err := a.quotes.GetQuote(ctx, *backgroundID, *price)
	if err != nil {
		return err
	}
	fmt.Printf("background %s  tax %s  platform %s  total %s (%s fiat)\n",
		q.BackgroundPrice, q.TaxFee, q.PlatformFee, q.Total, q.FiatTotal)
	return nil
}

func (a *app) cmdMint(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	imagePath := fs.String("image", "", "background image file")
	category := fs.String("category", "", "background category")
	price := fs.String("price", "", "listing price")
	_ = fs.Parse(args)

	if !a.session.Connected() {
		return fmt.Errorf("connect a wallet first")
	}

	file, err := os.Open(*imagePath)
	if err != nil {
		return err
	}
	defer file.Close()

	background, err := a.backend.MintBackground(ctx, file, filepath.Base(*imagePath), *category, *price, a.session.Address())
	if err != nil {
		return err
	}
	fmt.Printf("background %s submitted\n", background.ID)

	watch := a.poller.Start(ctx, background.ID)
	defer watch.Stop()

	select {
	case result := <-watch.C:
		if result.Status == giftcard.MintConfirmed {
			fmt.Printf("mint confirmed: %s\n", result.TxHash)
			return nil
		}
		if result.TimedOut {
			return fmt.Errorf("mint not confirmed within %s", a.cfg.Poll.MaxWait)
		}
		return fmt.Errorf("mint failed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) cmdStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	backgroundID := fs.String("background", "", "background id")
	_ = fs.Parse(args)

	status, err := a.backend.MintStatus(ctx, *backgroundID)
	if err != nil {
		return err
	}
	fmt.Printf("background %s: %s", *backgroundID, status.Status)
	if status.Background.TransactionHash != "" {
		fmt.Printf(" (%s)", status.Background.TransactionHash)
	}
	fmt.Println()
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: giftrails <command> [flags]

commands:
  connect     exchange a wallet address + signature for a session
  disconnect  clear the stored session
  issue       create a gift card and deliver it
  get         look up a gift card by id
  claim       redeem a gift card with its secret
  quote       fetch the live price quote for a background
  mint        submit a background mint and wait for confirmation
  status      read the mint status of a background`)
}
