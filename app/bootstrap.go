package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Elyes-Bali/UniProfs-UI/app/config"
	"github.com/Elyes-Bali/UniProfs-UI/app/entitlement"
	"github.com/Elyes-Bali/UniProfs-UI/app/extract"
	"github.com/Elyes-Bali/UniProfs-UI/app/llm"
	"github.com/Elyes-Bali/UniProfs-UI/app/mail"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
	"github.com/Elyes-Bali/UniProfs-UI/app/store"
	"github.com/Elyes-Bali/UniProfs-UI/app/study"
	"github.com/Elyes-Bali/UniProfs-UI/app/subscription"
	"github.com/Elyes-Bali/UniProfs-UI/auth"
)

// Build assembles a Server from configuration. The returned cleanup
// releases connections and background workers.
func Build(ctx context.Context, cfg *config.Config) (*Server, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Server, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	disableAuth := auth.AuthDisabled()

	accounts, closeAccounts, err := openAccounts(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeAccounts)

	sessions, locker, closeStudy, err := openStudyStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStudy)

	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set; study sessions will fail")
	}
	generator := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.Timeout)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if !disableAuth {
			return fail(errors.New("AUTH_JWT_SECRET must be set"))
		}
		secret, err = resetToken()
		if err != nil {
			return fail(err)
		}
		log.Warn().Msg("AUTH_JWT_SECRET not set; using an ephemeral secret")
	}
	issuer, err := auth.NewIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fail(err)
	}
	verifier, err := auth.NewVerifier(auth.VerifierOptions{
		Secret:   secret,
		JWKSURL:  cfg.Auth.JWKSURL,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return fail(err)
	}

	reconciler, err := openReconciler(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	var mailer mail.Mailer = mail.NewLogMailer()
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			Sender:   cfg.SMTP.Sender,
		})
	}

	var checkout CheckoutCreator
	if cfg.Stripe.SecretKey != "" {
		InitStripe(cfg.Stripe.SecretKey)
		checkout = StripeCheckout{}
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set; checkout disabled")
	}

	studyPlan := models.Plan("")
	if cfg.Study.RequiredPlan != "" {
		plan, ok := models.ParsePlan(cfg.Study.RequiredPlan)
		if !ok {
			return fail(fmt.Errorf("STUDY_REQUIRED_PLAN: unknown plan %q", cfg.Study.RequiredPlan))
		}
		studyPlan = plan
	}

	if disableAuth {
		if err := seedLocalAccount(ctx, accounts); err != nil {
			return fail(err)
		}
	}

	srv := NewServer(Deps{
		Accounts:   accounts,
		Study:      study.NewController(sessions, generator, locker),
		Lifecycle:  subscription.NewLifecycle(accounts, cfg.Subscription.Period()),
		Reconciler: reconciler,
		Documents:  extract.NewRunner(cfg.Extract.PythonBin, cfg.Extract.ScriptsDir, cfg.Extract.Timeout),
		Mailer:     mailer,
		Issuer:     issuer,
		Verifier:   verifier,
		Checkout:   checkout,

		Policy: entitlement.Policy{FreeLimit: cfg.Usage.FreeLimit},
		Prices: subscription.Prices{
			models.PlanPremium:    cfg.Subscription.PremiumPrice,
			models.PlanPremiumPro: cfg.Subscription.PremiumProPrice,
		},
		Currency:      cfg.Subscription.Currency,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		ClientURL:     cfg.Server.ClientURL,
		CORSOrigins:   cfg.Server.CORSOrigins,
		CookieSecure:  cfg.Auth.CookieSecure,
		DisableAuth:   disableAuth,
		MaxUpload:     cfg.Extract.MaxUpload,
		StudyPlan:     studyPlan,
	})
	return srv, cleanup, nil
}

func openAccounts(ctx context.Context, cfg *config.Config) (store.AccountStore, func(), error) {
	if cfg.DB.URL == "" {
		log.Warn().Msg("DATABASE_URL not set; accounts are kept in memory")
		return store.NewMemory(), func() {}, nil
	}
	db, err := store.Open(ctx, cfg.DB.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info().Msg("connected to Postgres")
	return store.NewPostgres(db), func() { _ = db.Close() }, nil
}

func openStudyStore(ctx context.Context, cfg *config.Config) (study.SessionStore, study.Locker, func(), error) {
	if cfg.Redis.URL == "" {
		sessions := study.NewMemoryStore(cfg.Study.SessionTTL)
		return sessions, study.NewKeyedMutex(), sessions.Close, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	rs := redsync.New(goredis.NewPool(rdb))
	// A turn holds the lock for at most one generation call.
	lease := cfg.LLM.Timeout + cfg.LLM.Timeout/2
	if lease <= 0 {
		lease = 90 * time.Second
	}
	locker := study.NewRedsyncLocker(rs, lease)
	log.Info().Msg("connected to Redis")
	return study.NewRedisStore(rdb, cfg.Study.SessionTTL), locker, func() { _ = rdb.Close() }, nil
}

func openReconciler(ctx context.Context, cfg *config.Config) (subscription.Reconciler, error) {
	logSink := subscription.NewLogReconciler()
	if cfg.Reconcile.QueueURL == "" {
		return logSink, nil
	}
	queue, err := subscription.NewSQSReconcilerFromEnv(ctx, cfg.Reconcile.QueueURL)
	if err != nil {
		return nil, err
	}
	return subscription.MultiReconciler{logSink, queue}, nil
}

// seedLocalAccount makes sure the identity injected with auth disabled
// resolves to an account.
func seedLocalAccount(ctx context.Context, accounts store.AccountStore) error {
	_, err := accounts.FindByID(ctx, auth.LocalDevSubject)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	err = accounts.Create(ctx, &models.Account{
		ID:          auth.LocalDevSubject,
		Email:       "local@localhost",
		DisplayName: "Local Developer",
		Role:        models.RoleAdmin,
		Verified:    true,
	})
	if err != nil && !errors.Is(err, store.ErrEmailTaken) {
		return fmt.Errorf("seed local account: %w", err)
	}
	return nil
}
