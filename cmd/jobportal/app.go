package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/credentials"
	"github.com/jrsteele09/go-jobportal-client/credentials/filestore"
	"github.com/jrsteele09/go-jobportal-client/credentials/memstore"
	"github.com/jrsteele09/go-jobportal-client/credentials/redisstore"
	"github.com/jrsteele09/go-jobportal-client/dialog"
	"github.com/jrsteele09/go-jobportal-client/internal/config"
	"github.com/jrsteele09/go-jobportal-client/internal/metrics"
	"github.com/jrsteele09/go-jobportal-client/push"
	"github.com/jrsteele09/go-jobportal-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// app wires the SDK together the way a mobile shell would.
type app struct {
	cfg        config.Config
	out        io.Writer
	store      credentials.Store
	closeStore func() error
	client     *apiclient.Client
	metrics    *metrics.Metrics
	registrar  *push.Registrar
	session    *session.Controller
	dialogs    *dialog.Presenter
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer) (*app, error) {
	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := apiclient.New(cfg.GetAPIBaseURL(), apiclient.StoreTokenSource{Store: store},
		apiclient.WithTimeout(cfg.GetHTTPTimeout()),
		apiclient.WithUserAgent(fmt.Sprintf("jobportal-cli/%s", Version)),
	)
	if err != nil {
		_ = closeStore()
		return nil, errors.Wrap(err, "[newApp] apiclient.New")
	}

	m := metrics.New()
	registrar := push.NewRegistrar(client, push.StaticToken{Token: cfg.GetPushToken()},
		push.WithDelays(cfg.GetPushRetryDelays()...),
		push.WithMetrics(m),
	)

	dialogs := dialog.NewPresenter()
	dialogs.Subscribe(func(r *dialog.Request) {
		if r != nil {
			fmt.Fprintf(out, "\n[%s] %s\n", r.Title, r.Message)
		}
	})

	controller, err := session.NewController(session.Deps{
		API:   client,
		Store: store,
		Push:  registrar,
		Navigator: session.NavigatorFunc(func() {
			log.Debug().Msg("returned to login")
		}),
	}, session.WithMetrics(m))
	if err != nil {
		_ = closeStore()
		return nil, errors.Wrap(err, "[newApp] session.NewController")
	}

	return &app{
		cfg:        cfg,
		out:        out,
		store:      store,
		closeStore: closeStore,
		client:     client,
		metrics:    m,
		registrar:  registrar,
		session:    controller,
		dialogs:    dialogs,
	}, nil
}

func newStore(ctx context.Context, cfg config.Config) (credentials.Store, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.GetCredentialStore() {
	case config.StoreMemory:
		return memstore.New(), noClose, nil
	case config.StoreRedis:
		rs, err := redisstore.New(ctx, &redisstore.Config{
			Addr:      cfg.GetRedisAddr(),
			Password:  cfg.GetRedisPassword(),
			DB:        cfg.GetRedisDB(),
			Namespace: cfg.GetEnv(),
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "[newStore] redisstore.New")
		}
		return rs, rs.Close, nil
	default:
		fs, err := filestore.New(cfg.GetDataFolder(), cfg.GetCredentialKey())
		if err != nil {
			return nil, nil, errors.Wrap(err, "[newStore] filestore.New")
		}
		return fs, noClose, nil
	}
}

// resume restores the stored session and fails if nobody is signed in.
func (a *app) resume(ctx context.Context) error {
	a.session.Init(ctx)
	if !a.session.IsAuthenticated() {
		return errors.New("not logged in, run `jobportal login` first")
	}
	return nil
}

// report shows a failed operation the way the app would, as a dialog.
func (a *app) report(title string, res session.Result) error {
	if res.Success {
		return nil
	}
	if req, ok := dialog.FromError(title, res.Err); ok {
		a.dialogs.Show(req)
	}
	return errors.New(res.Error)
}

func (a *app) reportErr(title string, err error) error {
	if err == nil {
		return nil
	}
	if req, ok := dialog.FromError(title, err); ok {
		a.dialogs.Show(req)
	}
	return err
}

func (a *app) Close() {
	a.session.Close()
	if err := a.closeStore(); err != nil {
		log.Warn().Err(err).Msg("closing credential store")
	}
}
