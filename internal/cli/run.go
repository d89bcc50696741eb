package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/featureplus/internal/config"
	"github.com/randalmurphal/featureplus/internal/coordinator"
	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/events"
	"github.com/randalmurphal/featureplus/internal/metrics"
	"github.com/randalmurphal/featureplus/internal/session"
)

// closeTimeout bounds how long a command waits for unconfirmed changes
// before giving up on them.
const closeTimeout = 30 * time.Second

// runner is what a command body gets once the session is open.
type runner struct {
	ctx     context.Context
	cfg     *config.Config
	sess    *session.Session
	project string
	out     io.Writer
	styles  styles
}

// loadConfig merges the config layers, then the --config file and the
// --project flag through viper.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	tc, err := config.LoadWithSources()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("FEATUREPLUS")
	v.AutomaticEnv()
	if f := cmd.Flags().Lookup("project"); f != nil {
		if err := v.BindPFlag("project", f); err != nil {
			return nil, fmt.Errorf("bind --project: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.ErrConfigInvalid("--config", err.Error())
		}
		if err := config.MergeFile(tc, v.ConfigFileUsed(), config.SourceFile); err != nil {
			return nil, errors.ErrConfigInvalid("--config", err.Error())
		}
		// environment still wins over an explicit file
		config.ApplyEnvVars(tc)
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
		}
	}
	if p := v.GetString("project"); p != "" {
		tc.Config.Session.ProjectID = p
	}

	if err := tc.Config.Validate(); err != nil {
		return nil, err
	}
	return tc.Config, nil
}

// newLogger returns a text logger on w. -v and -q override the configured
// level.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel()
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withSession opens a session, hydrates the selected project when
// needProject is set, runs fn, waits for every change to be confirmed and
// closes the session. With --metrics the sync counters are printed to
// stderr once the changes are resolved.
func withSession(cmd *cobra.Command, needProject bool, fn func(ctx context.Context, r *runner) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	gw, closer, err := session.OpenGateway(ctx, cfg.Gateway, logger)
	if err != nil {
		return err
	}
	pub := events.NewCLIPublisher(cmd.ErrOrStderr(),
		events.WithInnerPublisher(events.NewMemoryPublisher(events.WithBufferSize(cfg.Session.EventBuffer))),
		events.WithVerbose(verbose),
	)
	reg := prometheus.NewRegistry()
	sess, err := session.Open(cfg, gw, logger,
		session.WithCloser(closer),
		session.WithPublisher(pub),
		session.WithRegisterer(reg),
	)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := sess.Close(closeCtx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	r := &runner{
		ctx:     ctx,
		cfg:     cfg,
		sess:    sess,
		project: cfg.Session.ProjectID,
		out:     cmd.OutOrStdout(),
		styles:  newStyles(cmd.OutOrStdout()),
	}
	if needProject {
		if r.project == "" {
			return errors.ErrValidation("project", "no project selected; pass --project or set session.project_id")
		}
		if err := sess.Hydrate(ctx, r.project); err != nil {
			return err
		}
	}
	err = fn(ctx, r)
	if err == nil {
		err = sess.Wait(ctx)
	}
	if metricsOut {
		if merr := metrics.WriteText(cmd.ErrOrStderr(), reg); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

// await takes a submission's results and blocks until the change is
// confirmed or rolled back.
func (r *runner) await(h *coordinator.Handle, err error) (entity.Entity, error) {
	if err != nil {
		return nil, err
	}
	return h.Wait(r.ctx)
}

// feature returns a cached feature of the hydrated project.
func (r *runner) feature(id string) (*entity.Feature, error) {
	id = r.sess.Coordinator.Resolve(entity.FeatureKey(id)).ID
	f, ok := r.sess.Store.Feature(id)
	if !ok {
		return nil, errors.ErrNotFound(entity.FeatureKey(id).String())
	}
	return f, nil
}

// done prints a one-line confirmation, or the record as JSON.
func (r *runner) done(verb string, e entity.Entity, key entity.Key) error {
	if jsonOut {
		if e == nil {
			return printJSON(r.out, map[string]string{"deleted": key.String()})
		}
		return printJSON(r.out, e)
	}
	fmt.Fprintf(r.out, "%s %s %s\n", r.styles.paint(r.styles.ok, verb), key.Kind, key.ID)
	return nil
}
