// Package cli implements the petalpilot command line.
package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	otelapi "go.opentelemetry.io/otel"

	"github.com/petal-labs/petalpilot/agent"
	"github.com/petal-labs/petalpilot/builtins"
	"github.com/petal-labs/petalpilot/config"
	"github.com/petal-labs/petalpilot/intent"
	"github.com/petal-labs/petalpilot/llm"
	"github.com/petal-labs/petalpilot/otel"
	"github.com/petal-labs/petalpilot/session"
	"github.com/petal-labs/petalpilot/session/extension"
	"github.com/petal-labs/petalpilot/session/rodhost"
	"github.com/petal-labs/petalpilot/store"
	"github.com/petal-labs/petalpilot/synthesis"
	"github.com/petal-labs/petalpilot/tool"
	"github.com/petal-labs/petalpilot/workflow"
)

// app is the composed application behind every subcommand.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	agent    *agent.Agent
	runner   *agent.Runner
	registry *tool.Registry
	tracker  *intent.Tracker
	vars     *workflow.Context
	store    *store.Store
	quota    *llm.QuotaTracker

	shutdown []func()
}

// buildApp assembles the full stack from configuration.
func buildApp(ctx context.Context, configPath string, verbose bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, exitError(exitValidation, "%v", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a := &app{cfg: cfg, log: log}

	host, err := a.buildHost()
	if err != nil {
		return nil, err
	}
	controller := session.NewController(host, session.WithLogger(log))
	synth := synthesis.New(controller,
		synthesis.WithLogger(log),
		synthesis.WithCollectTimeout(cfg.Timeouts.CollectDuration()),
	)

	client, err := a.buildClient()
	if err != nil {
		return nil, err
	}

	registryOpts := []tool.RegistryOption{tool.WithLogger(log)}
	if d := cfg.Timeouts.ToolExecuteDuration(); d > 0 {
		registryOpts = append(registryOpts, tool.WithExecuteTimeout(d))
	}
	if observer, obsErr := otel.NewDispatchObserver(
		otelapi.GetMeterProvider().Meter("petalpilot/tool"),
		otelapi.GetTracerProvider().Tracer("petalpilot/tool"),
	); obsErr == nil {
		registryOpts = append(registryOpts, tool.WithObserver(observer))
	}
	registry := tool.NewRegistry(registryOpts...)

	builtins.RegisterAll(registry, builtins.Deps{
		Sessions: controller,
		Synth:    synth,
		LLM:      client,
		Locale:   cfg.Locale,
	})

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	tracker := intent.NewTracker(intent.WithLogger(log))
	vars := workflow.NewContext()
	if st != nil {
		if saved, loadErr := st.LoadVariables(ctx); loadErr == nil {
			vars.Import(saved)
		} else {
			log.Warn("variable restore failed", "error", loadErr)
		}
	}

	a.agent = agent.New(tracker, registry, vars, client, agent.WithLogger(log))
	a.runner = agent.NewRunner(registry, vars, log)
	a.registry = registry
	a.tracker = tracker
	a.vars = vars
	return a, nil
}

func (a *app) buildHost() (session.Host, error) {
	switch a.cfg.Browser.Host {
	case "extension":
		host := extension.NewHost(a.log)
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", host.Handler)
		server := &http.Server{Addr: a.cfg.Browser.ListenAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error("extension listener failed", "error", err)
			}
		}()
		a.shutdown = append(a.shutdown, func() { _ = server.Close() })
		a.log.Info("waiting for extension", "addr", a.cfg.Browser.ListenAddr)
		return host, nil
	default:
		host, err := rodhost.New(rodhost.Options{
			Headless: a.cfg.Browser.Headless,
			Logger:   a.log,
		})
		if err != nil {
			return nil, exitError(exitRuntime, "starting browser: %v", err)
		}
		a.shutdown = append(a.shutdown, func() { _ = host.Shutdown() })
		return host, nil
	}
}

func (a *app) buildClient() (llm.Client, error) {
	client, err := llm.NewIrisClient(a.cfg.Provider.Name, a.cfg.Provider.APIKey, a.cfg.Provider.Model)
	if err != nil {
		return nil, exitError(exitValidation, "provider: %v", err)
	}
	if a.cfg.Quota.DailyLimit <= 0 {
		return client, nil
	}

	a.quota = llm.NewQuotaTracker(a.cfg.Quota.DailyLimit, a.log)
	a.quota.Start()
	a.shutdown = append(a.shutdown, a.quota.Stop)
	return llm.NewMeteredClient(client, a.quota, "petalpilot"), nil
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	var (
		st  *store.Store
		err error
	)
	if a.cfg.Store.Path != "" {
		st, err = store.Open(a.cfg.Store.Path)
	} else {
		st, err = store.OpenDefault()
	}
	if err != nil {
		return nil, exitError(exitRuntime, "opening store: %v", err)
	}
	a.store = st
	a.shutdown = append(a.shutdown, func() { _ = st.Close() })
	return st, nil
}

// close runs shutdown hooks in reverse registration order, persisting the
// workflow variables first.
func (a *app) close(ctx context.Context) {
	if a.store != nil && a.vars != nil {
		if err := a.store.SaveVariables(ctx, a.vars.Export()); err != nil {
			a.log.Warn("variable persist failed", "error", err)
		}
	}
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		a.shutdown[i]()
	}
}
