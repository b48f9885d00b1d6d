// Package app wires the reminder daemon together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"remindd/internal/config"
	"remindd/internal/eventbus"
	"remindd/internal/gateway"
	"remindd/internal/httpapi"
	"remindd/internal/lifecycle"
	"remindd/internal/localnotify"
	"remindd/internal/metrics"
	"remindd/internal/notifier"
	"remindd/internal/reminder"
	rtsup "remindd/internal/runtime/supervisor"
	"remindd/internal/scheduler"
	"remindd/internal/storage"
	"remindd/internal/transport"
	logx "remindd/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	reg   *prometheus.Registry

	sender   transport.Sender
	notif    *notifier.Service
	facility *localnotify.Facility
	gw       *gateway.Gateway
	hooks    *lifecycle.Hooks
	sched    *scheduler.Service
	http     *httpapi.Server
}

type options struct {
	out io.Writer
}

type Option func(*options)

// WithOutput redirects the console transport (default stdout).
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{out: os.Stdout}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath, logx.Nop())
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, root := logx.New(mapLogging(cfg))
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	bus := eventbus.New()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNew(reg)

	sc := mapStorage(cfg)
	store, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	sender, err := buildSender(cfg, o.out, root)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("transport: %w", err)
	}

	notif := notifier.New(mapNotifier(cfg), sender, root.With(logx.String("comp", "notifier")), bus, m)
	facility := localnotify.New(mapFacility(cfg), store, notif, root.With(logx.String("comp", "facility")), bus, m)
	gw := gateway.New(facility, cfg.Reminders.IsNative(),
		gateway.WithLogger(root.With(logx.String("comp", "gateway"))),
		gateway.WithBus(bus),
		gateway.WithMetrics(m),
	)

	hookOpts := []lifecycle.Option{
		lifecycle.WithLogger(root.With(logx.String("comp", "lifecycle"))),
		lifecycle.WithBus(bus),
		lifecycle.WithMetrics(m),
	}
	if store != nil {
		hookOpts = append(hookOpts, lifecycle.WithAudit(store))
	}
	hooks := lifecycle.New(reminder.Engine{Location: config.Location(cfg.Reminders.Timezone)}, gw, hookOpts...)

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		reg:      reg,
		sender:   sender,
		notif:    notif,
		facility: facility,
		gw:       gw,
		hooks:    hooks,
		sched:    scheduler.New(mapScheduler(cfg), root.With(logx.String("comp", "scheduler"))),
	}
	a.registerJobs(cfg)
	a.http = httpapi.New(mapHTTP(cfg), httpapi.Deps{
		Hooks:      hooks,
		Reminders:  gw,
		Deliveries: notif.Snapshot,
		Health:     a.health,
		Gatherer:   reg,
	}, root.With(logx.String("comp", "http")))
	return a, nil
}

func (a *App) Hooks() *lifecycle.Hooks   { return a.hooks }
func (a *App) Gateway() *gateway.Gateway { return a.gw }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start brings components up in dependency order: delivery before the
// facility restores timers, the gateway before the API accepts events.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.notif.Start(runCtx)
	if err := a.facility.Start(runCtx); err != nil {
		return err
	}
	perm := a.gw.CheckAndRequestPermission(runCtx)
	a.log.Info("notification permission", logx.String("state", string(perm)), logx.Bool("native", a.gw.Native()))

	a.sched.Start(runCtx)
	if err := a.http.Start(runCtx); err != nil {
		return fmt.Errorf("http api: %w", err)
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.String("sender", a.sender.Name()))
	return nil
}

func (a *App) health() map[string]any {
	out := map[string]any{
		"native":    a.gw.Native(),
		"scheduler": a.sched.Snapshot(),
	}
	if a.sup != nil {
		out["supervisor"] = a.sup.Snapshot()
	}
	if sup := a.notif.Supervisor(); sup != nil {
		out["notifier"] = sup.Snapshot()
	}
	return out
}

// Stop shuts components down in reverse order. Each step is bounded so one
// stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	a.step(ctx, "http", 3*time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "facility", time.Second, func(context.Context) error { a.facility.Stop(); return nil })
	a.step(ctx, "notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	// never extend the caller's deadline
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < max {
		max = time.Until(dl)
	}
	if max <= 0 {
		a.log.Warn("stop step skipped, no time left", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
