package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	orderfsm "github.com/goliatone/go-orderfsm"
	"github.com/goliatone/go-orderfsm/cron"
	"github.com/goliatone/go-orderfsm/fsm"
	"github.com/goliatone/go-orderfsm/orders"
)

type tableRow struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
	Event  string `yaml:"event"`
	Guard  string `yaml:"guard,omitempty"`
	Target string `yaml:"target"`
	Action string `yaml:"action,omitempty"`
}

type tableCmd struct {
	Format string `help:"Output format." enum:"text,yaml" default:"text"`
	Check  bool   `help:"Validate the table and report the result only."`
}

func (c *tableCmd) CLIHandler() any { return c }

func (c *tableCmd) CLIOptions() CLIConfig {
	return CLIConfig{Name: "table", Description: "Print the order transition table.", Group: "inspect"}
}

func (c *tableCmd) Run(s *streams) error {
	table := fsm.DefaultTable()
	if c.Check {
		if err := table.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "table ok: %d transitions\n", len(table.Transitions()))
		return nil
	}

	rows := make([]tableRow, 0, len(table.Transitions()))
	for _, tr := range table.Transitions() {
		rows = append(rows, tableRow{
			ID:     tr.ID,
			Source: tr.Source.String(),
			Event:  tr.Event.String(),
			Guard:  tr.GuardName,
			Target: tr.TargetName(),
			Action: tr.ActionName,
		})
	}

	if c.Format == "yaml" {
		enc := yaml.NewEncoder(s.out)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"transitions": rows}); err != nil {
			return err
		}
		return enc.Close()
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tEVENT\tGUARD\tTARGET\tACTION")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.Source, row.Event, dash(row.Guard), row.Target, dash(row.Action))
	}
	return w.Flush()
}

type runCmd struct {
	Events []string `arg:"" name:"event" help:"Events to send in order." optional:""`
	State  string   `help:"Restore the machine in this state instead of creating it."`
	Paid   bool     `help:"Restore with paid=true."`
}

func (c *runCmd) CLIHandler() any { return c }

func (c *runCmd) CLIOptions() CLIConfig {
	return CLIConfig{Name: "run", Description: "Run events through a single in-memory machine.", Group: "inspect"}
}

func (c *runCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, s.err)
	events, err := orderfsm.ParseOrderEvents(c.Events)
	if err != nil {
		return err
	}

	opts := []fsm.Option{fsm.WithID("run"), fsm.WithLogger(logger), fsm.WithListeners(fsm.NewLoggingListener(logger))}
	var m *fsm.Machine
	if strings.TrimSpace(c.State) == "" && !c.Paid {
		m = fsm.New(opts...)
	} else {
		state := orderfsm.Open
		if strings.TrimSpace(c.State) != "" {
			if state, err = orderfsm.ParseOrderState(c.State); err != nil {
				return err
			}
		}
		if m, err = fsm.Restore(state, fsm.ExtendedState{Paid: c.Paid}, opts...); err != nil {
			return err
		}
	}

	for _, out := range m.SendAll(ctx, events...) {
		fmt.Fprintln(s.out, out.String())
	}
	snap := m.Snapshot()
	fmt.Fprintf(s.out, "final: %s %s\n", snap.State, snap.Extended)
	return nil
}

type createCmd struct {
	Order string `help:"Order id; generated when empty."`
}

func (c *createCmd) CLIHandler() any { return c }

func (c *createCmd) CLIOptions() CLIConfig {
	return CLIConfig{Name: "create", Description: "Create an order in the configured store.", Group: "orders", Aliases: []string{"new"}}
}

func (c *createCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	a, err := newApp(g, s)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.service().Create(ctx, c.Order)
	if err != nil {
		return err
	}
	printSnapshot(s, snap)
	return nil
}

type sendCmd struct {
	Order string `help:"Order id." required:""`
	Event string `arg:"" help:"Event to send."`
}

func (c *sendCmd) CLIHandler() any { return c }

func (c *sendCmd) CLIOptions() CLIConfig {
	return CLIConfig{Name: "send", Description: "Send one event to a stored order.", Group: "orders"}
}

func (c *sendCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	event, err := orderfsm.ParseOrderEvent(c.Event)
	if err != nil {
		return err
	}
	a, err := newApp(g, s)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.service(orders.WithListeners(fsm.NewLoggingListener(a.logger))).Send(ctx, c.Order, event)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, out.String())
	return out.Err()
}

type showCmd struct {
	Order string `help:"Order id." required:""`
}

func (c *showCmd) CLIHandler() any { return c }

func (c *showCmd) CLIOptions() CLIConfig {
	return CLIConfig{Name: "show", Description: "Show a stored order and the events it accepts.", Group: "orders", Aliases: []string{"get"}}
}

func (c *showCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	a, err := newApp(g, s)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.service().Get(ctx, c.Order)
	if err != nil {
		return err
	}
	printSnapshot(s, snap)
	accepted := fsm.DefaultTable().AcceptedEvents(snap.State, snap.Extended)
	names := make([]string, 0, len(accepted))
	for _, evt := range accepted {
		names = append(names, evt.String())
	}
	fmt.Fprintf(s.out, "accepts: %s\n", strings.Join(names, ", "))
	return nil
}

type summaryCmd struct{}

func (c *summaryCmd) CLIHandler() any { return c }

func (c *summaryCmd) CLIOptions() CLIConfig {
	return CLIConfig{Name: "summary", Description: "Count stored orders per state.", Group: "orders"}
}

func (c *summaryCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	a, err := newApp(g, s)
	if err != nil {
		return err
	}
	defer a.Close()

	counts, err := a.service().Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, orders.FormatSummary(counts))
	return nil
}

type consumeCmd struct {
	AutoCreate bool   `help:"Create unknown orders before applying their first event." name:"auto-create"`
	Metrics    string `help:"Serve prometheus metrics on this address." name:"metrics-addr"`
}

func (c *consumeCmd) CLIHandler() any { return c }

func (c *consumeCmd) CLIOptions() CLIConfig {
	return CLIConfig{Name: "consume", Description: "Apply order events from Kafka.", Group: "orders"}
}

func (c *consumeCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	a, err := newApp(g, s)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.cfg.ValidateKafka(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := orders.NewMetricsListener(reg)
	if err != nil {
		return err
	}
	svc := a.service(orders.WithListeners(metrics, fsm.NewLoggingListener(a.logger)))

	addr := a.cfg.Metrics.Addr
	if c.Metrics != "" {
		addr = c.Metrics
	}
	if addr != "" {
		stop := serveMetrics(ctx, a.logger, addr, a.cfg.Metrics.Path, reg)
		defer stop()
	}

	if a.cfg.Report.Schedule != "" || a.cfg.Report.StartupDelay > 0 {
		scheduler, err := a.scheduleReports(svc)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = scheduler.Stop(stopCtx)
		}()
	}

	kafkaCfg := a.cfg.Kafka
	reader := orders.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.Topic, kafkaCfg.GroupID)
	consumer := orders.NewConsumer(reader, svc,
		orders.WithConsumerLogger(a.logger),
		orders.WithAutoCreate(kafkaCfg.AutoCreate || c.AutoCreate),
		orders.WithConflictRetries(3, orders.ExponentialBackoffStrategy{Base: 50 * time.Millisecond, Factor: 2, Max: time.Second}),
	)
	a.logger.Info("consuming %s as %s from %s", kafkaCfg.Topic, kafkaCfg.GroupID, strings.Join(kafkaCfg.Brokers, ","))
	return consumer.Run(ctx)
}

// scheduleReports registers the recurring summary and the one-off startup
// summary on a scheduler that has not been started yet.
func (a *app) scheduleReports(svc *orders.Service) (*cron.Scheduler, error) {
	cfg := a.cfg.Report
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}
	scheduler := cron.NewScheduler(
		cron.WithLocation(loc),
		cron.WithLogger(a.logger),
		cron.WithLogLevel(cronLogLevel(a.cfg.Log.Level)),
		cron.WithErrorHandler(func(err error) { a.logger.Error("scheduled report failed: %v", err) }),
	)
	job := svc.SummaryJob(a.logger)
	if cfg.Schedule != "" {
		report := cron.Report{Name: "orders-summary", Schedule: cfg.Schedule, Timeout: cfg.Timeout}
		if _, err := scheduler.Schedule(report, job); err != nil {
			return nil, err
		}
	}
	if cfg.StartupDelay > 0 {
		report := cron.Report{Name: "orders-summary-startup", Timeout: cfg.Timeout}
		if _, err := scheduler.RunAfter(cfg.StartupDelay, report, job); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

func serveMetrics(ctx context.Context, logger fsm.Logger, addr, path string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics on %s%s", addr, path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped: %v", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func cronLogLevel(level string) cron.LogLevel {
	switch level {
	case "trace", "debug":
		return cron.LogLevelDebug
	case "info":
		return cron.LogLevelInfo
	default:
		return cron.LogLevelError
	}
}

func printSnapshot(s *streams, snap fsm.Snapshot) {
	fmt.Fprintf(s.out, "order: %s\nstate: %s\npaid: %t\n", snap.ID, snap.State, snap.Extended.Paid)
}

func dash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
