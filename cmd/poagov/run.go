package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmagro/poagov/internal/config"
	"github.com/dmagro/poagov/internal/contract"
	"github.com/dmagro/poagov/internal/governance"
	"github.com/dmagro/poagov/internal/logger"
	"github.com/dmagro/poagov/internal/metrics"
	"github.com/dmagro/poagov/internal/monitor"
	"github.com/dmagro/poagov/internal/notify"
	"github.com/dmagro/poagov/internal/report"
	"github.com/dmagro/poagov/internal/rpc"
)

type runOptions struct {
	network           string
	core, sokol, xdai bool

	keys, threshold, proxy, emission bool
	v1, v2                           bool

	earliest, latest bool
	start            string
	tail             uint64
	tailSet          bool

	blockTime   time.Duration
	limit       int
	email       bool
	logEmails   bool
	logFile     string
	verbose     bool
	metricsAddr string
	report      bool
}

func runCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll for new ballots (default command)",
		Long: `Poll the selected network's governance contracts block window by block
window and notify every newly created ballot. Runs until interrupted.

Examples:
  poagov run --core
  poagov run --sokol --v2 --tail 1000 -n 5
  poagov run --xdai --email --log-file logs/poagov.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd, opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.BoolVarP(&opts.keys, "keys", "k", false, "Monitor the keys contract")
	f.BoolVarP(&opts.threshold, "threshold", "t", false, "Monitor the threshold contract")
	f.BoolVarP(&opts.proxy, "proxy", "p", false, "Monitor the proxy contract")
	f.BoolVarP(&opts.emission, "emission", "e", false, "Monitor the emission funds contract")
	f.BoolVar(&opts.v1, "v1", false, "Only monitor V1 contracts")
	f.BoolVar(&opts.v2, "v2", false, "Only monitor V2 contracts")
	f.BoolVar(&opts.earliest, "earliest", false, "Start from block 0")
	f.BoolVar(&opts.latest, "latest", false, "Start from the last mined block")
	f.StringVar(&opts.start, "start", "", "Start block number (decimal or 0x hex)")
	f.Uint64Var(&opts.tail, "tail", 0, "Start this many blocks behind the last mined block")
	f.DurationVar(&opts.blockTime, "block-time", 0, "Poll interval (defaults to config)")
	f.IntVarP(&opts.limit, "limit", "n", 0, "Stop after this many notifications")
	f.BoolVar(&opts.email, "email", false, "Send notification emails")
	f.BoolVar(&opts.logEmails, "log-emails", false, "Log the full body of every notification email")
	f.StringVar(&opts.logFile, "log-file", "", "Write JSON logs to this rotated file instead of the console")
	f.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on host:port")
	f.BoolVar(&opts.report, "report", false, "Write a JSON run report on exit")

	cmd.MarkFlagsMutuallyExclusive("v1", "v2")
	cmd.MarkFlagsMutuallyExclusive("earliest", "latest", "start", "tail")
}

// overrides converts the flags into config overrides.
func (o *runOptions) overrides() (config.Overrides, error) {
	ov := config.Overrides{
		Network:           o.networkName(),
		BlockTime:         o.blockTime,
		NotificationLimit: o.limit,
		Email:             o.email,
		LogEmails:         o.logEmails,
		LogFile:           o.logFile,
		Verbose:           o.verbose,
		MetricsListen:     o.metricsAddr,
		Report:            o.report,
	}
	if o.limit < 0 {
		return ov, fmt.Errorf("--limit must be >= 0")
	}

	selected := map[contract.Kind]bool{
		contract.Keys:      o.keys,
		contract.Threshold: o.threshold,
		contract.Proxy:     o.proxy,
		contract.Emission:  o.emission,
	}
	for _, k := range contract.Kinds {
		if selected[k] {
			ov.Kinds = append(ov.Kinds, k)
		}
	}

	switch {
	case o.v1:
		ov.Version = contract.V1
	case o.v2:
		ov.Version = contract.V2
	}

	switch {
	case o.earliest:
		ov.StartBlock = "earliest"
	case o.latest:
		ov.StartBlock = "latest"
	case o.start != "":
		ov.StartBlock = o.start
	case o.tailSet:
		ov.StartBlock = fmt.Sprintf("-%d", o.tail)
	}
	return ov, nil
}

func (o *runOptions) networkName() string {
	switch {
	case o.core:
		return "core"
	case o.sokol:
		return "sokol"
	case o.xdai:
		return "xdai"
	default:
		return o.network
	}
}

// resolveSettings loads the config and applies the flags. It also returns
// the config's validation warnings.
func resolveSettings(cmd *cobra.Command, opts *runOptions) (*config.Settings, []string, error) {
	if err := loadEnv(cmd); err != nil {
		return nil, nil, err
	}
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	opts.tailSet = cmd.Flags().Changed("tail")
	ov, err := opts.overrides()
	if err != nil {
		return nil, nil, err
	}
	settings, err := cfg.Resolve(ov)
	if err != nil {
		return nil, nil, err
	}
	return settings, cfg.Warnings(), nil
}

func runPoll(cmd *cobra.Command, opts *runOptions) error {
	settings, warnings, err := resolveSettings(cmd, opts)
	if err != nil {
		return err
	}

	log, closeLog := logger.New(logger.Options{
		Verbose:    settings.Log.Verbose,
		File:       settings.Log.File,
		MaxSizeMB:  settings.Log.MaxSizeMB,
		MaxBackups: settings.Log.MaxBackups,
	})
	defer closeLog()
	for _, w := range warnings {
		log.Warn("config warning", zap.String("warning", w))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	m := metrics.New(settings.Network)
	if settings.MetricsListen != "" {
		go func() {
			if err := m.Serve(ctx, settings.MetricsListen, log); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	client := rpc.NewClient(settings.Network, settings.Endpoint, settings.Timeout, rpc.WithObserver(m))

	notifyOpts := notify.Options{
		LogEmails:  settings.Log.LogEmails,
		Recipients: settings.Email.Recipients,
		Recorder:   m,
	}
	if settings.Email.Enabled {
		mailer, err := notify.NewSMTPMailer(settings.Email)
		if err != nil {
			return err
		}
		notifyOpts.Mailer = mailer
	}

	contracts := make([]string, 0, len(settings.Contracts))
	for _, d := range settings.Contracts {
		contracts = append(contracts, d.String())
	}
	log.Info("starting poagov",
		zap.String("network", settings.Network),
		zap.String("endpoint", settings.Endpoint),
		zap.Strings("contracts", contracts),
		zap.Stringer("start", settings.StartBlock),
		zap.Duration("block_time", settings.BlockTime),
		zap.Bool("email", settings.Email.Enabled),
	)

	mon := monitor.New(monitor.Config{
		Network:           settings.Network,
		Endpoint:          settings.Endpoint,
		Contracts:         settings.Contracts,
		Start:             settings.StartBlock,
		BlockTime:         settings.BlockTime,
		NotificationLimit: settings.NotificationLimit,
	}, client, governance.NewClient(client), notify.NewNotifier(log, notifyOpts),
		monitor.WithLogger(log),
		monitor.WithRecorder(m),
	)

	sum, runErr := mon.Run(ctx)
	if runErr != nil {
		log.Error("poll failed", zap.Error(runErr))
	} else {
		log.Info("stopped", zap.Int("windows", sum.Windows), zap.Int("ballots", len(sum.Notified)))
	}

	if settings.Report.Enabled {
		path, err := writeReport(settings, contracts, sum, m, runErr)
		if err != nil {
			log.Warn("failed to write report", zap.Error(err))
		} else {
			log.Info("report written", zap.String("path", path))
		}
	}
	return runErr
}

func writeReport(settings *config.Settings, contracts []string, sum monitor.Summary, m *metrics.Metrics, runErr error) (string, error) {
	r := report.Report{
		Timestamp:    time.Now().UTC(),
		Network:      settings.Network,
		Endpoint:     settings.Endpoint,
		Contracts:    contracts,
		FirstBlock:   sum.FirstBlock,
		LastBlock:    sum.LastBlock,
		Windows:      sum.Windows,
		LimitReached: sum.LimitReached,
		Ballots:      make([]report.Ballot, 0, len(sum.Notified)),
		Latencies:    report.Latencies(m.Latencies()),
	}
	for _, n := range sum.Notified {
		r.Ballots = append(r.Ballots, report.Ballot{
			Block:      n.Log.BlockNumber,
			Contract:   n.Contract.String(),
			BallotID:   n.Log.BallotID.String(),
			BallotType: n.Log.BallotType.String(),
			Creator:    n.Log.Creator.Hex(),
		})
	}
	if runErr != nil {
		msg := runErr.Error()
		r.Error = &msg
	}

	path, err := report.WriteJSON(settings.Report.Dir, r, "run-"+settings.Network)
	if err != nil {
		return "", errors.Wrap(err, "report")
	}
	return path, nil
}
