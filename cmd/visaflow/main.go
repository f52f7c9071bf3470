package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/visaflow/internal/application/service"
	"github.com/garyjia/visaflow/internal/config"
	"github.com/garyjia/visaflow/internal/container"
	"github.com/garyjia/visaflow/pkg/utils"
)

var errInterrupted = errors.New("interrupted")

type options struct {
	configPath  string
	envFile     string
	backend     string
	dumpMetrics bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	flags := pflag.NewFlagSet("visaflow", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "path to the YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.StringVar(&opts.backend, "backend", "", "override storage.backend (sqlite, redis, memory)")
	flags.BoolVar(&opts.dumpMetrics, "metrics", false, "print lifecycle metrics to stderr on exit")
	flags.SetInterspersed(false)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: visaflow [flags] <command> [args]\n\nCommands:\n%s\nFlags:\n%s", commandUsage(), flags.FlagUsages())
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}
	cmd, ok := lookupCommand(flags.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", flags.Arg(0))
		flags.Usage()
		return 2
	}

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		fmt.Fprintf(stderr, "Failed to load env file: %v\n", err)
		return 1
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if opts.backend != "" {
		cfg.Storage.Backend = opts.backend
	}

	logger, closeLog, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer closeLog()
	defer logger.Sync()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create container", zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		logger.Error("Failed to start container", zap.Error(err))
		_ = c.Close()
		return 1
	}

	cmdErr := execute(ctx, cmd, &session{service: c.Service(), out: stdout}, flags.Args()[1:], logger)

	if opts.dumpMetrics {
		dumpMetrics(c, stderr, logger)
	}
	if err := c.Close(); err != nil {
		logger.Error("Failed to close container", zap.Error(err))
	}

	if cmdErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", cmdErr)
		if service.IsRetryable(cmdErr) {
			fmt.Fprintln(stderr, "The operation was interrupted and can be retried.")
		}
		return 1
	}
	return 0
}

// execute runs cmd alongside a signal watcher; SIGINT or SIGTERM cancels the
// command's context
func execute(ctx context.Context, cmd command, s *session, args []string, logger *zap.Logger) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	var cmdErr error
	g.Go(func() error {
		defer stop()
		cmdErr = cmd.run(gctx, s, args)
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received signal, cancelling", zap.String("signal", sig.String()))
			return errInterrupted
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && cmdErr == nil {
		return err
	}
	return cmdErr
}

func dumpMetrics(c *container.Container, w io.Writer, logger *zap.Logger) {
	families, err := c.Registry().Gather()
	if err != nil {
		logger.Warn("Failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			logger.Warn("Failed to write metrics", zap.Error(err))
			return
		}
	}
}
