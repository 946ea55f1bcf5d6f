package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	clierrors "github.com/rpcwire/rpcwire/internal/cli/errors"
	"github.com/rpcwire/rpcwire/internal/cli/output"
	"github.com/rpcwire/rpcwire/internal/logger"
	"github.com/rpcwire/rpcwire/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	pollInterval    time.Duration
	pollCount       int
	pollMetricsAddr string
	pollParams      string
)

var pollCmd = &cobra.Command{
	Use:   "poll <method> [key=value...]",
	Short: "Call a method repeatedly and expose call metrics",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pollInterval <= 0 {
			return fmt.Errorf("--interval must be positive")
		}
		method := args[0]
		params, err := parseParams(args[1:], pollParams)
		if err != nil {
			return err
		}

		collector := metrics.NewCollector()
		s, err := openSession(collector.Observe)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if pollMetricsAddr != "" {
			shutdown, err := serveMetrics(collector, pollMetricsAddr)
			if err != nil {
				return err
			}
			defer shutdown()
		}

		limiter := rate.NewLimiter(rate.Every(pollInterval), 1)
		f := newFormatter(cmd)

		var (
			attempts, failures int
			lastErr            error
		)
		for pollCount == 0 || attempts < pollCount {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
			attempts++

			res, err := s.Client.Call(ctx, method, params)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				failures++
				lastErr = err
				collector.ObserveError(method, err)
				fmt.Fprintln(cmd.ErrOrStderr(), f.FormatError(clierrors.Classify(err)))
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.FormatResult(output.NewCallResult(method, res)))
		}

		logger.Debugf("poll %s: %d calls, %d failed", method, attempts, failures)
		if attempts > 0 && failures == attempts {
			return lastErr
		}
		return nil
	},
}

// serveMetrics exposes the collector on addr until the returned func is called.
func serveMetrics(collector *metrics.Collector, addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()
	logger.Infof("serving metrics on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().DurationVar(&pollInterval, "interval", time.Second, "time between calls")
	pollCmd.Flags().IntVar(&pollCount, "count", 0, "number of calls, 0 polls until interrupted")
	pollCmd.Flags().StringVar(&pollMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pollCmd.Flags().StringVar(&pollParams, "params", "", "params as a JSON object or array")
}
