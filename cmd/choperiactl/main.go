// Command choperiactl operates mesas and orders from a terminal, falling back
// to a local mirror when the API is unreachable.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/happy-hops/choperia/pkg/client"
	"github.com/happy-hops/choperia/pkg/logger"
)

var Version = "dev"

type options struct {
	server  string
	mirror  string
	json    bool
	userID  int64
	user    string
	token   string
	timeout time.Duration
	verbose bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "choperiactl",
		Short:         "Choperia terminal: mesas, pedidos and dashboard",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("CHOPERIA_SERVER", "http://localhost:8000"), "API base URL")
	flags.StringVar(&opts.mirror, "mirror", envOr("CHOPERIA_MIRROR", defaultMirrorPath()), "Local mirror file")
	flags.BoolVar(&opts.json, "json", false, "Print JSON")
	flags.Int64Var(&opts.userID, "user-id", envInt("CHOPERIA_USER_ID"), "Operator user id")
	flags.StringVar(&opts.user, "user", os.Getenv("CHOPERIA_USER"), "Operator name shown on mesa events")
	flags.StringVar(&opts.token, "token", os.Getenv("CHOPERIA_TOKEN"), "Bearer token")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log fallback warnings")

	rootCmd.AddCommand(mesasCmd(opts))
	rootCmd.AddCommand(pedidosCmd(opts))
	rootCmd.AddCommand(dashboardCmd(opts))
	rootCmd.AddCommand(watchCmd(opts))
	rootCmd.AddCommand(syncCmd(opts))
	rootCmd.AddCommand(healthCmd(opts))
	return rootCmd
}

func (o *options) client(cmd *cobra.Command) (*client.Client, error) {
	log := logger.New(logger.Config{Level: "error", Component: "choperiactl", Output: cmd.ErrOrStderr()})
	if o.verbose {
		log.SetLevel("debug")
	}
	return client.New(client.Config{
		BaseURL:    o.server,
		Timeout:    o.timeout,
		MirrorPath: o.mirror,
		Logger:     log,
		UserID:     o.userID,
		UserName:   o.user,
		Token:      o.token,
	})
}

// emit prints v as JSON with --json, otherwise runs text.
func (o *options) emit(cmd *cobra.Command, v interface{}, text func(io.Writer)) error {
	out := cmd.OutOrStdout()
	if o.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}

func cachedNote(cmd *cobra.Command, cached bool) {
	if cached {
		warn(cmd.ErrOrStderr(), "offline: showing local mirror")
	}
}

func queuedNote(cmd *cobra.Command, cached bool) {
	if cached {
		warn(cmd.ErrOrStderr(), "offline: queued for sync")
	}
}

func defaultMirrorPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "choperia-mirror.json"
	}
	return filepath.Join(dir, "choperia", "mirror.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string) int64 {
	v, _ := strconv.ParseInt(os.Getenv(key), 10, 64)
	return v
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, raw)
	}
	return id, nil
}
