package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sonirico/libemit"
)

var rootCmd = &cobra.Command{
	Use:   "wstap <url>",
	Short: "Tap a websocket endpoint and print what it publishes",
	Long: `wstap connects to a websocket endpoint and prints every frame it receives.
Frames containing one of the --ignore substrings are dropped before printing.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runTap,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "wstap:", err)
	}
	return err
}

func init() {
	flags := rootCmd.Flags()
	flags.String("url", "", "websocket url (alternative to the positional argument)")
	flags.StringArray("header", nil, "request header as 'Key: Value', repeatable")
	flags.StringArray("send", nil, "text frame to send once connected, repeatable")
	flags.StringArray("ignore", nil, "drop frames containing this substring, repeatable")
	flags.Duration("ping-interval", 0, "send a ping frame at this interval (0 disables)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	for _, name := range []string{"url", "header", "send", "ignore", "ping-interval", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	viper.SetEnvPrefix("WSTAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runTap(cmd *cobra.Command, args []string) error {
	rawURL := viper.GetString("url")
	if len(args) > 0 {
		rawURL = args[0]
	}
	if rawURL == "" {
		return errors.New("missing websocket url")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", rawURL)
	}

	header, err := parseHeaders(viper.GetStringSlice("header"))
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(level)

	client := libemit.NewSocketClient(
		*u,
		libemit.WithHeader(header),
		libemit.WithPingInterval(viper.GetDuration("ping-interval")),
		libemit.WithClientLogger(libemit.NewLogrusLogger(logrus.NewEntry(log))),
	)

	received := wireTap(client, cmd, viper.GetStringSlice("ignore"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Open(ctx); err != nil {
		return err
	}

	for _, text := range viper.GetStringSlice("send") {
		if err := client.Send(ctx, libemit.NewTextMessage([]byte(text))); err != nil {
			return errors.Wrap(err, "cannot send frame")
		}
	}

	select {
	case <-ctx.Done():
		client.Close()
		<-client.Done()
	case <-client.Done():
	}

	log.Infof("%d frames printed", received.Load())
	if err := client.CloseErr(); err != nil && !errors.Is(err, libemit.ErrTerminated) {
		return err
	}
	return nil
}

// wireTap registers the listeners of the tap. Filters run first so they can
// cancel a message before it is printed; the counter runs last.
func wireTap(client *libemit.SocketClient, cmd *cobra.Command, ignore []string) *atomic.Int64 {
	out := cmd.OutOrStdout()
	received := new(atomic.Int64)

	for _, pattern := range ignore {
		needle := []byte(pattern)
		client.PrependListener(libemit.EventMessage, libemit.NewListener(
			func(_ context.Context, _ libemit.EventEmitter, args ...any) error {
				ev := args[0].(*libemit.MessageEvent)
				if bytes.Contains(ev.Message.Data, needle) {
					ev.Cancel()
				}
				return nil
			},
		))
	}

	client.On(libemit.EventMessage, libemit.NewListener(
		func(_ context.Context, _ libemit.EventEmitter, args ...any) error {
			ev := args[0].(*libemit.MessageEvent)
			_, err := fmt.Fprintf(out, "%s\n", ev.Message.Data)
			return err
		},
	))

	client.AddPassiveListener(libemit.EventMessage, libemit.NewListener(
		func(context.Context, libemit.EventEmitter, ...any) error {
			received.Add(1)
			return nil
		},
	))

	client.On(libemit.EventError, libemit.NewListener(
		func(_ context.Context, _ libemit.EventEmitter, args ...any) error {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", args[0])
			return nil
		},
	))

	client.On(libemit.EventOpen, libemit.NewListener(
		func(_ context.Context, _ libemit.EventEmitter, args ...any) error {
			fmt.Fprintf(cmd.ErrOrStderr(), "connected to %v\n", args[0])
			return nil
		},
	))

	return received
}

func parseHeaders(raw []string) (http.Header, error) {
	header := http.Header{}
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, errors.Errorf("invalid header %q, expected 'Key: Value'", h)
		}
		header.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return header, nil
}
