// apnsctl sends a push notification or drains the feedback stream from
// the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pushgate/apns/internal/config"
	"github.com/pushgate/apns/internal/feedback"
	"github.com/pushgate/apns/internal/logging"
	"github.com/pushgate/apns/internal/protocol"
	"github.com/pushgate/apns/internal/push"
)

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "apnsctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	root := flag.NewFlagSet("apnsctl", flag.ContinueOnError)
	configPath := root.String("config", "", "client config file (TOML)")
	certFile := root.String("cert", "", "client certificate file (overrides config)")
	keyFile := root.String("key", "", "client key file (overrides config)")
	if err := root.Parse(args); err != nil {
		return err
	}

	cfg, err := loadClientConfig(*configPath)
	if err != nil {
		return err
	}
	if *certFile != "" {
		cfg.TLS.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.TLS.KeyFile = *keyFile
	}

	rest := root.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: apnsctl [flags] send|feedback ...")
	}

	switch rest[0] {
	case "send":
		return runSend(cfg, rest[1:])
	case "feedback":
		return runFeedback(cfg, rest[1:])
	default:
		return fmt.Errorf("unknown command %q (want send or feedback)", rest[0])
	}
}

func runSend(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	tokens := fs.String("token", "", "hex device token, comma-separated for bulk")
	alert := fs.String("alert", "", "alert text")
	badge := fs.Int("badge", 0, "badge count")
	sound := fs.String("sound", protocol.DefaultSound, "sound identifier, empty for silent")
	contentAvailable := fs.Bool("content-available", false, "set content-available=1")
	actionLocKey := fs.String("action-loc-key", "", "localized action key")
	locKey := fs.String("loc-key", "", "localized alert key")
	locArgs := fs.String("loc-args", "", "comma-separated localization arguments")
	extraJSON := fs.String("extra", "", "extra aps fields as a JSON object")
	if err := fs.Parse(args); err != nil {
		return err
	}

	targets := splitTokens(*tokens)
	if len(targets) == 0 {
		return fmt.Errorf("send: -token is required")
	}

	n := protocol.Notification{
		Alert:            *alert,
		Badge:            *badge,
		Sound:            *sound,
		ContentAvailable: *contentAvailable,
		ActionLocKey:     *actionLocKey,
		LocKey:           *locKey,
	}
	if *locArgs != "" {
		n.LocArgs = strings.Split(*locArgs, ",")
	}
	if *extraJSON != "" {
		if err := json.Unmarshal([]byte(*extraJSON), &n.Extra); err != nil {
			return fmt.Errorf("send: parse -extra: %w", err)
		}
	}

	sender := push.NewSender(cfg.Push.Addr(), cfg.ChannelConfig())
	ctx := context.Background()
	if len(targets) == 1 {
		n.Token = targets[0]
		return sender.Send(ctx, n)
	}
	return sender.SendBulk(ctx, targets, n)
}

func runFeedback(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("feedback", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print records as JSON lines")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := feedback.NewReader(cfg.Feedback.Addr(), cfg.ChannelConfig())
	records, err := reader.ReadAll(context.Background())
	if err != nil {
		return err
	}

	for _, rec := range records {
		if *asJSON {
			line, err := json.Marshal(map[string]any{
				"token":     rec.TokenHex(),
				"timestamp": rec.Timestamp,
			})
			if err != nil {
				return err
			}
			fmt.Println(string(line))
			continue
		}
		fmt.Printf("%s\t%s\n", rec.Timestamp.Format("2006-01-02T15:04:05Z"), rec.TokenHex())
	}
	return nil
}

func splitTokens(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
