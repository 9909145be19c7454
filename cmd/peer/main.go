// Command peer joins a room as a chat host or client.
package main

import (
	"bufio"
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/roomlink/internal/adapters/wsclient"
	"github.com/dkeye/roomlink/internal/config"
	"github.com/dkeye/roomlink/internal/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := pflag.NewFlagSet("peer", pflag.ExitOnError)
	config.PeerFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	u, err := url.Parse(cfg.Peer.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("bad server url")
	}
	q := u.Query()
	q.Set("name", cfg.Peer.Name)
	u.RawQuery = q.Encode()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dir, err := wsclient.Dial(ctx, u.String())
	if err != nil {
		log.Fatal().Err(err).Msg("connect to room server")
	}
	defer dir.Close()

	c := newChat(os.Stdout, cfg.Peer.Role == "host", cfg.Peer.Room)
	sess := session.New(dir, c)
	if err := c.start(sess); err != nil {
		log.Fatal().Err(err).Str("room", cfg.Peer.Room).Msg("start session")
	}
	defer sess.Stop()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := c.say(line); err != nil {
				log.Warn().Err(err).Msg("not sent")
			}
		}
	}
}
