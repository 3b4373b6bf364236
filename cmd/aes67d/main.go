package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	aes67 "github.com/dhpke/aes67-go"
)

func main() {
	configPathFlag := flag.String("config", "/etc/aes67/config.json", "Path to JSON configuration")
	debugFlag := flag.Bool("debug", false, "Enable debug log")
	flag.Parse()

	consoleWriter := zerolog.ConsoleWriter{
		Out: colorable.NewColorableStdout(),
	}
	log.Logger = log.Output(consoleWriter)

	if *debugFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	config, err := aes67.LoadConfig(*configPathFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	aes67.SetDefaultLoggerLevel(config.Logging.Level)

	log.Info().Str("config", *configPathFlag).Msg("Starting AES67 endpoint")

	follower := aes67.NewSystemFollower()
	follower.SetState(aes67.PtpStateSlave)
	clock := aes67.NewClock(follower)

	monitor := aes67.NewPtpMonitor(follower)
	monitor.On("statechange", func(state aes67.PtpState) {
		log.Info().Str("state", state.String()).Msg("PTP state changed")
	})
	monitor.Start()
	defer monitor.Stop()

	registry := aes67.NewRegistry()
	node := aes67.NewNmosNode(config.Node, config.Network, registry)
	if err := node.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start NMOS node")
	}
	defer node.Close()

	var senders []*aes67.Sender
	for _, senderConfig := range config.Senders {
		sender, err := aes67.NewSender(senderConfig)
		if err != nil {
			log.Fatal().Err(err).Str("id", senderConfig.Id).Msg("Invalid sender configuration")
		}
		sender.SetClock(clock)
		node.RegisterSender(sender)
		senders = append(senders, sender)

		if err := sender.Start(); err != nil {
			log.Error().Err(err).Str("id", sender.Id()).Msg("Failed to start sender")
		}
	}

	var receivers []*aes67.Receiver
	for _, receiverConfig := range config.Receivers {
		receiver, err := aes67.NewReceiver(receiverConfig)
		if err != nil {
			log.Fatal().Err(err).Str("id", receiverConfig.Id).Msg("Invalid receiver configuration")
		}
		receiver.SetClock(clock)
		node.RegisterReceiver(receiver)
		receivers = append(receivers, receiver)
	}

	log.Info().
		Int("senders", len(senders)).
		Int("receivers", len(receivers)).
		Str("api", node.ApiURL()).
		Msg("Endpoint running")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	// periodic health check, mirrors the supervision loop of the original
	// deployment
	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				for _, sender := range senders {
					if !sender.Healthy() {
						log.Warn().Str("id", sender.Id()).Msg("Sender unhealthy, recovering")
						if err := sender.Recover(); err != nil {
							log.Error().Err(err).Str("id", sender.Id()).Msg("Sender recovery failed")
						}
					}
				}
				for _, receiver := range receivers {
					if !receiver.Healthy() {
						log.Warn().Str("id", receiver.Id()).Msg("Receiver unhealthy, recovering")
						if err := receiver.Recover(); err != nil {
							log.Error().Err(err).Str("id", receiver.Id()).Msg("Receiver recovery failed")
						}
					}
				}
			}
		}
	})

	g.Wait()

	for _, sender := range senders {
		sender.Close()
	}
	for _, receiver := range receivers {
		receiver.Close()
	}

	log.Info().Msg("Shutdown complete")
}
