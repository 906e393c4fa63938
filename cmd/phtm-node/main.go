package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/johker/phtm/internal/config"
	"github.com/johker/phtm/internal/core/network"
	"github.com/johker/phtm/internal/logging"
	"github.com/johker/phtm/internal/msg"
	"github.com/johker/phtm/internal/node"
)

func main() {
	cfgPath := flag.String("config", "", "config file (.yaml/.yml/.json); defaults apply when empty")
	logLevel := flag.String("log-level", "", "override log_level from the config")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	log, err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat, "phtm-node")
	if err != nil {
		logrus.WithError(err).Fatal("setup logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("node stopped")
	}
	log.Info("node stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	codec, err := msg.NewCodec(
		msg.WithPayloadSize(cfg.PayloadSize),
		msg.WithIDGenerator(msg.NewSequence(cfg.FirstID)),
	)
	if err != nil {
		return err
	}

	ps, closeTransport, err := openTransport(ctx, cfg, codec, log)
	if err != nil {
		return err
	}
	defer closeTransport()

	n := node.New(codec, ps, node.Options{StrictTopic: cfg.StrictTopic, Logger: log})
	defer n.Close()

	for _, filter := range cfg.Subscribe {
		_, err := n.Handle(filter, func(topic string, v *msg.View) {
			log.WithField("topic", topic).Info(v.Describe())
		})
		if err != nil {
			return err
		}
	}

	errc := make(chan error, 1)
	if cfg.Producer {
		build, err := demoBuilder(cfg.ProducerKey, cfg.ProducerBits, cfg.ProducerClear)
		if err != nil {
			return err
		}
		go func() { errc <- n.RunProducer(ctx, cfg.PublishInterval.Std(), build) }()
	}

	status := time.NewTicker(30 * time.Second)
	defer status.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case <-status.C:
			st := n.Stats()
			fields := logrus.Fields{"sent": st.Sent, "received": st.Received, "dropped": st.Dropped}
			if p2p, ok := ps.(*network.Libp2pPubSub); ok {
				fields["peers"] = len(p2p.ConnectedPeers())
				log.WithField("peer_addrs", p2p.ConnectedPeerAddrs()).Debug("connected peers")
			}
			log.WithFields(fields).Info("status")
		}
	}
}

func openTransport(ctx context.Context, cfg *config.Config, codec *msg.Codec, log *logrus.Entry) (network.PubSub, func(), error) {
	switch cfg.Transport {
	case config.TransportMemory:
		return network.NewMemoryPubSub(), func() {}, nil
	case config.TransportLibp2p:
		p2p, err := network.NewLibp2pPubSub(ctx, network.Libp2pOptions{
			ListenAddrs:     cfg.ListenAddrs,
			Bootstrap:       cfg.Bootstrap,
			Rendezvous:      cfg.Rendezvous,
			EnableMDNS:      cfg.MDNS(),
			IdentityKeyFile: cfg.IdentityKeyFile,
			Validate:        frameValidator(codec, cfg.StrictTopic),
			Logger:          log.WithField("component", "libp2p"),
		})
		if err != nil {
			return nil, nil, err
		}
		log.WithFields(logrus.Fields{"peer_id": p2p.PeerID(), "addrs": p2p.ListenAddrs()}).Info("libp2p host started")
		return p2p, func() { _ = p2p.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// frameValidator rejects gossip payloads that are not well-formed
// envelopes before they are forwarded to other peers.
func frameValidator(codec *msg.Codec, strict bool) func(string, []byte) bool {
	return func(topic string, payload []byte) bool {
		v, err := codec.Parse(payload)
		if err != nil {
			return false
		}
		return !strict || v.MatchesTopic(topic)
	}
}

// demoBuilder produces the sample DATA/WRITE bitset message: every bit in
// set is raised, then every bit in unset is dropped again.
func demoBuilder(keyName string, set, unset []int) (func(*msg.Codec) (*msg.Envelope, error), error) {
	key, err := msg.LookupKey(keyName)
	if err != nil {
		return nil, err
	}
	return func(codec *msg.Codec) (*msg.Envelope, error) {
		env := codec.NewEnvelope()
		env.CreateHeader(msg.TypeData, msg.CommandWrite, key)
		if err := env.SetPayloadBits(set...); err != nil {
			return nil, err
		}
		for _, idx := range unset {
			if err := env.ClearPayloadBit(idx); err != nil {
				return nil, err
			}
		}
		return env, nil
	}, nil
}
