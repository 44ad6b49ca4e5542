// bmobjectd demonstrates the object codecs end to end: it generates a
// sender and a recipient identity, encodes a pubkey announcement and a
// directed message, then decodes both back and logs the results.
//
// Usage:
//
//	bmobjectd [options]
//
// Options:
//
//	-config  path to a TOML config file (default: built-in defaults)
//	-listen  override the configured listen address
//	-skippow skip proof-of-work (overrides config)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"

	"github.com/bmnet/bmobject/pkg/address"
	"github.com/bmnet/bmobject/pkg/bmcrypto"
	"github.com/bmnet/bmobject/pkg/bmlog"
	"github.com/bmnet/bmobject/pkg/candidates"
	"github.com/bmnet/bmobject/pkg/config"
	"github.com/bmnet/bmobject/pkg/object"
	"github.com/bmnet/bmobject/pkg/objects/msg"
	"github.com/bmnet/bmobject/pkg/objects/pubkey"
	"github.com/bmnet/bmobject/pkg/pow"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (empty = built-in defaults)")
	listenAddr := flag.String("listen", "", "override the configured listen address")
	skipPow := flag.Bool("skippow", false, "skip proof-of-work (overrides config)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *skipPow {
		cfg.SkipPow = true
	}

	factory := logging.NewDefaultLoggerFactory()
	logger := bmlog.New(factory, "bmobjectd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatalf("bmobjectd: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger bmlog.Logger) error {
	logger.Infof("starting on %s (skip_pow=%v)", cfg.ListenAddr, cfg.SkipPow)

	crypto := bmcrypto.New()
	solver := pow.NewCPUSolver()

	sender, err := newIdentity(4, 1, 0, cfg)
	if err != nil {
		return fmt.Errorf("generate sender identity: %w", err)
	}
	recipient, err := newIdentity(4, 1, 0, cfg)
	if err != nil {
		return fmt.Errorf("generate recipient identity: %w", err)
	}

	senderAddr, err := sender.Encode()
	if err != nil {
		return fmt.Errorf("encode sender address: %w", err)
	}
	recipientAddr, err := recipient.Encode()
	if err != nil {
		return fmt.Errorf("encode recipient address: %w", err)
	}
	logger.Infof("sender address: %s", senderAddr)
	logger.Infof("recipient address: %s", recipientAddr)

	if err := demoPubkey(ctx, crypto, solver, sender, cfg, logger); err != nil {
		return fmt.Errorf("pubkey demo: %w", err)
	}
	if err := demoMsg(ctx, crypto, solver, sender, recipient, cfg, logger); err != nil {
		return fmt.Errorf("msg demo: %w", err)
	}

	logger.Infof("demo complete, waiting for signal")
	<-ctx.Done()
	logger.Infof("shutting down")
	return nil
}

func newIdentity(version, stream uint64, behavior address.PubkeyBitfield, cfg *config.Config) (*address.ReferenceAddress, error) {
	signKP, err := bmcrypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate signing key pair: %w", err)
	}
	encKP, err := bmcrypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate encryption key pair: %w", err)
	}
	return address.New(
		version, stream,
		signKP.PrivateKeyBytes(), signKP.PublicKeyBytes(),
		encKP.PrivateKeyBytes(), encKP.PublicKeyBytes(),
		behavior, cfg.NonceTrialsPerByte, cfg.PayloadLengthExtraBytes,
	)
}

func demoPubkey(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, from *address.ReferenceAddress, cfg *config.Config, logger bmlog.Logger) error {
	encoded, err := pubkey.Encode(ctx, crypto, solver, pubkey.EncodeOptions{
		Now:     time.Now,
		TTL:     cfg.DefaultTTL.Duration,
		From:    from,
		SkipPow: cfg.SkipPow,
	})
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	logger.Infof("encoded pubkey object: %d bytes", len(encoded))

	decoded, err := pubkey.Decode(ctx, crypto, encoded, pubkey.DecodeOptions{
		Options: decodeOptions(cfg),
		Needed:  candidates.One(from),
	})
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	logger.Infof("decoded pubkey: version=%d stream=%d", decoded.Header.Version, decoded.Header.Stream)
	return nil
}

func demoMsg(ctx context.Context, crypto bmcrypto.Crypto, solver pow.Solver, from, to *address.ReferenceAddress, cfg *config.Config, logger bmlog.Logger) error {
	encoded, err := msg.Encode(ctx, crypto, solver, msg.EncodeOptions{
		Now:      time.Now,
		TTL:      cfg.DefaultTTL.Duration,
		From:     from,
		To:       to,
		Subject:  "hello",
		Message:  "this is a demo message",
		Encoding: msg.Simple,
		SkipPow:  cfg.SkipPow,
	})
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	logger.Infof("encoded msg object: %d bytes", len(encoded))

	decoded, err := msg.Decode(ctx, crypto, encoded, msg.DecodeOptions{
		Options:    decodeOptions(cfg),
		Identities: candidates.One(to),
	})
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	logger.Infof("decoded msg: subject=%q message=%q", decoded.Subject, decoded.Message)
	return nil
}

func decodeOptions(cfg *config.Config) object.Options {
	return object.Options{
		Now:       time.Now,
		MinExpiry: cfg.MinExpiry.Duration,
		MaxTTL:    cfg.MaxTTL.Duration,
	}
}
