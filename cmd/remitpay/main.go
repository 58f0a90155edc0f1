package main

import (
	"os"

	"github.com/alexisrja/RemitPay/internal/config"
	"github.com/alexisrja/RemitPay/internal/openpayments"
	"github.com/alexisrja/RemitPay/internal/poller"
	"github.com/alexisrja/RemitPay/internal/remit"
	"github.com/alexisrja/RemitPay/internal/server"
	"github.com/alexisrja/RemitPay/internal/store"
	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func main() {
	cfg := config.Load()

	if _, err := os.Stat(cfg.PrivateKeyPath); err != nil {
		log.WithField("path", cfg.PrivateKeyPath).Warn("Signing key not found, outbound requests will be unsigned")
	}

	client := openpayments.NewClient(openpayments.ClientConfig{
		WalletAddressURL: cfg.WalletAddressURL,
		KeyID:            cfg.KeyID,
		Timeout:          cfg.UpstreamTimeout,
		BulkheadSize:     cfg.BulkheadSize,
	})

	st := store.NewTransactionStore()
	service := remit.NewService(st, client)

	pc := poller.NewController(service, cfg.PollInterval, cfg.PollMaxAttempts)
	defer pc.Close()

	srv := server.New(service, pc)

	log.WithFields(log.Fields{
		"port":           cfg.Port,
		"wallet_address": cfg.WalletAddressURL,
		"poll_interval":  cfg.PollInterval.String(),
		"poll_attempts":  cfg.PollMaxAttempts,
	}).Info("RemitPay starting")

	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
