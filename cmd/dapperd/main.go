package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dapperlabs/dapper-relay/pkg/api"
	"github.com/dapperlabs/dapper-relay/pkg/authz"
	"github.com/dapperlabs/dapper-relay/pkg/backup"
	"github.com/dapperlabs/dapper-relay/pkg/chain"
	"github.com/dapperlabs/dapper-relay/pkg/codec"
	"github.com/dapperlabs/dapper-relay/pkg/config"
	"github.com/dapperlabs/dapper-relay/pkg/contracts"
	"github.com/dapperlabs/dapper-relay/pkg/logger"
	"github.com/dapperlabs/dapper-relay/pkg/notify"
	"github.com/dapperlabs/dapper-relay/pkg/relay"
	"github.com/dapperlabs/dapper-relay/pkg/signer"
	"github.com/dapperlabs/dapper-relay/pkg/store"
)

const Version = "0.2.0"

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file",
	}

	app := &cli.Command{
		Name:    "dapperd",
		Usage:   "Relay daemon for Dapper legacy smart-contract wallets",
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the relay HTTP API",
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{
						Name:    "prompt-passphrase",
						Aliases: []string{"p"},
						Usage:   "Prompt for the keystore passphrase instead of reading DAPPER_KEYSTORE_PASSPHRASE",
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Enable debug logging",
					},
				},
				Action: runServe,
			},
			{
				Name:  "cosigner",
				Usage: "Cosigner authorization queries",
				Commands: []*cli.Command{
					{
						Name:  "verify",
						Usage: "Resolve the cosigner for a device key address",
						Flags: []cli.Flag{
							configFlag,
							&cli.StringFlag{
								Name:     "address",
								Usage:    "Device key address to verify",
								Required: true,
							},
						},
						Action: runCosignerVerify,
					},
				},
			},
			{
				Name:  "send",
				Usage: "Relay an asset transfer through the wallet",
				Commands: []*cli.Command{
					sendETHCommand(configFlag),
					sendERC20Command(configFlag),
					sendERC721Command(configFlag),
					sendKittyCommand(configFlag),
					sendPunkCommand(configFlag),
				},
			},
			{
				Name:  "authorize",
				Usage: "Register an authorized key and cosigner pair on the wallet",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "new-authorized",
						Usage:    "Address being granted authorization",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "cosigner",
						Usage:    "Cosigner address for the new key",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Wallet owner address submitting the write (defaults to sender_address)",
					},
					&cli.BoolFlag{
						Name:    "prompt-passphrase",
						Aliases: []string{"p"},
						Usage:   "Prompt for the keystore passphrase",
					},
				},
				Action: runAuthorize,
			},
			{
				Name:  "relays",
				Usage: "Show relay history",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "id",
						Usage: "Show a single relay record",
					},
				},
				Action: runRelays,
			},
			{
				Name:  "version",
				Usage: "Display version information",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Printf("dapperd version %s\n", Version)
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// keystorePassphrase reads the passphrase from the environment, or from the
// terminal when --prompt-passphrase is set.
func keystorePassphrase(c *cli.Command) (string, error) {
	if c.Bool("prompt-passphrase") {
		fmt.Print("Enter keystore passphrase: ")
		pass, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		return string(pass), nil
	}
	return os.Getenv("DAPPER_KEYSTORE_PASSPHRASE"), nil
}

// buildSigningClient dials the node with a keystore-backed signer for the
// configured sender address.
func buildSigningClient(ctx context.Context, c *cli.Command, cfg *config.Config) (*chain.Client, error) {
	passphrase, err := keystorePassphrase(c)
	if err != nil {
		return nil, err
	}
	txSigner, err := signer.NewKeystoreSigner(cfg.KeystoreDir, cfg.SenderAddress, passphrase)
	if err != nil {
		return nil, err
	}
	return chain.Dial(ctx, cfg.RPCURL, txSigner)
}

func runServe(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger.Init(cfg.Environment, c.Bool("debug"))
	logger.Info("Starting relay daemon", "version", Version, "environment", cfg.Environment)

	client, err := buildSigningClient(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	wallet, err := contracts.NewWallet(cfg.WalletAddress, client)
	if err != nil {
		return err
	}

	history, err := store.Open(cfg.BadgerDir)
	if err != nil {
		return err
	}
	defer history.Close()

	opts := []relay.Option{relay.WithStore(history)}
	if cfg.NATSURL != "" {
		publisher, err := notify.NewPublisher(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, relay.WithNotifier(publisher))
		logger.Info("Relay event publishing enabled", "url", cfg.NATSURL)
	}
	relayer := relay.New(client, opts...)

	if cfg.BackupEnabled {
		period := time.Duration(cfg.BackupPeriodSeconds) * time.Second
		mgr, err := backup.NewManager(history, cfg.BackupDir, period, backup.S3ConfigFromEnv())
		if err != nil {
			return err
		}
		mgr.Start()
		defer mgr.Stop()
	}

	server := api.NewServer(wallet, relayer, history, cfg.SenderAddress, cfg.ListenAddr)
	httpServer, errCh := server.Start()
	logger.Info("API server listening", "addr", cfg.ListenAddr, "wallet", wallet.Address())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Warn("Shutdown signal received, draining...", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("API server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
	return nil
}

func runCosignerVerify(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger.Init(cfg.Environment, false)

	client, err := chain.Dial(ctx, cfg.RPCURL, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	wallet, err := contracts.NewWallet(cfg.WalletAddress, client)
	if err != nil {
		return err
	}

	address := c.String("address")
	authorized, cosigner, err := authz.IsAuthorized(ctx, address, wallet)
	if err != nil {
		return err
	}
	fmt.Printf("address:    %s\n", address)
	fmt.Printf("cosigner:   %s\n", cosigner)
	fmt.Printf("authorized: %t\n", authorized)
	return nil
}

func runAuthorize(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger.Init(cfg.Environment, false)

	client, err := buildSigningClient(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	wallet, err := contracts.NewWallet(cfg.WalletAddress, client)
	if err != nil {
		return err
	}

	owner := c.String("owner")
	if owner == "" {
		owner = cfg.SenderAddress
	}

	relayer := relay.New(client)
	txHash, err := relayer.Authorize(ctx, wallet, c.String("new-authorized"), c.String("cosigner"), owner)
	if err != nil {
		return err
	}
	fmt.Printf("tx: %s\n", txHash)
	return nil
}

func runRelays(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	history, err := store.Open(cfg.BadgerDir)
	if err != nil {
		return err
	}
	defer history.Close()

	if id := c.String("id"); id != "" {
		rec, err := history.Get(id)
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	}

	recs, err := history.List()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		printRecord(rec)
		fmt.Println()
	}
	return nil
}

func printRecord(rec *relay.Record) {
	fmt.Printf("id:      %s\n", rec.ID)
	fmt.Printf("wallet:  %s\n", rec.Wallet)
	fmt.Printf("target:  %s\n", rec.Target)
	fmt.Printf("amount:  %s wei\n", rec.AmountWei)
	fmt.Printf("status:  %s\n", rec.Status)
	if rec.TxHash != "" {
		fmt.Printf("tx:      %s\n", rec.TxHash)
	}
	if rec.Error != "" {
		fmt.Printf("error:   %s\n", rec.Error)
	}
	fmt.Printf("created: %s\n", rec.CreatedAt.Format(time.RFC3339))
}

// runSend relays one transfer and prints the resulting record.
func runSend(ctx context.Context, c *cli.Command, buildReq func(cfg *config.Config, wallet *contracts.Wallet) (relay.Request, error)) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger.Init(cfg.Environment, false)

	client, err := buildSigningClient(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	wallet, err := contracts.NewWallet(cfg.WalletAddress, client)
	if err != nil {
		return err
	}

	history, err := store.Open(cfg.BadgerDir)
	if err != nil {
		return err
	}
	defer history.Close()

	req, err := buildReq(cfg, wallet)
	if err != nil {
		return err
	}
	req.Sender = cfg.SenderAddress

	relayer := relay.New(client, relay.WithStore(history))
	rec, err := relayer.Invoke(ctx, wallet, req)
	if err != nil {
		return err
	}
	printRecord(rec)
	return nil
}

func passphraseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "prompt-passphrase",
		Aliases: []string{"p"},
		Usage:   "Prompt for the keystore passphrase",
	}
}

func sendETHCommand(configFlag cli.Flag) *cli.Command {
	return &cli.Command{
		Name:  "eth",
		Usage: "Transfer ether held by the wallet",
		Flags: []cli.Flag{
			configFlag,
			passphraseFlag(),
			&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
			&cli.StringFlag{Name: "amount", Usage: "Amount in wei", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSend(ctx, c, func(cfg *config.Config, wallet *contracts.Wallet) (relay.Request, error) {
				return relay.Request{
					Target:    c.String("to"),
					AmountWei: c.String("amount"),
				}, nil
			})
		},
	}
}

func sendERC20Command(configFlag cli.Flag) *cli.Command {
	return &cli.Command{
		Name:  "erc20",
		Usage: "Transfer ERC-20 tokens held by the wallet",
		Flags: []cli.Flag{
			configFlag,
			passphraseFlag(),
			&cli.StringFlag{Name: "token", Usage: "Token contract address", Required: true},
			&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
			&cli.StringFlag{Name: "amount", Usage: "Token amount in base units", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSend(ctx, c, func(cfg *config.Config, wallet *contracts.Wallet) (relay.Request, error) {
				amount, err := codec.ParseUint256(c.String("amount"))
				if err != nil {
					return relay.Request{}, err
				}
				return relay.Request{
					Target: c.String("token"),
					Call: contracts.ERC20Transfer{
						Token:  c.String("token"),
						To:     c.String("to"),
						Amount: amount,
					},
				}, nil
			})
		},
	}
}

func sendERC721Command(configFlag cli.Flag) *cli.Command {
	return &cli.Command{
		Name:  "erc721",
		Usage: "Transfer an ERC-721 token held by the wallet",
		Flags: []cli.Flag{
			configFlag,
			passphraseFlag(),
			&cli.StringFlag{Name: "contract", Usage: "NFT contract address", Required: true},
			&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
			&cli.StringFlag{Name: "token-id", Usage: "Token id", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSend(ctx, c, func(cfg *config.Config, wallet *contracts.Wallet) (relay.Request, error) {
				tokenID, err := codec.ParseUint256(c.String("token-id"))
				if err != nil {
					return relay.Request{}, err
				}
				return relay.Request{
					Target: c.String("contract"),
					Call: contracts.ERC721Transfer{
						Contract: c.String("contract"),
						From:     wallet.Address(),
						To:       c.String("to"),
						TokenID:  tokenID,
					},
				}, nil
			})
		},
	}
}

func sendKittyCommand(configFlag cli.Flag) *cli.Command {
	return &cli.Command{
		Name:  "kitty",
		Usage: "Transfer a CryptoKitty held by the wallet",
		Flags: []cli.Flag{
			configFlag,
			passphraseFlag(),
			&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
			&cli.StringFlag{Name: "kitty-id", Usage: "Kitty id", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSend(ctx, c, func(cfg *config.Config, wallet *contracts.Wallet) (relay.Request, error) {
				kittyID, err := codec.ParseUint256(c.String("kitty-id"))
				if err != nil {
					return relay.Request{}, err
				}
				call := contracts.KittyTransfer{To: c.String("to"), KittyID: kittyID}
				return relay.Request{Target: call.Target(), Call: call}, nil
			})
		},
	}
}

func sendPunkCommand(configFlag cli.Flag) *cli.Command {
	return &cli.Command{
		Name:  "punk",
		Usage: "Transfer a CryptoPunk held by the wallet",
		Flags: []cli.Flag{
			configFlag,
			passphraseFlag(),
			&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
			&cli.StringFlag{Name: "punk-index", Usage: "Punk index", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSend(ctx, c, func(cfg *config.Config, wallet *contracts.Wallet) (relay.Request, error) {
				punkIndex, err := codec.ParseUint256(c.String("punk-index"))
				if err != nil {
					return relay.Request{}, err
				}
				call := contracts.PunkTransfer{To: c.String("to"), PunkIndex: punkIndex}
				return relay.Request{Target: call.Target(), Call: call}, nil
			})
		},
	}
}
