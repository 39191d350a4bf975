package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/code-payments/lottery-client/pkg/lottery"
	"github.com/code-payments/lottery-client/pkg/metrics"
	"github.com/code-payments/lottery-client/pkg/solana"
	lottery_program "github.com/code-payments/lottery-client/pkg/solana/lottery"
)

const lamportsPerSol = 1_000_000_000

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.StandardLogger().WithError(err).Error("lottery command failed")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lottery",
		Usage: "create, join and settle on-chain lotteries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"C"},
				Usage:   "Solana CLI configuration file",
				Value:   defaultConfigPath(),
				EnvVars: []string{"SOLANA_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "RPC URL, or one of devnet, testnet, mainnet-beta, localhost",
			},
			&cli.StringFlag{
				Name:  "keypair",
				Usage: "payer keypair file",
			},
			&cli.StringFlag{
				Name:  "commitment",
				Usage: "processed, confirmed or finalized",
			},
			&cli.StringFlag{
				Name:  "program",
				Usage: "lottery program address, or its deploy keypair file",
			},
			&cli.StringFlag{
				Name:  "lottery-keypair",
				Usage: "keypair file of the lottery account to use",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "print the lottery account, creating it if needed",
				Action: showAction,
			},
			{
				Name:  "init",
				Usage: "set the entry fee and commission of the lottery",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "entry-fees", Usage: "entry fee in SOL", Value: 1},
					&cli.Uint64Flag{Name: "commission-rate", Usage: "initializer commission in percent", Value: 10},
				},
				Action: initAction,
			},
			{
				Name:   "participate",
				Usage:  "enter the lottery with the payer",
				Action: participateAction,
			},
			{
				Name:  "pick-winner",
				Usage: "pay out a full lottery to one of its participants",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "candidate", Usage: "participant address, given twice", Required: true},
				},
				Action: pickWinnerAction,
			},
			{
				Name:  "airdrop",
				Usage: "request test SOL for the payer",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "lamports", Value: lamportsPerSol},
				},
				Action: airdropAction,
			},
		},
	}
}

type environment struct {
	log             *logrus.Entry
	config          *Config
	metricsProvider *newrelic.Application
	client          *lottery.Client
	payer           *lottery.Account
}

func setupEnvironment(c *cli.Context, requireProgram bool) (*environment, error) {
	config, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("url") {
		config.JSONRPCURL = string(solana.EnvironmentFromURL(c.String("url")))
	}
	if c.IsSet("keypair") {
		config.KeypairPath = expandPath(c.String("keypair"))
	}
	if c.IsSet("commitment") {
		config.Commitment = c.String("commitment")
		if _, err := solana.CommitmentFromString(config.Commitment); err != nil {
			return nil, err
		}
	}
	if c.IsSet("program") {
		config.Program = c.String("program")
	}
	if c.IsSet("lottery-keypair") {
		config.LotteryKeypairPath = expandPath(c.String("lottery-keypair"))
	}

	metricsProvider, err := newMetricsProvider(config)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to new relic")
	}
	configureLogger(config, metricsProvider)

	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"type":    "cmd/lottery",
		"command": c.Command.Name,
		"cluster": config.JSONRPCURL,
	})

	if len(config.KeypairPath) == 0 {
		return nil, errors.New("missing payer keypair path")
	}
	payer, err := LoadKeypair(config.KeypairPath)
	if err == ErrKeypairNotFound {
		return nil, errors.Errorf("no payer keypair at %s; create one with solana-keygen first", config.KeypairPath)
	} else if err != nil {
		return nil, err
	}

	var program ed25519.PublicKey
	if requireProgram {
		program, err = loadProgramAddress(config.Program)
		if err != nil {
			return nil, err
		}
		log = log.WithField("program", base58.Encode(program))
	}

	sc := solana.NewWithRateLimit(config.JSONRPCURL, config.RPCRequestsPerSecond)

	return &environment{
		log:             log,
		config:          config,
		metricsProvider: metricsProvider,
		client:          lottery.NewClient(sc, program, lottery.WithCommitment(config.Commitment)),
		payer:           payer,
	}, nil
}

// run executes fn within a New Relic transaction named after the command,
// when metrics are enabled.
func (e *environment) run(c *cli.Context, fn func(ctx context.Context) error) error {
	ctx := metrics.WithApplication(c.Context, e.metricsProvider)
	if e.metricsProvider != nil {
		txn := e.metricsProvider.StartTransaction("lottery " + c.Command.Name)
		ctx = newrelic.NewContext(ctx, txn)

		defer func() {
			txn.End()
			e.metricsProvider.Shutdown(5 * time.Second)
		}()
	}

	e.log.WithField("payer", e.payer.String()).Debug("running command")
	return fn(ctx)
}

func showAction(c *cli.Context) error {
	env, err := setupEnvironment(c, true)
	if err != nil {
		return err
	}

	return env.run(c, func(ctx context.Context) error {
		account, err := env.loadOrCreateLottery(ctx)
		if err != nil {
			return err
		}

		return env.printLottery(ctx, c, account.Address())
	})
}

func initAction(c *cli.Context) error {
	entryFees := c.Uint64("entry-fees")
	if entryFees > math.MaxUint32 {
		return errors.Errorf("entry fees must be at most %d", uint32(math.MaxUint32))
	}
	commissionRate := c.Uint64("commission-rate")
	if commissionRate > 100 {
		return errors.New("commission rate is a percentage")
	}

	env, err := setupEnvironment(c, true)
	if err != nil {
		return err
	}

	return env.run(c, func(ctx context.Context) error {
		account, err := env.loadOrCreateLottery(ctx)
		if err != nil {
			return err
		}
		address := account.Address()

		sig, err := env.client.InitLottery(ctx, env.payer, address, uint32(entryFees), uint8(commissionRate))
		if err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "Initialized lottery %s in %s\n", account, sig)
		return env.printLottery(ctx, c, address)
	})
}

func participateAction(c *cli.Context) error {
	env, err := setupEnvironment(c, true)
	if err != nil {
		return err
	}

	return env.run(c, func(ctx context.Context) error {
		address, err := env.loadLotteryAddress()
		if err != nil {
			return err
		}

		sig, err := env.client.Participate(ctx, env.payer, address)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "%s joined lottery %s in %s\n", env.payer, base58.Encode(address), sig)
		return env.printLottery(ctx, c, address)
	})
}

func pickWinnerAction(c *cli.Context) error {
	values := c.StringSlice("candidate")
	if len(values) != lottery_program.MaxParticipants {
		return errors.Errorf("exactly %d candidates are required", lottery_program.MaxParticipants)
	}

	var candidates []ed25519.PublicKey
	for _, value := range values {
		candidate, err := lottery.NewAccountFromAddress(value)
		if err != nil {
			return errors.Wrapf(err, "invalid candidate %s", value)
		}
		candidates = append(candidates, candidate.Address())
	}

	env, err := setupEnvironment(c, true)
	if err != nil {
		return err
	}

	return env.run(c, func(ctx context.Context) error {
		address, err := env.loadLotteryAddress()
		if err != nil {
			return err
		}

		sig, err := env.client.PickWinner(ctx, env.payer, address, candidates[0], candidates[1])
		if err != nil {
			return err
		}

		// The program drains the lottery account once the winner is paid
		if err := os.Remove(env.config.LotteryKeypairPath); err != nil && !os.IsNotExist(err) {
			env.log.WithError(err).Warn("failure removing lottery keypair")
		}

		fmt.Fprintf(c.App.Writer, "Picked a winner for lottery %s in %s\n", base58.Encode(address), sig)
		return nil
	})
}

func airdropAction(c *cli.Context) error {
	env, err := setupEnvironment(c, false)
	if err != nil {
		return err
	}

	return env.run(c, func(ctx context.Context) error {
		lamports := c.Uint64("lamports")

		sig, err := env.client.Airdrop(ctx, env.payer.Address(), lamports)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "Airdropped %d lamports to %s in %s\n", lamports, env.payer, sig)
		return env.printBalance(ctx, c)
	})
}

// loadOrCreateLottery returns the persisted lottery account, provisioning
// and persisting a new one when none exists yet.
func (e *environment) loadOrCreateLottery(ctx context.Context) (*lottery.Account, error) {
	account, err := LoadKeypair(e.config.LotteryKeypairPath)
	if err == nil {
		return account, nil
	} else if err != ErrKeypairNotFound {
		return nil, err
	}

	funded, err := e.client.CreateLotteryAccount(ctx, e.payer)
	if err != nil {
		return nil, err
	}

	if err := SaveKeypair(e.config.LotteryKeypairPath, funded.Account); err != nil {
		return nil, errors.Wrap(err, "error saving lottery keypair")
	}

	e.log.WithFields(logrus.Fields{
		"lottery":  funded.Account.String(),
		"lamports": funded.Lamports,
	}).Info("created lottery account")

	return funded.Account, nil
}

func (e *environment) loadLotteryAddress() (ed25519.PublicKey, error) {
	account, err := LoadKeypair(e.config.LotteryKeypairPath)
	if err == ErrKeypairNotFound {
		return nil, errors.Errorf("no lottery keypair at %s; run show or init first", e.config.LotteryKeypairPath)
	} else if err != nil {
		return nil, err
	}
	return account.Address(), nil
}

func (e *environment) printLottery(ctx context.Context, c *cli.Context, address ed25519.PublicKey) error {
	state, err := e.client.GetLotteryState(ctx, address)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Program: %s\n", base58.Encode(e.client.Program()))
	if err := e.printBalance(ctx, c); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Lottery: %s (%s)\n", base58.Encode(address), state)

	if state == lottery_program.StateClosed {
		return nil
	}

	account, err := e.client.GetLottery(ctx, address)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Account Data: %s\n", account)
	return nil
}

func (e *environment) printBalance(ctx context.Context, c *cli.Context) error {
	balance, err := e.client.GetBalance(ctx, e.payer.Address())
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Payer: %s (%s SOL)\n", e.payer, formatSOL(balance))
	return nil
}

func formatSOL(lamports uint64) string {
	return strconv.FormatFloat(float64(lamports)/lamportsPerSol, 'f', -1, 64)
}
