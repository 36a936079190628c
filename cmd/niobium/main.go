package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"dev.hon.one/niobium/common"
	"dev.hon.one/niobium/db"
	"dev.hon.one/niobium/http"
	"dev.hon.one/niobium/metrics"
	"dev.hon.one/niobium/report"
	"dev.hon.one/niobium/scraping"
	"dev.hon.one/niobium/session"
	"dev.hon.one/niobium/util"
)

const usageText = "\nThis program is designed to retrieve the PID, serial number, IOS, hostname and connected devices on interfaces (mac, ip).\n" +
	"Creates xlsx file with sheets for each switch.\n" +
	"\nThe program accepts one argument, the name of a CSV file.\n" +
	"\nThe CSV should be in the format below:\n\n" +
	common.CredentialExample +
	"\nUsage: niobium [--config FILE] [--debug] [--output FILE] [--gateway ADDR] DEVICES.csv\n"

const malformedCredentialsText = "\nInvalid header in CSV file. Please modify to the format below:\n\n" +
	common.CredentialExample

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.WithError(err).Error("Collection failed")
		os.Exit(1)
	}
}

func newCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "niobium",
		Usage:     "Collect identity and connected hosts of Cisco switches",
		UsageText: "niobium [options] DEVICES.csv",
		Version:   common.AppVersion,
		Writer:    stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Config file path (JSON or YAML).",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Show debug messages.",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Workbook to write, overrides the config.",
			},
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Gateway to resolve MAC addresses on, overrides the config.",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runCollection(ctx, cmd, stdout)
		},
	}
}

func runCollection(ctx context.Context, cmd *cli.Command, stdout io.Writer) error {
	if cmd.Args().Len() != 1 {
		fmt.Fprint(stdout, usageText)
		return nil
	}
	startTime := time.Now()

	if cmd.Bool("debug") {
		log.SetLevel(log.TraceLevel)
		log.Info("Debug mode enabled")
	}
	log.Infof("Starting %v version %v by %v", common.AppName, common.AppVersion, common.AppAuthor)

	// Load config, flags win
	if !common.LoadConfig(cmd.String("config")) {
		return cli.Exit("Failed to load config", 1)
	}
	if output := cmd.String("output"); output != "" {
		common.GlobalConfig.OutputPath = output
	}
	if gateway := cmd.String("gateway"); gateway != "" {
		common.GlobalConfig.GatewayAddress = gateway
	}
	config := common.GlobalConfig

	// Load credentials
	credentials, err := common.LoadCredentials(cmd.Args().First())
	if errors.Is(err, common.ErrCredentialSourceMalformed) {
		fmt.Fprint(stdout, malformedCredentialsText)
		return cli.Exit("", 1)
	}
	if err != nil {
		return err
	}

	// Run internal services in background until the collection is done
	var waitGroup sync.WaitGroup
	shutdown := util.NewShutdownChannelDistributor()
	defer waitGroup.Wait()
	defer shutdown.Shutdown()
	collectionMetrics := metrics.NewCollectionMetrics()
	recorders := []scraping.Recorder{collectionMetrics}
	if config.HTTPEndpoint != "" {
		http.StartServer(&waitGroup, shutdown, collectionMetrics.Registry())
	}
	if db.StartClient(&waitGroup, shutdown) {
		recorders = append(recorders, db.Recorder{})
	}

	// Collect
	dialer := session.SSHDialer{
		ConnectTimeout:   config.ConnectTimeout(),
		CommandTimeout:   config.CommandTimeout(),
		LegacyAlgorithms: config.LegacySSHAlgorithms,
	}
	batch := &scraping.Batch{
		Collector: &scraping.Collector{
			Dialer:   dialer,
			Port:     config.SSHPort,
			Gateway:  newARPSource(config, dialer),
			Progress: stdout,
		},
		Recorders: recorders,
	}
	result, err := batch.Run(ctx, credentials)
	if err != nil {
		return err
	}

	// Report
	if err := report.WriteWorkbook(config.OutputPath, result.Summaries, result.Tables); err != nil {
		return err
	}
	if config.MetricsTextfile != "" {
		if err := collectionMetrics.WriteTextfile(config.MetricsTextfile); err != nil {
			log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	fmt.Fprintf(stdout, "\nReview collected information in %v\n", config.OutputPath)
	fmt.Fprintf(stdout, "\nElapsed time: %v\n", time.Since(startTime))
	return nil
}

func newARPSource(config common.Config, dialer session.Dialer) scraping.ARPSource {
	if config.ARPSource == common.ARPSourceSNMP {
		return &scraping.SNMPARPSource{
			Address:   config.GatewayAddress,
			Port:      uint16(config.SNMPPort),
			Community: config.SNMPCommunity,
			Timeout:   config.ConnectTimeout(),
		}
	}
	return &scraping.SSHARPSource{
		Dialer:   dialer,
		Address:  config.GatewayAddress,
		Port:     config.GatewayPort,
		Username: config.GatewayUsername,
		Password: config.GatewayPassword,
	}
}
