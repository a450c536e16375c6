package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/airbusgeo/modis-grabber/catalog"
	"github.com/airbusgeo/modis-grabber/common"
	"github.com/airbusgeo/modis-grabber/config"
	"github.com/airbusgeo/modis-grabber/downloader"
	"github.com/airbusgeo/modis-grabber/interface/transfer"
	"github.com/airbusgeo/modis-grabber/service/log"
	"github.com/juju/clock"
	"go.uber.org/zap"
)

const usage = `Usage: grabber [fetch|status|promote] [flags] DATESPEC

Commands:
  fetch    download the products of each day (default)
  status   print the outcome of each day
  promote  move the successful days to the data directory

DATESPEC:
  7                      7 days ago (UTC)
  2015-1-2               a single day
  2015-1-2--2015-1-31    every day of the range
  2015-1-2--2015-1-31:7  every 7 days of the range
`

type command struct {
	name string
	cfg  config.Config
	args []string

	archive bool // promote only
}

func newAppConfig(args []string) (*command, error) {
	cmd := &command{name: "fetch"}
	if len(args) > 0 {
		switch args[0] {
		case "fetch", "status", "promote":
			cmd.name, args = args[0], args[1:]
		case "help":
			fmt.Print(usage)
			return nil, flag.ErrHelp
		}
	}

	f := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	f.Usage = func() {
		fmt.Fprint(f.Output(), usage+"\nFlags:\n")
		f.PrintDefaults()
	}
	archive := f.Bool("archive", false, "promote: zip the day directory into the data directory instead of moving it")

	var err error
	if cmd.cfg, cmd.args, err = config.Load(f, args); err != nil {
		return nil, err
	}
	cmd.archive = *archive
	if len(cmd.args) != 1 {
		return nil, fmt.Errorf("expecting one DATESPEC, got %d argument(s)\n%s", len(cmd.args), usage)
	}
	return cmd, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err := run(ctx, os.Args[1:], os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cmd, err := newAppConfig(args)
	if err != nil {
		return err
	}

	logger, err := log.New(cmd.cfg.Log.Level, cmd.cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()
	log.SetDefault(logger)
	ctx = log.WithLogger(ctx, logger)

	dates, err := common.ExpandDateSpec(cmd.args[0], clock.WallClock.Now())
	if err != nil {
		return err
	}
	if len(dates) == 0 {
		log.Logger(ctx).Sugar().Warnf("no date in %s", cmd.args[0])
	}

	switch cmd.name {
	case "status":
		return status(cmd.cfg, dates, stdout)
	case "promote":
		promoted, err := downloader.Promote(ctx, cmd.cfg.WorkingDir, cmd.cfg.DataDir, dates, cmd.archive)
		if err != nil {
			return err
		}
		log.Logger(ctx).Sugar().Infof("%d day(s) promoted to %s", len(promoted), cmd.cfg.DataDir)
		return nil
	}
	return fetch(ctx, cmd.cfg, dates)
}

func fetch(ctx context.Context, cfg config.Config, dates []time.Time) error {
	t, names := newTransfer(cfg)
	grabber := &downloader.Grabber{
		Transfer:   transfer.WithRetry(t, cfg.Transfer.Retries, cfg.Transfer.RetryBackoff),
		WorkingDir: cfg.WorkingDir,
		GeoMetaURL: cfg.GeoMetaURL,
		ArchiveURL: cfg.ArchiveURL,
		Products:   cfg.Products,
		Filter: catalog.Filter{
			Box:      cfg.BoundingBox.Geometry(),
			Window:   cfg.TimeWindow,
			AllHours: cfg.AllHours,
		},
		DayTimeout: cfg.DayTimeout,
		Clock:      clock.WallClock,
	}

	log.Logger(ctx).Sugar().Infof("grabber starts: %d day(s) of %s in %s from %s using %s",
		len(dates), strings.Join(cfg.Products, ","), grabber.Filter.Box, cfg.ArchiveURL, strings.Join(names, ", "))
	report, err := grabber.Run(ctx, dates)
	for _, res := range report {
		if res.Outcome == common.OutcomePENDING && res.Err != nil {
			log.Logger(ctx).Error(common.DayDirName(res.Date)+": not processed", zap.Error(res.Err))
		}
	}
	log.Logger(ctx).Sugar().Infof("done: %d SUCCESS, %d FAILURE, %d not processed",
		report.Count(common.OutcomeSUCCESS), report.Count(common.OutcomeFAILURE), report.Count(common.OutcomePENDING))
	return err
}

// newTransfer returns the transfer handling all the supported schemes and the names of the backends
func newTransfer(cfg config.Config) (transfer.Transfer, []string) {
	mux := transfer.NewMux()
	var names []string

	h := transfer.NewHTTP(cfg.Transfer.Token, cfg.Transfer.HTTPTimeout)
	if cfg.Transfer.UseWget {
		mux.Handle(transfer.NewWget(cfg.Transfer.WgetBinary, h), "http", "https")
		names = append(names, "wget")
	} else {
		mux.Handle(h, "http", "https")
		names = append(names, "http")
	}
	mux.Handle(transfer.NewFTP(cfg.Transfer.FTPUser, cfg.Transfer.FTPPassword, cfg.Transfer.HTTPTimeout), "ftp")
	mux.Handle(transfer.NewS3(cfg.Transfer.S3Region, cfg.Transfer.S3AccessKeyID, cfg.Transfer.S3SecretAccessKey, cfg.Transfer.S3RequestPayer), "s3")
	mux.Handle(transfer.NewGS(), "gs")
	mux.Handle(transfer.NewLocal(), "file")
	names = append(names, "ftp", "s3", "gs", "local")
	return mux, names
}

func status(cfg config.Config, dates []time.Time, stdout io.Writer) error {
	statuses, err := downloader.Status(cfg.WorkingDir, dates)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSTATUS\tTIMESTAMP\tPRODUCTS\tERROR")
	for _, s := range statuses {
		timestamp := ""
		if !s.Flag.Timestamp.IsZero() {
			timestamp = s.Flag.Timestamp.Format(downloader.TimestampLayout)
		}
		errMsg := s.Flag.Error
		if s.Flag.Stage != "" {
			errMsg = s.Flag.Stage + ": " + errMsg
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Date.Format("2006-01-02"), s, timestamp, strings.Join(s.Flag.Products, ","), errMsg)
	}
	return w.Flush()
}
