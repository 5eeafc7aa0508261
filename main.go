package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/bgmatte/batch"
	"github.com/chaos-io/bgmatte/cache"
	"github.com/chaos-io/bgmatte/codec"
	"github.com/chaos-io/bgmatte/config"
	"github.com/chaos-io/bgmatte/matting"
	"github.com/chaos-io/bgmatte/server"
	"github.com/chaos-io/bgmatte/util"
	"github.com/chaos-io/bgmatte/util/logger"
)

var log = logrus.New()

var (
	flagConfig     = flag.String("config", "", "YAML config file")
	flagAggressive = flag.Bool("aggressive", false, "use the aggressive profile")
	flagOutput     = flag.String("o", "", "output file, - for stdout (default <input>_matte.png)")
	flagServe      = flag.Bool("serve", false, "run the HTTP server")
	flagWatch      = flag.Bool("watch", false, "periodically matte batch.input_dir into batch.output_dir")
	flagAddr       = flag.String("addr", "", "HTTP listen address, overrides server.addr")
	flagLogLevel   = flag.String("log-level", "", "log level, overrides log.level")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <image file | url | data uri>\n       %s -serve [-watch] [flags]\n", os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*flagConfig, ".env")
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	applyFlags(cfg)
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		log.WithError(err).Fatal("log level")
	}
	log.SetLevel(logrus.GetLevel())

	ctx, ctxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer ctxCancel()
	ctx = logger.WithLogEntry(ctx, logrus.NewEntry(log))

	proc, err := newProcessor(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("matting.NewProcessor")
	}

	if !*flagServe && !*flagWatch {
		if flag.NArg() != 1 {
			flag.Usage()
			os.Exit(2)
		}
		if err := oneShot(ctx, proc, cfg, flag.Arg(0)); err != nil {
			log.WithError(err).Fatal("matte")
		}
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	if *flagServe {
		gin.SetMode(gin.ReleaseMode)
		srv := server.New(proc, cfg.Server, cfg.Matte.Aggressive)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}
	if *flagWatch {
		g.Go(func() error {
			return watch(ctx, proc, cfg)
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("exiting")
		os.Exit(1)
	}
	log.Info("main exiting")
}

// applyFlags 只覆盖命令行里显式给出的参数
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "aggressive":
			cfg.Matte.Aggressive = *flagAggressive
		case "addr":
			cfg.Server.Addr = *flagAddr
		case "log-level":
			cfg.Log.Level = *flagLogLevel
		}
	})
}

func newProcessor(ctx context.Context, cfg *config.Config) (*matting.Processor, error) {
	var c cache.Cache = cache.Nop{}
	if cfg.Cache.MaxBytes > 0 {
		c = cache.NewLRU(cfg.Cache.MaxBytes, cfg.Cache.TTL)
	}
	return matting.NewProcessor(
		matting.WithCache(c),
		matting.WithTimeout(cfg.Matte.Timeout),
		matting.WithMaxDimension(cfg.Matte.MaxDimension),
		matting.WithPool(matting.NewPool(ctx, cfg.Matte.Workers)),
		matting.WithConcurrency(cfg.Batch.Concurrency),
	)
}

func oneShot(ctx context.Context, proc *matting.Processor, cfg *config.Config, src string) error {
	defer util.Trace("matte " + src)()

	var input []byte
	if codec.IsDataURI([]byte(src)) {
		input = []byte(src)
	} else {
		data, err := util.ReadSource(ctx, src)
		if err != nil {
			return err
		}
		input = data
	}

	out, err := proc.ProcessImage(ctx, input, cfg.Matte.Aggressive)
	if err != nil {
		log.WithError(err).Warn("matting failed, writing the original image")
	}

	dst := *flagOutput
	if dst == "" {
		if codec.IsDataURI(input) {
			dst = "-"
		} else {
			dst = defaultOutput(src)
		}
	}
	if dst == "-" {
		_, err := os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return err
	}
	log.WithField("output", dst).Info("done")
	return nil
}

func defaultOutput(src string) string {
	base := filepath.Base(src)
	if util.IsURL(src) {
		base = path.Base(strings.SplitN(src, "?", 2)[0])
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_matte.png"
}

func watch(ctx context.Context, proc *matting.Processor, cfg *config.Config) error {
	job := &batch.Job{
		InputDir:    cfg.Batch.InputDir,
		OutputDir:   cfg.Batch.OutputDir,
		Aggressive:  cfg.Matte.Aggressive,
		Concurrency: cfg.Batch.Concurrency,
		Processor:   proc,
	}

	sched := batch.NewScheduler(ctx)
	if _, err := sched.Add(cfg.Batch.Schedule, job); err != nil {
		return err
	}
	// 启动时先跑一遍
	if _, err := job.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("initial batch run")
	}
	sched.Start()
	log.WithField("schedule", cfg.Batch.Schedule).Info("watching")

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}
