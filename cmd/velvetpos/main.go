package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velvetpos/velvetpos/config"
	"github.com/velvetpos/velvetpos/internal/adminapi"
	"github.com/velvetpos/velvetpos/internal/app"
	"github.com/velvetpos/velvetpos/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	version  = "develop"
	h        = flag.Bool("h", false, "help usage")
	showVer  = flag.Bool("v", false, "show version")
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	seedDemo = flag.String("seed-demo", "", "load demo catalog into the given store id, then exit")
)

func printHelp() {
	if *h {
		ustr := fmt.Sprintf("velvetpos version: %s, Usage: velvetpos -h\nOptions:", version)
		_, _ = fmt.Fprint(os.Stderr, ustr)
		flag.PrintDefaults()
		os.Exit(0)
	}
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version)
		os.Exit(0)
	}
	printHelp()

	cfg := config.LoadConfig(*conffile)
	if err := cfg.InitDirs(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "create work dirs: %v\n", err)
		os.Exit(1)
	}
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	if *seedDemo != "" {
		if err := application.SeedDemo(*seedDemo, "cli"); err != nil {
			zap.S().Errorf("seed demo data failed: %v", err)
			os.Exit(1)
		}
		zap.S().Infof("demo data loaded into store %s", *seedDemo)
		return
	}

	server := webserver.Init(application)
	adminapi.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		application.StartBackgroundJobs(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("velvetpos stopped: %v", err)
		return
	}
	zap.S().Info("velvetpos stopped")
}
