/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/octoon/engine"
	"github.com/spaghettifunk/octoon/engine/config"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/testbed"
)

func main() {
	configPath := flag.String("config", "octoon.toml", "path to the engine configuration")
	headless := flag.Bool("headless", false, "render a fixed number of frames on the soft device without a window")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogWarn("configuration '%s' not found, using defaults", *configPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err.Error())
	}
	if *headless {
		cfg.Application.Headless = true
		cfg.Graphics.Backend = config.BACKEND_SOFT
		if cfg.Application.Frames == 0 {
			cfg.Application.Frames = 120
		}
	}

	tb := testbed.NewTestGame()

	e, err := engine.New(tb.Game, cfg)
	if err != nil {
		core.LogFatal("failed to create the engine: %s", err.Error())
	}

	if err := e.Initialize(); err != nil {
		core.LogError("failed to initialize the engine: %s", err.Error())
		_ = e.Shutdown()
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the frame loop owns the device, only ask it to stop
	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err.Error())
	}
	if runErr != nil {
		core.LogError("engine stopped: %s", runErr.Error())
		os.Exit(1)
	}
}
