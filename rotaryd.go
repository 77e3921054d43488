package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rotaryd/console"
	"rotaryd/eventpipe"
	"rotaryd/hal"
	"rotaryd/indicator"
	"rotaryd/mqtt"
	"rotaryd/platform"
	"rotaryd/rotary"
	"rotaryd/task"
	"rotaryd/wshub"
)

var myBuild string

// App holds the application state and dependencies.
type App struct {
	cfg       *Config
	logger    *slog.Logger
	platform  platform.Platform
	runner    *task.Runner
	driver    *rotary.Driver
	indicator indicator.Indicator
	mqtt      *mqtt.Client
	console   *console.Console
	hub       *wshub.Hub
	ws        *wshub.Server
	pipe      *eventpipe.EventPipe
	exec      *eventpipe.Executor
	ctx       context.Context
	cancel    context.CancelFunc
}

func main() {
	fmt.Printf("rotaryd build %s\n", myBuild)

	cfgfile := flag.String("cfg", "rotaryd.cfg", "Config file")
	flag.Parse()

	cfg, err := LoadConfig(*cfgfile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := setupLogger(os.Stdout, cfg.Logging.Level)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{cfg: cfg, logger: logger, ctx: ctx, cancel: cancel}

	if err := app.start(); err != nil {
		logger.Error("startup failed", "err", err)
		app.shutdown()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	app.shutdown()
	logger.Info("shutdown complete")
}

// start builds every component. Sinks exist before the first channel is
// set up since callbacks may fire right away. On error the caller runs
// shutdown, which copes with a partially built App.
func (app *App) start() error {
	var err error
	cfg := app.cfg

	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		return fmt.Errorf("init indicator: %w", err)
	}
	app.indicator.ConnectionLost()

	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect:    app.indicator.Ready,
		OnDisconnect: app.indicator.ConnectionLost,
		OnGetPos:     app.publishPosition,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("init MQTT: %w", err)
	}

	app.platform, err = platform.New(cfg.Platform, app.logger)
	if err != nil {
		return fmt.Errorf("init platform: %w", err)
	}
	app.runner = task.NewRunner(task.DefaultQueueLen, app.logger)
	app.driver = rotary.New(app.platform, app.runner, rotary.Options{Logger: app.logger})

	// The command set drives pins only on the simulated platform.
	var pins eventpipe.Pins
	if sim, ok := platform.AsSim(app.platform); ok {
		pins = sim
	}
	app.exec = eventpipe.NewExecutor(pins, app.driver, cfg.wiring())

	app.console, err = console.New(cfg.Console, app.exec.Exec, app.logger)
	if err != nil {
		return fmt.Errorf("init console: %w", err)
	}
	if cfg.WebSocket.Listen != "" {
		app.hub = wshub.NewHub(app.logger, 0, 0)
		app.ws = wshub.NewServer(cfg.WebSocket, app.hub, app.positions)
	}
	app.pipe, err = eventpipe.New(cfg.EventPipe, app.exec.Exec, app.logger)
	if err != nil {
		return fmt.Errorf("init event pipe: %w", err)
	}

	go func() {
		if err := app.runner.Run(app.ctx); err != nil && err != context.Canceled {
			app.logger.Error("task runner stopped", "err", err)
		}
	}()
	for _, ch := range cfg.Channels {
		if err := app.driver.Setup(ch.ID, ch.PhaseA, ch.PhaseB, ch.PressPin()); err != nil {
			return fmt.Errorf("setup channel %d: %w", ch.ID, err)
		}
		if err := app.driver.SetCallback(ch.ID, rotary.All, app.gestureHandler(ch.ID)); err != nil {
			return fmt.Errorf("callback channel %d: %w", ch.ID, err)
		}
	}

	go func() {
		if err := app.mqtt.Connect(); err != nil {
			app.logger.Error("MQTT connect", "err", err)
		}
	}()
	if app.console != nil {
		go func() {
			if err := app.console.Run(app.ctx); err != nil && err != context.Canceled {
				app.logger.Warn("console stopped", "err", err)
			}
		}()
	}
	if app.hub != nil {
		go app.hub.Run(app.ctx)
		go func() {
			if err := app.ws.ListenAndServe(); err != nil {
				app.logger.Error("websocket server", "err", err)
			}
		}()
	}
	if app.pipe != nil {
		go app.pipe.Start()
	}
	go app.statsReporter()
	return nil
}

// shutdown stops the inputs first, then closes the channels and releases
// the hardware.
func (app *App) shutdown() {
	if app.pipe != nil {
		app.pipe.Close()
	}
	if app.console != nil {
		app.console.Close()
	}
	if app.ws != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		app.ws.Shutdown(ctx)
		cancel()
	}
	if app.driver != nil {
		for _, ch := range app.cfg.Channels {
			if err := app.driver.Close(ch.ID); err != nil {
				app.logger.Warn("close channel", "channel", ch.ID, "err", err)
			}
		}
	}
	app.cancel()

	if app.mqtt != nil {
		app.mqtt.Disconnect()
	}
	if app.indicator != nil {
		app.indicator.Shutdown()
		app.indicator.Release()
	}
	if app.platform != nil {
		if err := app.platform.Close(); err != nil {
			app.logger.Warn("close platform", "err", err)
		}
	}
}

// gestureHandler fans the gestures of channel id out to every sink.
func (app *App) gestureHandler(id int) rotary.Callback {
	return func(g rotary.Gesture, pos int32, at hal.Micros) {
		pressed := app.pressedFor(id, g)
		name := g.String()

		app.logger.Debug("gesture", "channel", id, "gesture", name, "pos", pos, "pressed", pressed)

		app.indicator.Gesture(indicator.Event{Channel: id, Gesture: g, Position: pos, Pressed: pressed})
		app.mqtt.PublishGesture(mqtt.Gesture{
			Channel:  id,
			Gesture:  name,
			Position: pos,
			Pressed:  pressed,
			TimeMS:   at.Milliseconds(),
		})
		if app.console != nil {
			app.console.Printf("%d %s %d", id, name, pos)
		}
		if app.hub != nil {
			app.hub.PublishGesture(wshub.Gesture{
				Channel:  id,
				Gesture:  name,
				Position: pos,
				Pressed:  pressed,
				TimeMS:   at.Milliseconds(),
			})
		}
	}
}

// pressedFor returns the button state a gesture implies. Turns report the
// live state.
func (app *App) pressedFor(id int, g rotary.Gesture) bool {
	switch g {
	case rotary.Press, rotary.LongPress:
		return true
	case rotary.Release, rotary.Click, rotary.DblClick:
		return false
	}
	_, pressed, _ := app.driver.GetPos(id)
	return pressed
}

func (app *App) publishPosition(id int) {
	pos, pressed, ok := app.driver.GetPos(id)
	if !ok {
		app.logger.Warn("position query for closed channel", "channel", id)
		return
	}
	app.mqtt.PublishGesture(mqtt.Gesture{Channel: id, Gesture: "position", Position: pos, Pressed: pressed})
}

func (app *App) positions() []wshub.Position {
	var out []wshub.Position
	for _, ch := range app.cfg.Channels {
		if pos, pressed, ok := app.driver.GetPos(ch.ID); ok {
			out = append(out, wshub.Position{Channel: ch.ID, Position: pos, Pressed: pressed})
		}
	}
	return out
}

func (app *App) statsReporter() {
	ticker := time.NewTicker(120 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			st := app.driver.Stats()
			app.logger.Debug("driver stats",
				"interrupts", st.Interrupts,
				"pushed", st.Pushed,
				"coalesced", st.Coalesced,
				"dropped", st.Dropped,
				"desyncs", st.Desyncs,
				"posts", st.Posts)
		}
	}
}
