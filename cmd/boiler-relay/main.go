// Command boiler-relay drives a boiler relay over GPIO on MQTT command,
// refusing transitions that would short-cycle the burner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/boiler-relay/internal/config"
	"github.com/sweeney/boiler-relay/internal/control"
	"github.com/sweeney/boiler-relay/internal/mqtt"
	"github.com/sweeney/boiler-relay/internal/relay"
	"github.com/sweeney/boiler-relay/internal/status"
	"github.com/sweeney/boiler-relay/internal/web"
)

func main() {
	def := config.Default()

	configPath := flag.String("config", "", "YAML config file (flags override file values)")
	broker := flag.String("broker", def.Broker, "MQTT broker address")
	pin := flag.Int("pin", def.Pin, "BCM pin number for the relay")
	initial := flag.String("initial", def.InitialState, "Initial relay state (ON or OFF)")
	minOn := flag.Duration("min-on", time.Duration(def.MinimumOn), "Minimum time in ON before the relay may switch off (0 to disable)")
	minOff := flag.Duration("min-off", time.Duration(def.MinimumOff), "Minimum time in OFF before the relay may switch on (0 to disable)")
	heartbeat := flag.Duration("heartbeat", time.Duration(def.Heartbeat), "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", def.HTTPAddr, "HTTP status address (empty to disable)")

	flag.Parse()

	cfg := def
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	cfg = mergeConfig(cfg, flagOverrides{
		broker:    *broker,
		pin:       *pin,
		initial:   *initial,
		minOn:     *minOn,
		minOff:    *minOff,
		heartbeat: *heartbeat,
		httpAddr:  *httpAddr,
	}, set)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// flagOverrides carries parsed flag values into the config merge.
type flagOverrides struct {
	broker    string
	pin       int
	initial   string
	minOn     time.Duration
	minOff    time.Duration
	heartbeat time.Duration
	httpAddr  string
}

// mergeConfig applies explicitly set flags over the loaded config.
// set holds the names of flags the user passed on the command line.
func mergeConfig(cfg config.Config, fl flagOverrides, set map[string]bool) config.Config {
	if set["broker"] {
		cfg.Broker = fl.broker
	}
	if set["pin"] {
		cfg.Pin = fl.pin
	}
	if set["initial"] {
		cfg.InitialState = fl.initial
	}
	if set["min-on"] {
		cfg.MinimumOn = config.Duration(fl.minOn)
	}
	if set["min-off"] {
		cfg.MinimumOff = config.Duration(fl.minOff)
	}
	if set["heartbeat"] {
		cfg.Heartbeat = config.Duration(fl.heartbeat)
	}
	if set["http"] {
		cfg.HTTPAddr = fl.httpAddr
	}
	return cfg
}

func run(cfg config.Config) error {
	// Initialize the relay driver
	driver, err := relay.NewRealDriver(cfg.Pin)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	defer driver.Close()

	// The controller's transition handlers own the physical relay: a
	// failed GPIO write vetoes the logical transition.
	initial := cfg.Initial()
	ctl := control.NewTimedOnOff(initial,
		func() error { return driver.Set(true) },
		func() error { return driver.Set(false) },
		time.Duration(cfg.MinimumOn),
		time.Duration(cfg.MinimumOff),
		time.Now)

	// Construction runs no handler, so drive the relay to the initial
	// state explicitly.
	if err := driver.Set(initial == control.StateOn); err != nil {
		return fmt.Errorf("drive initial state: %w", err)
	}

	// Initialize MQTT
	client, err := mqtt.NewRealClient(cfg.Broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		MinimumOnMs:  time.Duration(cfg.MinimumOn).Milliseconds(),
		MinimumOffMs: time.Duration(cfg.MinimumOff).Milliseconds(),
		HeartbeatMs:  time.Duration(cfg.Heartbeat).Milliseconds(),
		Broker:       cfg.Broker,
		HTTPPort:     cfg.HTTPAddr,
		Pin:          cfg.Pin,
		InitialState: cfg.InitialState,
	})
	tracker.Update(ctl.State(), ctl.Remaining(), status.TransitionCounts{})
	tracker.SetMQTTConnected(client.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: pin=%d initial=%s min_on=%v min_off=%v broker=%s heartbeat=%v",
		cfg.Pin, initial, time.Duration(cfg.MinimumOn), time.Duration(cfg.MinimumOff),
		cfg.Broker, time.Duration(cfg.Heartbeat))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctl, client, client, tracker, time.Duration(cfg.Heartbeat), time.Now, client.Commands(), ticker.C, sigCh)
}

func runLoop(ctl *control.TimedOnOff, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, commands <-chan mqtt.Command, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()
	var counts status.TransitionCounts

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				updateTracker(tracker, ctl, mqttStatus, counts)
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case cmd := <-commands:
			applyCommand(ctl, cmd, publisher, now, &counts)
			updateTracker(tracker, ctl, mqttStatus, counts)

		case <-tick:
			t := now()
			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				updateTracker(tracker, ctl, mqttStatus, counts)

				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
					log.Printf("heartbeat: uptime=%v relay=%s on=%d off=%d denied=%d",
						snap.Uptime().Truncate(time.Second), snap.State,
						counts.On, counts.Off, counts.Denied)
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Keep the lockout countdown fresh for HTTP consumers.
			updateTracker(tracker, ctl, mqttStatus, counts)
		}
	}
}

// applyCommand runs one relay command through the controller and publishes
// the outcome. A same-state command is a legal no-op and publishes nothing.
func applyCommand(ctl *control.TimedOnOff, cmd mqtt.Command, publisher mqtt.Publisher, now func() time.Time, counts *status.TransitionCounts) {
	before := ctl.State()

	var err error
	switch cmd {
	case mqtt.CommandOn:
		err = ctl.Set(control.StateOn)
	case mqtt.CommandOff:
		err = ctl.Set(control.StateOff)
	case mqtt.CommandToggle:
		err = ctl.Bang()
	default:
		log.Printf("ignoring unknown command %q", cmd)
		return
	}

	if err != nil {
		var tooSoon *control.TooSoonError
		if errors.As(err, &tooSoon) {
			counts.Denied++
			log.Printf("command %s denied: %v", cmd, err)
			denied := mqtt.Event{
				Timestamp: now(),
				Type:      mqtt.EventDenied,
				State:     ctl.State(),
				Remaining: tooSoon.Remaining,
			}
			if perr := publisher.Publish(denied); perr != nil {
				log.Printf("publish error: %v", perr)
			}
			return
		}
		// Relay drive fault or other veto: state is unchanged.
		log.Printf("command %s failed: %v", cmd, err)
		return
	}

	after := ctl.State()
	if after == before {
		return
	}

	eventType := mqtt.EventRelayOff
	if after == control.StateOn {
		eventType = mqtt.EventRelayOn
		counts.On++
	} else {
		counts.Off++
	}

	log.Printf("relay %s", after)
	event := mqtt.Event{
		Timestamp: now(),
		Type:      eventType,
		State:     after,
	}
	if perr := publisher.Publish(event); perr != nil {
		log.Printf("publish error: %v", perr)
	}
}

func updateTracker(tracker *status.Tracker, ctl *control.TimedOnOff, mqttStatus mqtt.ConnectionStatus, counts status.TransitionCounts) {
	if tracker == nil {
		return
	}
	tracker.Update(ctl.State(), ctl.Remaining(), counts)
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}
