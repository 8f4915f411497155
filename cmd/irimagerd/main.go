// irimager - camera sessions for radiometric thermal imagers
//  Copyright (C) 2026, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	goconfig "github.com/TheCacophonyProject/go-config"
	"github.com/TheCacophonyProject/window"
	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/irdirect"
	"github.com/TheCacophonyProject/irimager/leptongw"
	"github.com/TheCacophonyProject/irimager/location"
	"github.com/TheCacophonyProject/irimager/metrics"
	"github.com/TheCacophonyProject/irimager/service"
	"github.com/TheCacophonyProject/irimager/session"
	"github.com/TheCacophonyProject/irimager/simulator"
	"github.com/TheCacophonyProject/irimager/stream"
	"github.com/TheCacophonyProject/irimager/throttle"
)

const watchdogInterval = 10 * time.Second

var version = "<not set>"

type Args struct {
	ConfigFile   string `arg:"-c,--config" help:"path to configuration file"`
	ConfigDir    string `arg:"--config-dir" help:"path to the Cacophony configuration directory"`
	LocationFile string `arg:"--location" help:"path to the location file"`
	Timestamps   bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/irimagerd.yaml"
	args.ConfigDir = goconfig.DefaultConfigDir
	args.LocationFile = location.DefaultFile
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0)
	}

	log.Printf("version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)
	logDevice(args.ConfigDir)

	w, err := newWindow(conf, args.LocationFile)
	if err != nil {
		return err
	}

	gw, err := newGateway(conf)
	if err != nil {
		return err
	}
	registry := session.NewRegistry(gw)
	registry.SetReconnectInterval(conf.ReconnectInitial, conf.ReconnectMax)
	defer func() {
		log.Print("disconnecting cameras")
		if err := registry.Close(); err != nil {
			log.Printf("disconnecting: %v", err)
		}
	}()

	if conf.MetricsAddr != "" {
		go serveMetrics(conf.MetricsAddr, registry)
	}

	log.Print("starting D-Bus service")
	if _, err := service.Start(registry); err != nil {
		return fmt.Errorf("starting D-Bus service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var frames atomic.Uint64
	var acquiring atomic.Bool
	go watchdog(ctx, &frames, &acquiring)
	daemon.SdNotify(false, "READY=1")

	g, ctx := errgroup.WithContext(ctx)
	for _, cam := range conf.Cameras {
		cam := cam
		rep := newReporter(cam.Name, &frames)
		opts := conf.sessionOptions(cam, throttle.ThrottledEventRecorder{Camera: cam.Name})
		g.Go(func() error {
			err := runWindowed(ctx, w, &acquiring, func(ctx context.Context) error {
				log.Printf("%s: acquiring from %v", cam.Name, cam.Source)
				return registry.Maintain(ctx, cam.Source, rep, opts...)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", cam.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func newGateway(conf *Config) (gateway.Gateway, error) {
	switch conf.Gateway {
	case gatewayIRDirect:
		return irdirect.New()
	case gatewayLepton:
		return leptongw.New(), nil
	case gatewayStream:
		return stream.NewGateway(), nil
	case gatewaySimulator:
		return simulator.New(conf.Simulator), nil
	}
	return nil, fmt.Errorf("unknown gateway %q", conf.Gateway)
}

// newWindow returns nil when acquisition is not limited to a window.
func newWindow(conf *Config, locationFile string) (*window.Window, error) {
	if conf.WindowStart == "" {
		return nil, nil
	}
	loc, err := location.ParseFile(locationFile)
	if err != nil {
		return nil, fmt.Errorf("reading location: %v", err)
	}
	log.Printf("location: %.4f, %.4f", loc.Latitude, loc.Longitude)
	return window.New(conf.WindowStart, conf.WindowEnd, float64(loc.Latitude), float64(loc.Longitude))
}

// watchdog keeps systemd happy while frames are arriving, or while there
// is nothing to acquire.
func watchdog(ctx context.Context, frames *atomic.Uint64, acquiring *atomic.Bool) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := frames.Load()
			if n != last || !acquiring.Load() {
				daemon.SdNotify(false, "WATCHDOG=1")
			}
			last = n
		}
	}
}

func serveMetrics(addr string, registry *session.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(registry))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Printf("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics: %v", err)
	}
}

func logConfig(conf *Config) {
	log.Printf("gateway: %s", conf.Gateway)
	for _, cam := range conf.Cameras {
		log.Printf("camera %s: %v, on failure %s", cam.Name, cam.Source, cam.FailurePolicy)
		if cam.Throttle.ApplyThrottling {
			log.Printf("camera %s: throttled to %.1f fps", cam.Name, cam.Throttle.MaxFPS)
		}
	}
	log.Printf("timeouts: stop %v, command %v", conf.StopTimeout, conf.CommandTimeout)
	log.Printf("reconnect: %v to %v", conf.ReconnectInitial, conf.ReconnectMax)
	if conf.WindowStart != "" {
		log.Printf("acquisition window: %s to %s", conf.WindowStart, conf.WindowEnd)
	}
}

func logDevice(configDir string) {
	configRW, err := goconfig.New(configDir)
	if err != nil {
		log.Printf("device identity unavailable: %v", err)
		return
	}
	var device goconfig.Device
	if err := configRW.Unmarshal(goconfig.DeviceKey, &device); err != nil {
		log.Printf("device identity unavailable: %v", err)
		return
	}
	log.Printf("device: %s (%d)", device.Name, device.ID)
}
