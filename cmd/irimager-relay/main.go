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
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/headers"
	"github.com/TheCacophonyProject/irimager/irdirect"
	"github.com/TheCacophonyProject/irimager/leptongw"
	"github.com/TheCacophonyProject/irimager/session"
	"github.com/TheCacophonyProject/irimager/simulator"
	"github.com/TheCacophonyProject/irimager/stream"
)

const framesPerSdNotify = 45

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/irimager-relay.yaml"
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

	gw, err := newGateway(conf)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		err := session.WithSession(ctx, gw, conf.Source, func(s *session.Session) error {
			return relay(ctx, conf, s)
		})
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("camera error: %v", err)
		if err := sleep(ctx, conf.RetryDelay); err != nil {
			return nil
		}
	}
}

// relay serves frames from s until the session fails or ctx ends.
func relay(ctx context.Context, conf *Config, s *session.Session) error {
	tw, th := s.ThermalSize()
	pw, ph := s.PaletteSize()
	info := headers.New(tw, th, pw, ph, s.FPS(), conf.Brand, conf.Model)
	srv := stream.NewServer(info)

	l, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return err
	}
	log.Printf("serving %dx%d frames on %v", tw, th, l.Addr())
	go func() {
		if err := srv.Serve(l); err != nil {
			log.Printf("serving: %v", err)
		}
	}()
	defer srv.Close()

	s.SetConsumer(&notifier{Consumer: srv})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Done():
		if err := s.Err(); err != nil {
			return err
		}
		return fmt.Errorf("camera stopped")
	}
}

// notifier pets the systemd watchdog as frames go past.
type notifier struct {
	session.Consumer
	count int
}

func (n *notifier) OnFrame(f *frame.Frame) {
	if n.count++; n.count >= framesPerSdNotify {
		daemon.SdNotify(false, "WATCHDOG=1")
		n.count = 0
	}
	n.Consumer.OnFrame(f)
}

func newGateway(conf *Config) (gateway.Gateway, error) {
	switch conf.Gateway {
	case "irdirect":
		return irdirect.New()
	case "lepton":
		return leptongw.New(), nil
	case "simulator":
		return simulator.New(conf.Simulator), nil
	}
	return nil, fmt.Errorf("unknown gateway %q", conf.Gateway)
}

func logConfig(conf *Config) {
	log.Printf("gateway: %s", conf.Gateway)
	log.Printf("camera: %v", conf.Source)
	log.Printf("listen: %s", conf.Listen)
	log.Printf("camera header: %s %s", conf.Brand, conf.Model)
}
