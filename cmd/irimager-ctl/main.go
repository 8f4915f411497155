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
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	arg "github.com/alexflint/go-arg"

	"github.com/TheCacophonyProject/irimager/imagerController"
)

var version = "<not set>"

type ListCmd struct{}

type StatusCmd struct {
	Camera uint32 `arg:"positional,required"`
}

type ShutterCmd struct {
	Camera    uint32 `arg:"positional,required"`
	Automatic *bool  `arg:"--auto" help:"turn automatic shutter calibration on or off instead of triggering the flag"`
}

type PaletteCmd struct {
	Camera  uint32 `arg:"positional,required"`
	Palette string `arg:"positional,required" help:"e.g. iron, rainbow, gray-bw"`
	Scaling string `arg:"positional" help:"manual, minmax, sigma1 or sigma3"`
}

type RangeCmd struct {
	Camera uint32  `arg:"positional,required"`
	Min    float64 `arg:"positional,required"`
	Max    float64 `arg:"positional,required"`
	Manual bool    `arg:"-m,--manual" help:"set the palette range instead of the measurement range"`
}

type RadiationCmd struct {
	Camera         uint32  `arg:"positional,required"`
	Emissivity     float64 `arg:"positional,required"`
	Transmissivity float64 `arg:"--transmissivity" default:"1"`
	Ambient        float64 `arg:"--ambient" default:"-999" help:"ambient temperature in °C, below absolute zero for automatic"`
}

type ClipCmd struct {
	Camera uint32  `arg:"positional,required"`
	X      *uint16 `arg:"positional"`
	Y      *uint16 `arg:"positional"`
}

type Args struct {
	List      *ListCmd      `arg:"subcommand:list" help:"list connected cameras"`
	Status    *StatusCmd    `arg:"subcommand:status" help:"show camera state, statistics and mean temperature"`
	Shutter   *ShutterCmd   `arg:"subcommand:shutter" help:"trigger the shutter flag or change automatic calibration"`
	Palette   *PaletteCmd   `arg:"subcommand:palette" help:"set the palette and scaling"`
	Range     *RangeCmd     `arg:"subcommand:range" help:"set a temperature range"`
	Radiation *RadiationCmd `arg:"subcommand:radiation" help:"set radiation parameters"`
	Clip      *ClipCmd      `arg:"subcommand:clip" help:"show or set the clipped region position"`
}

func (Args) Version() string {
	return version
}

func main() {
	log.SetFlags(0)
	var args Args
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.WriteUsage(os.Stderr)
		os.Exit(2)
	}
	if err := run(args); err != nil {
		log.Fatal(err)
	}
}

func run(args Args) error {
	switch {
	case args.List != nil:
		cams, err := imagerController.ListCameras()
		if err != nil {
			return err
		}
		for _, c := range cams {
			fmt.Println(c)
		}
	case args.Status != nil:
		return status(args.Status.Camera)
	case args.Shutter != nil:
		if args.Shutter.Automatic != nil {
			return imagerController.SetAutomaticShutter(args.Shutter.Camera, *args.Shutter.Automatic)
		}
		return imagerController.TriggerShutterFlag(args.Shutter.Camera)
	case args.Palette != nil:
		scaling := args.Palette.Scaling
		if scaling == "" {
			scaling = "minmax"
		}
		return imagerController.SetPalette(args.Palette.Camera, args.Palette.Palette, scaling)
	case args.Range != nil:
		r := args.Range
		if r.Manual {
			return imagerController.SetManualTemperatureRange(r.Camera, r.Min, r.Max)
		}
		return imagerController.SetTemperatureRange(r.Camera, r.Min, r.Max)
	case args.Radiation != nil:
		r := args.Radiation
		return imagerController.SetRadiationParameters(r.Camera, r.Emissivity, r.Transmissivity, r.Ambient)
	case args.Clip != nil:
		return clip(args.Clip)
	}
	return nil
}

func status(camera uint32) error {
	state, err := imagerController.GetState(camera)
	if err != nil {
		return err
	}
	fmt.Printf("state: %s\n", state.State)
	if state.Reason != "" {
		fmt.Printf("reason: %s\n", state.Reason)
	}

	stats, err := imagerController.GetStats(camera)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %d\n", k, stats[k])
	}

	mean, seq, err := imagerController.MeanTemperature(camera)
	if err != nil {
		// No frame yet is not worth failing for.
		fmt.Printf("mean temperature: unavailable (%v)\n", err)
		return nil
	}
	fmt.Printf("mean temperature: %.2f°C (frame %d)\n", mean, seq)
	return nil
}

func clip(c *ClipCmd) error {
	if c.X == nil && c.Y == nil {
		x, y, err := imagerController.GetClippedRegionPosition(c.Camera)
		if err != nil {
			return err
		}
		fmt.Printf("%d %d\n", x, y)
		return nil
	}
	if c.X == nil || c.Y == nil {
		return errors.New("both x and y are needed")
	}
	return imagerController.SetClippedRegionPosition(c.Camera, *c.X, *c.Y)
}
