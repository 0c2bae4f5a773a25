// go-caflash
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-caflash.
//
// go-caflash is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-caflash is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-caflash; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	caflash "github.com/ZaparooProject/go-caflash"
	"github.com/ZaparooProject/go-caflash/detection"
	"github.com/ZaparooProject/go-caflash/flashmode"
	"github.com/ZaparooProject/go-caflash/transport/bridge"
)

// Environment overrides
const (
	envDevice    = "CAFLASH_DEVICE"
	envTransport = "CAFLASH_TRANSPORT"
	envUSBID     = "CAFLASH_USB_ID"
	envConfig    = "CAFLASH_CONFIG"
)

// errUsage marks problems with the command line itself
var errUsage = errors.New("usage")

// fileConfig is the on-disk TOML layout.
//
//	transport = "bridge"
//	usb_id = "0403:6001"
//	boot_pin = "GPIO17"
//	reset_pin = "GPIO27"
//	settle_delay = "100ms"
//
//	[detection]
//	ignore_paths = ["/dev/ttyS0"]
type fileConfig struct {
	Transport   string   `toml:"transport"`
	Device      string   `toml:"device"`
	USBID       string   `toml:"usb_id"`
	BootPin     string   `toml:"boot_pin"`
	ResetPin    string   `toml:"reset_pin"`
	LogDir      string   `toml:"log_dir"`
	ResetPulse  duration `toml:"reset_pulse"`
	SettleDelay duration `toml:"settle_delay"`
	Detection   struct {
		Blocklist   []string `toml:"blocklist"`
		IgnorePaths []string `toml:"ignore_paths"`
	} `toml:"detection"`
	ActiveLow bool `toml:"active_low"`
	Debug     bool `toml:"debug"`
}

// duration decodes TOML strings such as "50ms"
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// config is the resolved run configuration
type config struct {
	imagePath   string
	device      string
	transport   caflash.TransportType
	logDir      string
	blocklist   []string
	ignorePaths []string
	flash       flashmode.Config
	vid         uint16
	pid         uint16
	debug       bool
	sessionLog  bool
	list        bool
}

// loadFileConfig decodes path. A missing default file is not an error.
func loadFileConfig(path string, explicit bool) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}
	if _, err := toml.DecodeFile(path, fc); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return fc, nil
}

// defaultConfigPath returns the per-user config file location, or "".
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "caflash", "config.toml")
}

// flagValues holds raw flag input before precedence is applied
type flagValues struct {
	transport  string
	device     string
	vid        string
	pid        string
	bootPin    string
	resetPin   string
	configPath string
	logDir     string
	activeLow  bool
	debug      bool
	sessionLog bool
	list       bool
}

func newFlagSet(out io.Writer, fv *flagValues) *flag.FlagSet {
	fs := flag.NewFlagSet("caflash", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&fv.transport, "transport", "", "Link type: bridge (USB bridge by VID:PID) or tty (native serial)")
	fs.StringVar(&fv.device, "device", "", "Serial device path (tty) or bridge port name")
	fs.StringVar(&fv.vid, "vid", "", "USB vendor ID of the bridge in hex (default 0403)")
	fs.StringVar(&fv.pid, "pid", "", "USB product ID of the bridge in hex (default 6001)")
	fs.StringVar(&fv.bootPin, "boot-pin", "", "GPIO held asserted during the upload (e.g. GPIO17)")
	fs.StringVar(&fv.resetPin, "reset-pin", "", "GPIO pulsed to restart the target (e.g. GPIO27)")
	fs.BoolVar(&fv.activeLow, "active-low", false, "Assert GPIO lines by driving them low")
	fs.StringVar(&fv.configPath, "config", "", "TOML config file (default: user config dir)")
	fs.BoolVar(&fv.debug, "debug", false, "Enable debug output and wire traces")
	fs.BoolVar(&fv.sessionLog, "log", false, "Write a debug session log file")
	fs.StringVar(&fv.logDir, "log-dir", "", "Directory for the session log (default: current directory)")
	fs.BoolVar(&fv.list, "list", false, "List candidate serial devices and exit")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(out, "usage: caflash [flags] firmware.bin [serial-device]")
		_, _ = fmt.Fprintln(out, "       caflash -list")
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs resolves flags, environment and config file into a config.
// Flags win over the environment, which wins over the file.
func parseArgs(args []string, getenv func(string) string, out io.Writer) (*config, error) {
	var fv flagValues
	fs := newFlagSet(out, &fv)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	configPath, explicit := fv.configPath, set["config"]
	if !explicit {
		if env := getenv(envConfig); env != "" {
			configPath, explicit = env, true
		} else {
			configPath = defaultConfigPath()
		}
	}
	fc, err := loadFileConfig(configPath, explicit)
	if err != nil {
		return nil, err
	}

	cfg := &config{
		blocklist:   append(detection.DefaultBlocklist(), fc.Detection.Blocklist...),
		ignorePaths: fc.Detection.IgnorePaths,
		logDir:      pick(fv.logDir, "", fc.LogDir),
		debug:       fv.debug || fc.Debug,
		sessionLog:  fv.sessionLog,
		list:        fv.list,
		vid:         bridge.DefaultVID,
		pid:         bridge.DefaultPID,
		flash: flashmode.Config{
			BootPin:     pick(fv.bootPin, "", fc.BootPin),
			ResetPin:    pick(fv.resetPin, "", fc.ResetPin),
			ActiveLow:   fv.activeLow || fc.ActiveLow,
			ResetPulse:  fc.ResetPulse.Duration,
			SettleDelay: fc.SettleDelay.Duration,
		},
	}

	if err := cfg.resolveUSBID(fv, fc.USBID, getenv(envUSBID)); err != nil {
		return nil, err
	}

	positional := fs.Args()
	if cfg.list {
		if len(positional) > 0 {
			return nil, fmt.Errorf("%w: -list takes no arguments", errUsage)
		}
	} else {
		switch len(positional) {
		case 1:
			cfg.imagePath = positional[0]
		case 2:
			cfg.imagePath = positional[0]
			if fv.device != "" {
				return nil, fmt.Errorf("%w: device given both as -device and as an argument", errUsage)
			}
			fv.device = positional[1]
		default:
			return nil, fmt.Errorf("%w: expected a firmware file", errUsage)
		}
	}

	cfg.device = pick(fv.device, getenv(envDevice), fc.Device)
	return cfg, cfg.resolveTransport(pick(fv.transport, getenv(envTransport), fc.Transport))
}

// resolveUSBID applies -vid/-pid over CAFLASH_USB_ID over usb_id.
func (c *config) resolveUSBID(fv flagValues, fileID, envID string) error {
	for _, id := range []string{fileID, envID} {
		if id == "" {
			continue
		}
		vid, pid, err := detection.SplitVIDPID(id)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		c.vid, c.pid = vid, pid
	}
	if fv.vid != "" {
		vid, err := detection.ParseID(fv.vid)
		if err != nil {
			return fmt.Errorf("%w: -vid: %w", errUsage, err)
		}
		c.vid = vid
	}
	if fv.pid != "" {
		pid, err := detection.ParseID(fv.pid)
		if err != nil {
			return fmt.Errorf("%w: -pid: %w", errUsage, err)
		}
		c.pid = pid
	}
	return nil
}

// resolveTransport picks tty when a device path was given and no
// transport was named, bridge otherwise.
func (c *config) resolveTransport(name string) error {
	if name == "" {
		c.transport = caflash.TransportBridge
		if c.device != "" {
			c.transport = caflash.TransportTTY
		}
		return nil
	}

	t, err := caflash.ParseTransportType(name)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	c.transport = t
	if t == caflash.TransportTTY && c.device == "" && !c.list {
		return fmt.Errorf("%w: the tty transport needs a serial device path", errUsage)
	}
	return nil
}

// usbID returns the bridge IDs as "VVVV:PPPP"
func (c *config) usbID() string {
	return detection.FormatVIDPID(c.vid, c.pid)
}

// pick returns the first non-empty value
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
