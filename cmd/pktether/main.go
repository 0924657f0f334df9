// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// pktether remotely controls a Pentax DSLR tethered over USB.
//
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"
	"unsafe"

	"github.com/go-chi/chi/middleware"
	"github.com/grandcat/zeroconf"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"golang.org/x/sys/unix"
	yml "gopkg.in/yaml.v2"

	"github.com/dswarbrick/pslr"
	"github.com/dswarbrick/pslr/cameradb"
	"github.com/dswarbrick/pslr/httpapi"
	"github.com/dswarbrick/pslr/scsi"
)

const (
	_LINUX_CAPABILITY_VERSION_3 = 0x20080522

	CAP_SYS_RAWIO = 1 << 17
	CAP_SYS_ADMIN = 1 << 21
)

var (
	// Version is the version number. Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "pktether.yml"
	k              = koanf.New(".")
)

type config struct {
	// Device is the SCSI generic node of the camera, or "auto" to use the first camera found
	Device string `yaml:"Device"`

	// Destination is the directory images are saved to
	Destination string `yaml:"Destination"`

	// Keep images on the camera after download
	KeepOnCamera bool `yaml:"KeepOnCamera"`

	// CameraDb is an optional camera database replacing the built-in one
	CameraDb string `yaml:"CameraDb"`

	PollInterval time.Duration `yaml:"PollInterval"`
	Addr         string        `yaml:"Addr"`
	LogLevel     string        `yaml:"LogLevel"`

	// Advertise the HTTP server over mDNS as _http._tcp
	Advertise bool `yaml:"Advertise"`
}

type capHeader struct {
	version uint32
	pid     int
}

type capData struct {
	effective   uint32
	permitted   uint32
	inheritable uint32
}

type capsV3 struct {
	hdr  capHeader
	data [2]capData
}

// checkCaps invokes the capget syscall to check for necessary capabilities. Note that this depends
// on the binary having the capabilities set (i.e., via the `setcap` utility), and on VFS support.
// Alternatively, if the binary is executed as root, it automatically has all capabilities set.
func checkCaps() {
	caps := new(capsV3)
	caps.hdr.version = _LINUX_CAPABILITY_VERSION_3

	// Use RawSyscall since we do not expect it to block
	_, _, e1 := unix.RawSyscall(unix.SYS_CAPGET, uintptr(unsafe.Pointer(&caps.hdr)), uintptr(unsafe.Pointer(&caps.data)), 0)
	if e1 != 0 {
		slog.Warn("capget() failed", "err", e1.Error())
		return
	}

	if (caps.data[0].effective&CAP_SYS_RAWIO == 0) && (caps.data[0].effective&CAP_SYS_ADMIN == 0) {
		slog.Warn("neither cap_sys_rawio nor cap_sys_admin are in effect, device access will probably fail")
	}
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Device:       "auto",
		Destination:  ".",
		PollInterval: pslr.DEFAULT_POLL_INTERVAL,
		Addr:         ":8000",
		LogLevel:     "info",
		Advertise:    true,
	}, "koanf"), nil)

	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) && !strings.Contains(err.Error(), "no such") {
			fatal("error loading config", err)
		}
	}
}

func loadconfig() config {
	c := config{}
	if err := k.Unmarshal("", &c); err != nil {
		fatal("error parsing config", err)
	}
	return c
}

func setuplogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

// abort releases the camera, then exits.
func abort(s *pslr.Session, msg string, err error) {
	s.Disconnect()
	fatal(msg, err)
}

func root() {
	str := `pktether remotely controls Pentax DSLR cameras tethered over USB.

Usage:
	pktether <command> [arguments]

Commands:
	scan                    list attached cameras
	status                  print the camera status and all parameters
	shoot [count]           take pictures and download them
	focus                   trigger autofocus
	set <param> <value>...  change parameters, e.g. "set aperture 5.6 shutter 1/250"
	serve                   serve remote control over HTTP
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `pktether is amenable to configuration via its .yml file. When no configuration
is provided, the defaults are used. The command mkconf generates the configuration
file with the default values.

Device 'auto' uses the first Pentax or Ricoh camera found on the SCSI generic bus.

Device access needs the cap_sys_rawio capability, or running as root.

Numeric parameters take f-numbers (5.6), exposure times (1/250, 2.5), sensitivities
(400), EV offsets (+0.7) or "auto". Enumerated parameters take one of the names
listed by the status command.`
	fmt.Println(str)
}

func mkconf() {
	c := loadconfig()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		fatal("cannot create config", err)
	}
	defer f.Close()
	if err := yml.NewEncoder(f).Encode(c); err != nil {
		fatal("cannot write config", err)
	}
}

func printconf() {
	c := loadconfig()
	if err := yml.NewEncoder(os.Stdout).Encode(c); err != nil {
		fatal("cannot write config", err)
	}
}

func pversion() {
	fmt.Printf("pktether version %v\n", Version)
	fmt.Printf("Built with %s on %s (%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func scan() {
	devices := scsi.ScanDevices()

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tVENDOR\tMODEL\tCAMERA")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", d.Name, d.Vendor, d.Model, d.IsCamera())
	}
	w.Flush()
}

// findCamera resolves the "auto" device setting.
func findCamera(device string) (string, error) {
	if device != "auto" && device != "" {
		return device, nil
	}

	for _, d := range scsi.ScanDevices() {
		if d.IsCamera() {
			return d.Name, nil
		}
	}

	return "", errors.New("no camera found")
}

func connect(c config) *pslr.Session {
	checkCaps()

	device, err := findCamera(c.Device)
	if err != nil {
		fatal("cannot find camera", err)
	}

	db, err := cameradb.OpenCameraDb(c.CameraDb)
	if err != nil {
		fatal("cannot open camera db", err)
	}

	s, err := pslr.Open(pslr.Config{
		Device:       device,
		Destination:  c.Destination,
		PollInterval: c.PollInterval,
		CameraDb:     &db,
		Logger:       slog.Default(),
	})
	if err != nil {
		fatal("cannot connect", err)
	}

	if c.KeepOnCamera {
		if err := s.SetString(pslr.FileDestination, pslr.DestinationBoth); err != nil {
			abort(s, "cannot set destination", err)
		}
	}

	return s
}

func printValues(s *pslr.Session) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
	for _, p := range pslr.Parameters() {
		if p.Kind() == pslr.Numeric {
			fmt.Fprintf(w, "%s\t%s\t[%s .. %s]\n", p, pslr.FormatStop(p, s.StopValue(p)),
				pslr.FormatStop(p, s.Minimum(p)), pslr.FormatStop(p, s.Maximum(p)))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p, s.StringValue(p), strings.Join(s.Options(p), " "))
		}
	}
	if ev, ok := s.ExposureValue(); ok {
		fmt.Fprintf(w, "Exposure value\t%.1f\n", ev)
	}
	w.Flush()
}

func status(c config) {
	s := connect(c)
	defer s.Disconnect()

	fmt.Printf("%s (%#x)\n\n", s.Model().Name, s.Model().ID)
	if st, ok := s.Status(); ok {
		st.PrintStatus(os.Stdout)
		fmt.Println()
	}
	printValues(s)
}

func shoot(c config, args []string) {
	count := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fatal("invalid count", fmt.Errorf("%q", args[0]))
		}
		count = n
	}

	s := connect(c)
	defer s.Disconnect()

	for i := 0; i < count; i++ {
		path, err := s.Shoot()
		if err != nil {
			abort(s, "shoot failed", err)
		}
		fmt.Println(path)
	}
}

func focus(c config) {
	s := connect(c)
	defer s.Disconnect()

	if err := s.Focus(); err != nil {
		abort(s, "focus failed", err)
	}
}

func set(c config, args []string) {
	if len(args) == 0 || len(args)%2 != 0 {
		fatal("usage: set <param> <value> [<param> <value>...]", errors.New("odd number of arguments"))
	}

	s := connect(c)
	defer s.Disconnect()

	for i := 0; i < len(args); i += 2 {
		p, err := pslr.ParseParameter(args[i])
		if err != nil {
			abort(s, "invalid parameter", err)
		}

		if p.Kind() == pslr.Enumerated {
			err = s.SetString(p, args[i+1])
		} else {
			v, perr := pslr.ParseStop(p, args[i+1])
			if err = perr; err == nil {
				err = s.SetStop(p, v)
			}
		}
		if err != nil {
			abort(s, "invalid value", err)
		}
	}

	if err := s.ApplyChanges(); err != nil {
		abort(s, "camera refused change", err)
	}
	if err := s.UpdateValues(); err != nil {
		abort(s, "cannot read back values", err)
	}

	printValues(s)
}

func serve(c config) {
	s := connect(c)
	defer s.Disconnect()

	s.StartPolling(c.PollInterval)

	srv := &http.Server{
		Addr:    c.Addr,
		Handler: httpapi.NewRouter(s, middleware.Logger, middleware.Recoverer),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if c.Advertise {
		if mdns, err := advertise(s, c.Addr); err != nil {
			slog.Warn("mDNS registration failed", "err", err)
		} else {
			defer mdns.Shutdown()
		}
	}

	slog.Info("now listening for requests", "addr", c.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "err", err)
	}
}

// advertise registers the HTTP server over mDNS under the camera model name.
func advertise(s *pslr.Session, addr string) (*zeroconf.Server, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	name := "pktether " + s.Model().Name
	srv, err := zeroconf.Register(name, "_http._tcp", "local.", port,
		[]string{"txtvers=1", "model=" + s.Model().Name, "path=/status"}, nil)
	if err != nil {
		return nil, err
	}

	slog.Info("mDNS registered", "name", name, "service", "_http._tcp")
	return srv, nil
}

func main() {
	setupconfig()
	cfg := loadconfig()
	setuplogging(cfg.LogLevel)

	args := os.Args[1:]
	if len(args) < 1 {
		root()
		return
	}

	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "version":
		pversion()
	case "scan":
		scan()
	case "status":
		status(cfg)
	case "shoot":
		shoot(cfg, args)
	case "focus":
		focus(cfg)
	case "set":
		set(cfg, args)
	case "serve":
		serve(cfg)
	default:
		root()
		os.Exit(1)
	}
}
