package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	ncmdump "github.com/devgianlu/go-ncmdump"
)

type Config struct {
	LogLevel  string `koanf:"log_level"`
	OutputDir string `koanf:"output_dir"`
	Workers   int    `koanf:"workers"`
	Overwrite bool   `koanf:"overwrite"`
	Notify    bool   `koanf:"notify"`
	Watch     struct {
		Enabled bool `koanf:"enabled"`
	} `koanf:"watch"`
	Server struct {
		Enabled     bool   `koanf:"enabled"`
		Address     string `koanf:"address"`
		Port        int    `koanf:"port"`
		AllowOrigin string `koanf:"allow_origin"`
		CertFile    string `koanf:"cert_file"`
		KeyFile     string `koanf:"key_file"`
		MaxClients  int    `koanf:"max_clients"`
		Announce    bool   `koanf:"announce"`
	} `koanf:"server"`

	// positional arguments: files or directories to convert or watch
	inputs []string
}

func loadConfig(cfg *Config, args []string) error {
	f := pflag.NewFlagSet("ncmdump", pflag.ContinueOnError)
	f.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file or directory>...\n\nFlags:\n%s", os.Args[0], f.FlagUsages())
	}

	configPath := f.String("config_path", "config.yml", "the configuration file path")
	f.String("log_level", "", "the log level")
	f.String("output_dir", "", "write converted files here instead of next to the input")
	f.Int("workers", 0, "number of conversion workers")
	f.Bool("overwrite", false, "overwrite existing output files")
	f.Bool("notify", false, "send desktop notifications over the session bus")
	f.Bool("watch.enabled", false, "watch the given directories for new files")
	f.Bool("server.enabled", false, "enable the http api server")
	f.String("server.address", "", "the api server listen address")
	f.Int("server.port", 0, "the api server listen port")
	if err := f.Parse(args); err != nil {
		return err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"log_level":      "info",
		"workers":        runtime.NumCPU(),
		"server.address": "",
		"server.port":    3678,
	}, "."), nil); err != nil {
		return fmt.Errorf("failed loading default configuration: %w", err)
	}

	if err := k.Load(file.Provider(*configPath), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed loading configuration file: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return fmt.Errorf("failed loading command line configuration: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("failed unmarshalling configuration: %w", err)
	}

	cfg.inputs = f.Args()
	return nil
}

type App struct {
	cfg *Config
	log ncmdump.Logger

	server   *ApiServer
	notifier *Notifier

	decoded atomic.Int64
	failed  atomic.Int64
	watched []string
}

func NewApp(cfg *Config) *App {
	app := &App{cfg: cfg, log: LogrusAdapter{log.NewEntry(log.StandardLogger())}}

	if cfg.Notify {
		var err error
		app.notifier, err = NewNotifier()
		if err != nil {
			// notifications are best effort, keep going without them
			app.log.WithError(err).Warnf("failed connecting to the session bus")
		}
	}

	return app
}

// emitResult updates the counters and pushes a websocket event for one
// finished conversion.
func (app *App) emitResult(path string, res ConvertResult) {
	if res.Err == nil {
		app.decoded.Add(1)
	} else {
		app.failed.Add(1)
	}

	if app.server != nil {
		app.server.Emit(newConvertEvent(path, res))
	}
}

// lockInstance takes the single instance lock for long running modes.
func lockInstance() (*flock.Flock, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed getting cache directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "ncmdump"), 0o755); err != nil {
		return nil, fmt.Errorf("failed creating lock directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "ncmdump", "lockfile"))
	if locked, err := lock.TryLock(); err != nil {
		return nil, fmt.Errorf("failed acquiring instance lock: %w", err)
	} else if !locked {
		return nil, fmt.Errorf("another instance is already running")
	}

	return lock, nil
}

func main() {
	var cfg Config
	if err := loadConfig(&cfg, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		log.WithError(err).Fatal("failed loading configuration")
	}

	logLevel, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatalf("invalid log level: %s", cfg.LogLevel)
	}
	log.SetLevel(logLevel)

	log.Infof("%s", ncmdump.VersionString())

	if len(cfg.inputs) == 0 && !cfg.Server.Enabled {
		log.Fatal("no input files given")
	}

	app := NewApp(&cfg)

	longRunning := cfg.Watch.Enabled || cfg.Server.Enabled
	if longRunning {
		lock, err := lockInstance()
		if err != nil {
			log.WithError(err).Fatal("failed locking instance")
		}
		defer func() { _ = lock.Unlock() }()
	}

	if cfg.Server.Enabled {
		app.server, err = NewApiServer(&cfg)
		if err != nil {
			log.WithError(err).Fatal("failed creating api server")
		}
		defer app.server.Close()

		go app.serveRequests()
	}

	switch {
	case cfg.Watch.Enabled:
		if err := app.Watch(cfg.inputs); err != nil {
			log.WithError(err).Fatal("failed watching directories")
		}
	case len(cfg.inputs) > 0:
		failedCount := app.ConvertAll(cfg.inputs)
		app.notifier.BatchDone(int(app.decoded.Load()), failedCount)

		if failedCount > 0 {
			os.Exit(1)
		}
	default:
		// api server only, block forever
		select {}
	}
}
