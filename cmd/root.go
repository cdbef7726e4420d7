/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	serial "github.com/allbin/go-serial-bindings"
	"github.com/allbin/go-serial-bindings/mock"
)

var (
	cfgFile string
	logger  = zerolog.Nop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serialbind",
	Short: "Talk to serial ports through the asynchronous bindings",
	Long: `serialbind lists, configures and exchanges data with serial ports.

Every command goes through a binding. The driver decides which one:
  termios  native Linux termios (default on Linux)
  bugst    go.bug.st/serial (default elsewhere)
  mock     in-memory virtual ports, no hardware needed

Settings can come from flags, from SERIALBIND_* environment variables
or from a config file ($HOME/.serialbind.yaml by default).

Example usage:
  serialbind list --table
  serialbind send "AT" /dev/ttyUSB0 --newline
  serialbind connect /dev/ROBOT --driver mock --mock-ready "OK"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.serialbind.yaml)")
	pf.String("driver", "", "Binding driver: termios, bugst, mock (default: platform)")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.IntP("baud", "b", 9600, "Baud rate")
	pf.Int("data-bits", 8, "Data bits: 5, 6, 7, 8")
	pf.Int("stop-bits", 1, "Stop bits: 1, 2")
	pf.String("parity", "none", "Parity: none, odd, even, mark, space")
	pf.StringP("flow-control", "f", "none", "Flow control: none, rtscts, xonxoff")
	pf.Bool("lock", true, "Take an exclusive lock on the port")
	pf.Int("vmin", -1, "termios VMIN override (-1 keeps the platform default)")
	pf.Int("vtime", -1, "termios VTIME override in tenths of a second (-1 keeps the platform default)")
	pf.StringSlice("mock-ports", []string{"/dev/ROBOT"}, "Virtual ports created by the mock driver")
	pf.Bool("mock-echo", true, "Virtual ports echo written data")
	pf.String("mock-ready", mock.DefaultReadyData, "Data a virtual port sends right after it is opened (empty for none)")

	cobra.CheckErr(viper.BindPFlags(pf))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".serialbind")
	}

	viper.SetEnvPrefix("SERIALBIND")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setupLogger() error {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

func bindingTunables() serial.Tunables {
	t := serial.Tunables{}
	if v := viper.GetInt("vmin"); v >= 0 {
		t[serial.TunableVMin] = v
	}
	if v := viper.GetInt("vtime"); v >= 0 {
		t[serial.TunableVTime] = v
	}
	return t
}

// newBinding builds a closed binding for the configured driver. The
// returned release func frees driver resources once the binding is done.
// With the mock driver, paths are registered as virtual ports in addition
// to --mock-ports.
func newBinding(disconnect serial.DisconnectFunc, paths ...string) (serial.Binding, func(), error) {
	opts := []serial.BindingOption{
		serial.WithLogger(logger),
		serial.WithBindingTunables(bindingTunables()),
	}

	driver := viper.GetString("driver")
	if driver == "mock" {
		reg, err := newMockRegistry(paths...)
		if err != nil {
			return nil, nil, err
		}
		b, err := mock.New(reg, disconnect, opts...)
		if err != nil {
			reg.Close()
			return nil, nil, err
		}
		return b, reg.Close, nil
	}

	m, err := serial.MechanismByName(driver)
	if err != nil {
		return nil, nil, err
	}
	b, err := serial.NewBinding(disconnect, append(opts, serial.WithMechanism(m))...)
	if err != nil {
		return nil, nil, err
	}
	return b, func() {}, nil
}

func newMockRegistry(paths ...string) (*mock.Registry, error) {
	reg := mock.NewRegistry(mock.WithRegistryLogger(logger))
	portOpts := []mock.PortOption{
		mock.WithEcho(viper.GetBool("mock-echo")),
		mock.WithReadyData([]byte(viper.GetString("mock-ready"))),
	}
	seen := map[string]bool{}
	for _, p := range append(viper.GetStringSlice("mock-ports"), paths...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if err := reg.CreatePort(p, portOpts...); err != nil {
			reg.Close()
			return nil, err
		}
	}
	return reg, nil
}

// session is an open port with everything needed to tear it down.
type session struct {
	conn    *serial.Conn
	lost    chan error
	release func()
}

// openSession opens path with the configured options and waits for the
// open to complete or ctx to end.
func openSession(ctx context.Context, path string) (*session, error) {
	opts, err := openOptions()
	if err != nil {
		return nil, err
	}

	lost := make(chan error, 1)
	b, release, err := newBinding(func(err error) {
		logger.Warn().Err(err).Str("path", path).Msg("port disconnected")
		select {
		case lost <- err:
		default:
		}
	}, path)
	if err != nil {
		return nil, err
	}

	conn, err := serial.OpenConn(ctx, b, path, opts)
	if err != nil {
		release()
		return nil, err
	}
	logger.Debug().Str("path", path).Int("baud", opts.BaudRate).Msg("port open")
	return &session{conn: conn, lost: lost, release: release}, nil
}

func (s *session) Binding() serial.Binding {
	return s.conn.Binding()
}

// Close closes the port, giving the binding a moment to finish.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.conn.CloseContext(ctx); err != nil {
		logger.Debug().Err(err).Msg("close")
	}
	s.release()
}
