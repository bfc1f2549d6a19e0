package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spakin/netpbm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/params"
	"github.com/jeeftor/rowpilot/internal/qmp"
)

var (
	cfgFile    string
	logLevel   string
	socketPath string
	vmid       string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rowpilot",
	Short: "Run on-screen macros against a VM once per data row",
	Long: `rowpilot replays a macro of typed steps (click, type, wait, find text
or images, branch, loop) against a QEMU virtual machine over QMP, once for
every pending row of a CSV, YAML or JSON data file, and writes each row's
status back to the file.

Settings can come from flags, ROWPILOT_* environment variables or a
.rowpilot.yaml config file, in that order of priority.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel == "" {
			logLevel = viper.GetString(params.KeyLogLevel)
		}
		logging.Init(logLevel)
		logging.Debug("Using config file", "path", viper.ConfigFileUsed())
	},
}

// exitError carries a specific process exit status out of a command
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Silent is true because the command already reported the outcome
func (e *exitError) Silent() bool { return true }

// ExitCode returns the status the process should exit with for err
func ExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rowpilot.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "", "custom QMP socket path (for SSH tunneling)")
	rootCmd.PersistentFlags().StringVar(&vmid, "vmid", "", "Proxmox VM id whose QMP socket to use")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix(params.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetDefault(params.KeyLogLevel, "info")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath("/etc/rowpilot")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rowpilot")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

// connectVM resolves the VM id and socket and connects a QMP client.
// keyDelay is the --key-delay flag value, empty when unset.
func connectVM(ctx context.Context, r *params.Resolver, keyDelay string) (*qmp.Client, error) {
	sock := r.ResolveSocket(socketPath)
	id := ""
	if sock.Value == "" {
		info, err := r.ResolveVMIDWithInfo([]string{vmid}, 0)
		if err != nil {
			return nil, err
		}
		id = info.Value
		logging.Debug("Resolved VM ID", "vmid", id, "source", info.Source)
	} else if info, err := r.ResolveVMIDWithInfo([]string{vmid}, 0); err == nil {
		id = info.Value
	}

	client := qmp.NewWithSocketPath(id, sock.Value)
	delay, err := r.ResolveKeyDelay(keyDelay)
	if err != nil {
		return nil, err
	}
	client.KeyDelay = delay
	client.ScreenshotDir = r.String(params.KeyScreenshotDir, "", "").Value

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to VM %s: %w", id, err)
	}
	return client, nil
}

// flagValue returns a flag's value when it was set on the command line
func flagValue(cmd *cobra.Command, name string) string {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return ""
	}
	return f.Value.String()
}

// loadImage decodes a PNG or a netpbm (PPM/PGM/PBM) screenshot
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(f)
	default:
		img, err = netpbm.Decode(f, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// savePNG writes img to path
func savePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
