// Package params resolves run settings from, in priority order, an explicit
// command-line value, ROWPILOT_* environment variables, the config file and
// built-in defaults.
package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/ocr"
)

// EnvPrefix is prepended to setting keys to form environment variable names
const EnvPrefix = "ROWPILOT"

// Setting keys shared by flags, environment and config file
const (
	KeyVMID          = "vm_id"
	KeySocket        = "socket"
	KeyTrainingData  = "training_data"
	KeyRowsFile      = "rows_file"
	KeyKeyDelay      = "key_delay"
	KeyRowDelay      = "row_delay"
	KeyRetryDelay    = "retry_delay"
	KeyColumns       = "columns"
	KeyRows          = "rows"
	KeyServe         = "serve"
	KeyDryRun        = "dry_run"
	KeyLogLevel      = "log_level"
	KeyScreenshotDir = "screenshot_dir"
)

// Where a value came from
const (
	SourceArgument    = "argument"
	SourceEnvironment = "environment"
	SourceConfig      = "config"
	SourceDefault     = "default"
)

// ParameterInfo is a resolved value and its source, for --verbose output
type ParameterInfo struct {
	Key    string
	Value  string
	Source string
}

// Resolver reads settings from a viper instance
type Resolver struct {
	v *viper.Viper
}

// NewParameterResolver uses the global viper instance configured by the CLI
func NewParameterResolver() *Resolver {
	return New(viper.GetViper())
}

// New creates a resolver over v
func New(v *viper.Viper) *Resolver {
	return &Resolver{v: v}
}

// EnvName returns the environment variable for a key
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// String resolves a string setting. An empty explicit value counts as unset.
func (r *Resolver) String(key, explicit, def string) ParameterInfo {
	info := ParameterInfo{Key: key}
	switch {
	case explicit != "":
		info.Value, info.Source = explicit, SourceArgument
	case os.Getenv(EnvName(key)) != "":
		info.Value, info.Source = os.Getenv(EnvName(key)), SourceEnvironment
	case r.v.IsSet(key) && r.v.GetString(key) != "":
		info.Value, info.Source = r.v.GetString(key), SourceConfig
	default:
		info.Value, info.Source = def, SourceDefault
	}
	return info
}

// ResolveVMIDWithInfo takes the VM id from args[argIndex] or the settings.
// The id must be numeric.
func (r *Resolver) ResolveVMIDWithInfo(args []string, argIndex int) (ParameterInfo, error) {
	explicit := ""
	if argIndex >= 0 && argIndex < len(args) {
		explicit = args[argIndex]
	}
	info := r.String(KeyVMID, explicit, "")
	if info.Value == "" {
		return ParameterInfo{}, fmt.Errorf("VM ID is required: provide --vmid or set %s", EnvName(KeyVMID))
	}
	if _, err := strconv.Atoi(info.Value); err != nil {
		return ParameterInfo{}, fmt.Errorf("invalid VM ID '%s' from %s: must be numeric", info.Value, info.Source)
	}
	return info, nil
}

// ResolveSocket returns a custom QMP socket path, or empty for the default
func (r *Resolver) ResolveSocket(explicit string) ParameterInfo {
	return r.String(KeySocket, explicit, "")
}

// ResolveTrainingData returns the OCR training file path
func (r *Resolver) ResolveTrainingData(explicit string) ParameterInfo {
	return r.String(KeyTrainingData, explicit, ocr.DefaultTrainingDataPath())
}

// ResolveRowsFile returns the row file path, or empty when none is configured
func (r *Resolver) ResolveRowsFile(explicit string) ParameterInfo {
	return r.String(KeyRowsFile, explicit, "")
}

// ResolveServeAddr returns the HTTP listen address for metrics and events
func (r *Resolver) ResolveServeAddr(explicit string) ParameterInfo {
	return r.String(KeyServe, explicit, "")
}

// Duration resolves a duration setting such as "250ms"
func (r *Resolver) Duration(key, explicit string, def time.Duration) (time.Duration, error) {
	info := r.String(key, explicit, "")
	if info.Value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(info.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s' from %s: %w", key, info.Value, info.Source, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s '%s': must not be negative", key, info.Value)
	}
	return d, nil
}

// ResolveKeyDelay returns the pause between typed characters
func (r *Resolver) ResolveKeyDelay(explicit string) (time.Duration, error) {
	return r.Duration(KeyKeyDelay, explicit, constants.DefaultKeyDelay)
}

// ResolveRowDelay returns the pause between rows
func (r *Resolver) ResolveRowDelay(explicit string) (time.Duration, error) {
	return r.Duration(KeyRowDelay, explicit, constants.RowDelay)
}

// ResolveRetryDelay returns the pause between step attempts
func (r *Resolver) ResolveRetryDelay(explicit string) (time.Duration, error) {
	return r.Duration(KeyRetryDelay, explicit, constants.RetryDelay)
}

// Bool resolves a boolean setting
func (r *Resolver) Bool(key, explicit string) (bool, error) {
	info := r.String(key, explicit, "false")
	b, err := strconv.ParseBool(info.Value)
	if err != nil {
		return false, fmt.Errorf("invalid %s '%s' from %s: %w", key, info.Value, info.Source, err)
	}
	return b, nil
}

// ResolveGrid returns the OCR console grid, validated
func (r *Resolver) ResolveGrid(explicitColumns, explicitRows string) (ocr.Grid, error) {
	cols, err := r.int(KeyColumns, explicitColumns, constants.DefaultGridColumns)
	if err != nil {
		return ocr.Grid{}, err
	}
	rows, err := r.int(KeyRows, explicitRows, constants.DefaultGridRows)
	if err != nil {
		return ocr.Grid{}, err
	}
	if err := constants.ValidateGrid(cols, rows); err != nil {
		return ocr.Grid{}, err
	}
	return ocr.Grid{Columns: cols, Rows: rows}, nil
}

func (r *Resolver) int(key, explicit string, def int) (int, error) {
	info := r.String(key, explicit, strconv.Itoa(def))
	n, err := strconv.Atoi(info.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s' from %s: must be an integer", key, info.Value, info.Source)
	}
	return n, nil
}
