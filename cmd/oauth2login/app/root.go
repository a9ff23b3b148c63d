// Package app provides the commands of the oauth2login CLI.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/b4fun/oauth2login"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "OAUTH2LOGIN"

// Persistent flag names. Each can also be set from the environment, e.g.
// OAUTH2LOGIN_APP_DATA_DIR.
const (
	flagAppDataDir = "app-data-dir"
	flagKeysURL    = "keys-url"
	flagPublicKey  = "public-key-file"
	flagCAFile     = "ca-file"
	flagDebug      = "debug"
)

// NewRootCmd creates the root command of the oauth2login CLI.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "oauth2login",
		Short: "Dry-run the OAuth2 login settings of an application data directory",
		Long: `oauth2login reads the oauth2.properties file of an application data
directory and lets operators check bearer tokens, user info mappings and
identity reconciliation without a running server.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	flags := cmd.PersistentFlags()
	flags.String(flagAppDataDir, ".", "Application data directory holding oauth2.properties")
	flags.String(flagKeysURL, "", "Override the JWKS URL")
	flags.String(flagPublicKey, "", "Override the public key file, relative to the app data dir")
	flags.String(flagCAFile, "", "CA bundle trusted for identity provider requests")
	flags.Bool(flagDebug, false, "Enable debug logging")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	cmd.AddCommand(
		newVerifyCmd(v),
		newMapCmd(v),
		newSimulateCmd(v),
		newUserInfoCmd(v),
	)

	return cmd
}

func newLogger(v *viper.Viper, w io.Writer) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if v.GetBool(flagDebug) {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core).Sugar()
}

// loadParams reads oauth2.properties and applies the flag overrides. A
// missing properties file is not an error: flags alone can configure keys.
func loadParams(cmd *cobra.Command, v *viper.Viper) (oauth2login.Params, error) {
	logger := newLogger(v, cmd.ErrOrStderr())
	appDataDir := v.GetString(flagAppDataDir)

	params, err := oauth2login.LoadParams(appDataDir)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		logger.Warnw("no properties file, using flags only", "appDataDir", appDataDir)
		params = oauth2login.Params{AppDataDir: appDataDir}
	default:
		return oauth2login.Params{}, err
	}

	if s := v.GetString(flagKeysURL); s != "" {
		params.KeysURL = s
	}
	if s := v.GetString(flagPublicKey); s != "" {
		params.PublicKey = ""
		params.PublicKeyFilename = s
	}
	params.CAFile = v.GetString(flagCAFile)
	params.Logger = logger

	return params, nil
}

// readInput reads the named file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(name) // #nosec G304 - operator supplied path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
