package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sermohq/sermo/internal/server"
	"github.com/sermohq/sermo/internal/whisper"
)

func newServeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transcription HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			v.SetEnvPrefix("SERMO")
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			for _, name := range []string{"addr", "model-dir", "auto-download", "no-progress", "max-upload-mb"} {
				if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
					return fmt.Errorf("bind flag %s: %w", name, err)
				}
			}

			app.modelDir = v.GetString("model-dir")
			app.autoDownload = v.GetBool("auto-download")
			app.noProgress = v.GetBool("no-progress")

			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			cache := whisper.NewCache(whisper.CacheOptions{
				ModelDir:     modelDir,
				Backend:      whisper.NewCPPBackend(app.log()),
				AutoDownload: app.autoDownload,
				NoProgress:   app.noProgress,
				Logger:       app.log(),
			})

			svc := server.New(server.Config{
				Addr:        v.GetString("addr"),
				Engines:     server.FromCache(cache),
				Logger:      app.log(),
				MaxUploadMB: v.GetInt("max-upload-mb"),
			})

			return svc.Run(cmd.Context())
		},
	}

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	cmd.Flags().String("addr", ":8080", "Listen address for the HTTP API")
	cmd.Flags().String("model-dir", app.modelDir, "Directory where models are stored")
	cmd.Flags().Bool("auto-download", app.autoDownload, "Automatically download missing models")
	cmd.Flags().Int("max-upload-mb", 0, "Default upload size limit in MB (0 uses the built-in default)")

	return cmd
}
