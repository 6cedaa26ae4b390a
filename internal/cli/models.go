package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sermohq/sermo/internal/whisper"
)

func newModelsCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List supported model sizes and their install state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			for _, name := range whisper.ModelNames() {
				resolved, err := whisper.ResolveModel(name, modelDir)
				if err != nil {
					return err
				}

				state := "not downloaded"
				if !resolved.NeedsDownload {
					info, err := os.Stat(resolved.Path)
					if err != nil {
						return fmt.Errorf("stat model %s: %w", name, err)
					}
					state = fmt.Sprintf("installed (%.1f GB)", float64(info.Size())/(1<<30))
				}

				marker := " "
				if name == app.model {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %s\n", marker, name, state)
			}
			return nil
		},
	}

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	return cmd
}
