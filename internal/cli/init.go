package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/thruflo/loopsh/internal/config"
	"github.com/thruflo/loopsh/internal/driver"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .loopsh/ directory structure",
	Long: `Creates the .loopsh/ directory with default configuration and templates.

This command sets up:
  - config.yaml with limits, assistant and path settings
  - assistant.env for environment variables passed to the assistant
  - templates/ with the prompts used for spec creation, planning and building`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing configuration and templates")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := workDir()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := config.Dir(cwd)
	if dirExists(dir) && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", dir)
	}

	for _, d := range []string{dir, filepath.Join(dir, "tasks"), filepath.Join(dir, "templates")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(cwd, &cfg); err != nil {
		return err
	}
	if err := writeAssistantEnv(dir); err != nil {
		return fmt.Errorf("failed to write assistant.env: %w", err)
	}
	if err := writeGitignore(dir); err != nil {
		return fmt.Errorf("failed to write .gitignore: %w", err)
	}
	if err := writeTemplateFiles(dir); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", dir)
	return nil
}

// dirExists checks if a directory exists
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func writeAssistantEnv(dir string) error {
	content := `# Environment variables passed to the assistant CLI (gitignored)
#
# ANTHROPIC_API_KEY="..."
`
	return os.WriteFile(filepath.Join(dir, "assistant.env"), []byte(content), 0o600)
}

func writeGitignore(dir string) error {
	content := `# Credentials
assistant.env

# Per-task checkpoints and sessions
tasks/
`
	return os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(content), 0o644)
}

func writeTemplateFiles(dir string) error {
	names := make([]string, 0, len(driver.DefaultTemplates))
	for name := range driver.DefaultTemplates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, "templates", name)
		if err := os.WriteFile(path, []byte(driver.DefaultTemplates[name]), 0o644); err != nil {
			return fmt.Errorf("failed to write template %s: %w", name, err)
		}
	}
	return nil
}
