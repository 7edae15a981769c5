package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/vision"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage face recognition models",
}

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the model weight files of the configured engine",
	Long: `Download every weight file the configured vision engine needs into MODELS_PATH.
Files already present are skipped unless --force is given.

Examples:
  faceauth models fetch
  VISION_ENGINE=dlib faceauth models fetch --force`,
	RunE: runModelsFetch,
}

var modelsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Load the models and report whether detection is ready",
	RunE:  runModelsStatus,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsFetchCmd)
	modelsCmd.AddCommand(modelsStatusCmd)

	modelsFetchCmd.Flags().Bool("force", false, "Download files that already exist")
	modelsStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

func runModelsFetch(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	force := mustGetBool(cmd, "force")
	source := cfg.ModelSource()
	if source == "" {
		return fmt.Errorf("no download source for engine %q, set MODELS_BASE_URL", cfg.Vision.Engine)
	}
	files := cfg.Models.FilesFor(cfg.Vision.Engine)
	if len(files) == 0 {
		return fmt.Errorf("engine %q needs no weight files", cfg.Vision.Engine)
	}

	if err := os.MkdirAll(cfg.Vision.ModelsPath, 0o755); err != nil {
		return fmt.Errorf("creating models directory: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, name := range files {
		dest := filepath.Join(cfg.Vision.ModelsPath, name)
		if _, err := os.Stat(dest); err == nil && !force {
			fmt.Printf("%s already present, skipping\n", name)
			continue
		}
		if err := downloadModelFile(ctx, client, source+"/"+name, dest); err != nil {
			return fmt.Errorf("downloading %s: %w", name, err)
		}
	}

	fmt.Printf("Models for the %s engine are in %s\n", cfg.Vision.Engine, cfg.Vision.ModelsPath)
	return nil
}

// downloadModelFile streams url into dest through a temporary file so a
// failed download never leaves a truncated model behind.
func downloadModelFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(dest))
	if _, err := io.Copy(io.MultiWriter(tmp, bar), resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("moving file into place: %w", err)
	}
	log.WithField("file", dest).Debug("Model file downloaded")
	return nil
}

func runModelsStatus(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	engine, err := vision.New(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	loader := vision.NewModelLoader(engine, cfg.Models, cfg.Vision.ModelsPath)
	loader.Start(ctx)
	waitErr := loader.Wait(ctx)
	status := loader.Status()

	if mustGetBool(cmd, "json") {
		if err := writeJSON(status); err != nil {
			return err
		}
	} else {
		printModelStatus(cfg, status)
	}

	if waitErr != nil {
		return errors.New("face models are not ready")
	}
	return nil
}

func printModelStatus(cfg *config.Config, status vision.LoaderStatus) {
	fmt.Printf("Engine:  %s\n", status.Engine)
	fmt.Printf("Path:    %s\n", cfg.Vision.ModelsPath)
	for _, name := range status.Models {
		fmt.Printf("  - %s\n", name)
	}
	if status.Ready {
		fmt.Println("Status:  ready")
		return
	}
	fmt.Println("Status:  not ready")
	if status.Error != "" {
		fmt.Printf("Error:   %s\n", status.Error)
	}
}
