package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/faceauth/internal/capture"
	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Inspect the registered face",
}

var templateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the registered face template",
	Long: `Show the label and descriptor size of the registered face.
The descriptor values themselves are never printed.

With --distance-to the face in the given image is compared against the
registered one. On the postgres backend the distance is also computed by
the database from the pgvector mirror.

Examples:
  faceauth template show
  faceauth template show --distance-to selfie.jpg --json`,
	RunE: runTemplateShow,
}

func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.AddCommand(templateShowCmd)

	templateShowCmd.Flags().String("distance-to", "", "Image whose face is compared against the registered one")
	templateShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// templateReport is the output of template show.
type templateReport struct {
	Registered bool   `json:"registered"`
	Label      string `json:"label,omitempty"`
	Dimension  int    `json:"dimension,omitempty"`
	Backend    string `json:"backend"`

	Image          string   `json:"image,omitempty"`
	Distance       *float64 `json:"distance,omitempty"`
	Accepted       *bool    `json:"accepted,omitempty"`
	StoredDistance *float64 `json:"stored_distance,omitempty"`
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.close()

	ctx := context.Background()
	templates, err := database.GetTemplateStore(ctx)
	if err != nil {
		return err
	}
	tmpl, err := templates.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading template: %w", err)
	}

	report := templateReport{Backend: database.BackendName()}
	if tmpl != nil {
		report.Registered = true
		report.Label = tmpl.Label
		report.Dimension = tmpl.Dim()
	}

	if imagePath := mustGetString(cmd, "distance-to"); imagePath != "" {
		report.Image = imagePath
		if err := compareImage(ctx, cfg, store, tmpl, imagePath, &report); err != nil {
			return err
		}
	}

	if mustGetBool(cmd, "json") {
		return writeJSON(report)
	}
	printTemplateReport(report)
	return nil
}

func compareImage(ctx context.Context, cfg *config.Config, store *storage, tmpl *facematch.FaceTemplate, imagePath string, report *templateReport) error {
	if tmpl == nil {
		return facematch.ErrNoTemplateRegistered
	}

	stack, err := newFaceStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.loader.Wait(ctx); err != nil {
		return fmt.Errorf("face models not available: %w", err)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	frame, err := capture.NewFrame(data, cfg.Capture.MaxSize)
	if err != nil {
		return err
	}
	extraction, err := stack.extractor.Extract(ctx, frame)
	if err != nil {
		return fmt.Errorf("extracting face: %w", err)
	}

	decision, err := stack.deps.Comparer.Compare(extraction.Descriptor, tmpl)
	if err != nil {
		return err
	}
	distance := decision.Best.Distance
	report.Distance = &distance
	report.Accepted = &decision.Accepted

	if store.templates != nil {
		_, stored, found, err := store.templates.NearestDistance(ctx, extraction.Descriptor)
		if err != nil {
			return err
		}
		if found {
			report.StoredDistance = &stored
		}
	}
	return nil
}

func printTemplateReport(r templateReport) {
	fmt.Printf("Backend:    %s\n", r.Backend)
	if !r.Registered {
		fmt.Println("No face registered")
		return
	}
	fmt.Printf("Label:      %s\n", r.Label)
	fmt.Printf("Dimension:  %d\n", r.Dimension)
	if r.Distance != nil {
		fmt.Printf("Distance:   %.4f (%s)\n", *r.Distance, r.Image)
		if r.Accepted != nil && *r.Accepted {
			fmt.Println("Result:     match")
		} else {
			fmt.Println("Result:     no match")
		}
	}
	if r.StoredDistance != nil {
		fmt.Printf("PostgreSQL: %.4f\n", *r.StoredDistance)
	}
}
