package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/kozaktomas/faceauth/internal/capture"
	"github.com/kozaktomas/faceauth/internal/flow"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a face from a still image or the local camera",
	Long: `Detect the single face in an image and store its descriptor under a username.
Any previously registered face is replaced.

Examples:
  # Register from a photo
  faceauth register --image alice.jpg --username alice

  # Register from the first local camera (binary built with -tags gocv)
  faceauth register --device --username alice`,
	RunE: runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in by comparing a face against the registered one",
	Long: `Detect the single face in an image and compare it against the registered
descriptor. On a match the signed-in user is recorded.

Examples:
  faceauth login --image selfie.jpg
  faceauth login --image selfie.jpg --json`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)

	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().String("image", "", "Path to a still image (JPEG, PNG, WebP or BMP)")
		c.Flags().Bool("device", false, "Capture from the local camera instead of an image")
		c.Flags().Bool("json", false, "Output the final state as JSON")
	}
	registerCmd.Flags().String("username", "", "Name to register the face under")
}

// cameraSource picks the capture source from --image or --device.
func cameraSource(cmd *cobra.Command, device int) (capture.Source, error) {
	imagePath := mustGetString(cmd, "image")
	useDevice := mustGetBool(cmd, "device")

	switch {
	case imagePath != "" && useDevice:
		return nil, errors.New("--image and --device are mutually exclusive")
	case imagePath != "":
		return capture.NewFileSource(imagePath), nil
	case useDevice:
		return capture.NewDeviceSource(device)
	}
	return nil, errors.New("either --image or --device is required")
}

// runWorkflow drives one flow from an open camera to its outcome.
func runWorkflow(cmd *cobra.Command, workflow flow.Workflow, steps func(ctx context.Context, ctrl *flow.Controller) (flow.SessionState, error)) error {
	cfg, logCloser, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	source, err := cameraSource(cmd, cfg.Capture.Device)
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.close()

	ctx := context.Background()
	stack, err := newFaceStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	fmt.Fprintf(os.Stderr, "Loading face models (%s engine)...\n", stack.engine.Name())
	if err := stack.loader.Wait(ctx); err != nil {
		return fmt.Errorf("face models not available: %w", err)
	}

	ctrl := flow.NewController(uuid.NewString(), workflow, capture.NewSession(source, cfg.Capture.MaxSize), stack.deps)
	defer ctrl.Close()

	if _, err := ctrl.OpenCamera(ctx); err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}

	state, stepErr := steps(ctx, ctrl)
	if err := printState(state, mustGetBool(cmd, "json")); err != nil {
		return err
	}
	return stepErr
}

func runRegister(cmd *cobra.Command, args []string) error {
	username := mustGetString(cmd, "username")
	if username == "" {
		return errors.New("--username is required")
	}

	return runWorkflow(cmd, flow.WorkflowRegistration, func(ctx context.Context, ctrl *flow.Controller) (flow.SessionState, error) {
		if _, err := ctrl.SetUsername(username); err != nil {
			return ctrl.Snapshot(), err
		}
		if s, err := ctrl.CaptureAndDetect(ctx); err != nil {
			return s, err
		}
		return ctrl.Register(ctx)
	})
}

func runLogin(cmd *cobra.Command, args []string) error {
	return runWorkflow(cmd, flow.WorkflowLogin, func(ctx context.Context, ctrl *flow.Controller) (flow.SessionState, error) {
		return ctrl.CaptureAndDetect(ctx)
	})
}

func printState(s flow.SessionState, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(s)
	}

	fmt.Printf("State:    %s\n", s.State)
	if s.Username != "" {
		fmt.Printf("Username: %s\n", s.Username)
	}
	if s.Distance != nil {
		fmt.Printf("Distance: %.4f\n", *s.Distance)
	}
	if s.Message != "" {
		fmt.Println(s.Message)
	}
	if s.ErrorMessage != "" {
		fmt.Println(s.ErrorMessage)
	}
	return nil
}
