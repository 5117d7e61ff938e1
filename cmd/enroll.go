package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/enrollment"
	"github.com/kozaktomas/facemood/internal/pipeline"
	"github.com/kozaktomas/facemood/internal/vision"
	"github.com/spf13/cobra"
)

// maxEnrollFrames bounds how many camera frames are tried before giving up.
const maxEnrollFrames = 100

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a person from an image or the camera",
	Long: `Enroll a new person. The face embedding is taken from --image, or from the
first camera frame with a usable face when --camera is set.

Enrollment is rejected when the face is already enrolled (nearest distance below
DUPLICATE_THRESHOLD) or when the contact is already in use.

Examples:
  # Enroll from a photo
  facemood enroll --name Ana --surname Gómez --contact ana@example.com --image ana.jpg

  # Enroll from the default camera
  facemood enroll --name Ana --surname Gómez --contact ana@example.com --camera`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "First name (required)")
	enrollCmd.Flags().String("surname", "", "Surname (required)")
	enrollCmd.Flags().String("contact", "", "Unique contact, e.g. e-mail (required)")
	enrollCmd.Flags().String("image", "", "Image file containing the face")
	enrollCmd.Flags().Bool("camera", false, "Capture the face from the camera")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")
}

// EnrollResult is the JSON output of the enroll command
type EnrollResult struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Contact string `json:"contact"`
}

func runEnroll(cmd *cobra.Command, args []string) error {
	imagePath := mustGetString(cmd, "image")
	useCamera := mustGetBool(cmd, "camera")
	jsonOutput := mustGetBool(cmd, "json")
	req := enrollment.Request{
		Name:    mustGetString(cmd, "name"),
		Surname: mustGetString(cmd, "surname"),
		Contact: mustGetString(cmd, "contact"),
	}

	if (imagePath == "") == !useCamera {
		return errors.New("exactly one of --image or --camera is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := config.Load()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	collab, err := newCollaborators(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer collab.Close()

	svc := enrollment.NewService(store, collab.pipeline, cfg.Embedding.Dim, cfg.Matching.DuplicateThreshold)

	var id int64
	if useCamera {
		req.Embedding, err = captureEmbedding(ctx, cfg, collab.pipeline)
		if err != nil {
			return err
		}
		id, err = svc.Enroll(ctx, req)
	} else {
		var image []byte
		image, err = os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		id, err = svc.EnrollImage(ctx, req, image)
	}
	if err != nil {
		return describeEnrollError(err)
	}

	if jsonOutput {
		return outputJSON(EnrollResult{ID: id, Name: req.Name, Surname: req.Surname, Contact: req.Contact})
	}
	fmt.Printf("Enrolled %s %s <%s> as identity %d\n", req.Name, req.Surname, req.Contact, id)
	return nil
}

// captureEmbedding reads camera frames until one yields a face embedding.
func captureEmbedding(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) ([]float32, error) {
	camera, err := vision.OpenCamera(cfg.Capture.CameraDevice)
	if err != nil {
		return nil, err
	}
	defer camera.Close()

	fmt.Println("Looking for a face, hold still...")
	var last error
	for range maxEnrollFrames {
		frame, err := camera.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		obs := p.Observe(ctx, frame)
		if obs.HasEmbedding() {
			return obs.Embedding, nil
		}
		last = obs.Err
	}
	return nil, fmt.Errorf("no usable face in %d frames: %w", maxEnrollFrames, last)
}

// describeEnrollError adds a hint to the common rejection reasons.
func describeEnrollError(err error) error {
	var dup *enrollment.DuplicateFaceError
	switch {
	case errors.As(err, &dup):
		return fmt.Errorf("face already enrolled as %s (identity %d, distance %.4f): %w", dup.Label, dup.IdentityID, dup.Distance, err)
	case errors.Is(err, pipeline.ErrNoFaceDetected):
		return fmt.Errorf("no face found in the image, try a frontal photo or --no-detect: %w", err)
	}
	return err
}
