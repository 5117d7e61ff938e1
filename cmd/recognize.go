package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/pipeline"
	"github.com/kozaktomas/facemood/internal/recognition"
	"github.com/kozaktomas/facemood/internal/vision"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize [image...]",
	Short: "Recognize enrolled people from the camera or from images",
	Long: `Recognize faces and tag each recognized frame with an emotion.

With --camera, frames are read until Ctrl+C. Otherwise every image argument is
processed once. A detection event is stored for each frame whose face matches an
enrolled identity (distance below MATCH_THRESHOLD) unless --no-record is set.

Examples:
  # Live recognition from the default camera
  facemood recognize --camera

  # Recognize a set of photos without storing detections
  facemood recognize --no-record photos/*.jpg`,
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Bool("camera", false, "Read frames from the camera until interrupted")
	recognizeCmd.Flags().Int("device", -1, "Camera device index (defaults to CAMERA_DEVICE)")
	recognizeCmd.Flags().Bool("no-record", false, "Do not store detection events")
	recognizeCmd.Flags().Float64("threshold", 0, "Match threshold (defaults to MATCH_THRESHOLD)")
	recognizeCmd.Flags().Bool("json", false, "Output one JSON object per frame and a summary")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	useCamera := mustGetBool(cmd, "camera")
	device := mustGetInt(cmd, "device")
	noRecord := mustGetBool(cmd, "no-record")
	threshold := mustGetFloat64(cmd, "threshold")
	jsonOutput := mustGetBool(cmd, "json")

	if useCamera == (len(args) > 0) {
		return errors.New("use either --camera or one or more image files")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := config.Load()
	if threshold <= 0 {
		threshold = cfg.Matching.MatchThreshold
	}
	if device < 0 {
		device = cfg.Capture.CameraDevice
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	collab, err := newCollaborators(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer collab.Close()

	index := recognition.NewIdentityIndex(store)
	if err := index.Refresh(ctx); err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("Loaded %d enrolled identities\n", index.Len())
	}

	var source pipeline.FrameSource
	if useCamera {
		camera, err := vision.OpenCamera(device)
		if err != nil {
			return err
		}
		source = camera
		if !jsonOutput {
			fmt.Println("Recognizing from camera, press Ctrl+C to stop")
		}
	} else {
		source = pipeline.NewFileSource(args...)
	}
	defer source.Close()

	session := recognition.NewSession(index, collab.pipeline, store, threshold)
	session.Record = !noRecord
	if useCamera {
		session.FrameInterval = cfg.Capture.FrameInterval
	}
	session.OnFrame = func(report recognition.FrameReport) {
		if jsonOutput {
			outputJSON(report)
			return
		}
		printFrame(report)
	}

	summary, err := session.Run(ctx, source)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(summary)
	}
	fmt.Printf("\nSession %s: %d frames, %d faces, %d matches, %d recorded\n",
		summary.SessionID, summary.Frames, summary.Faces, summary.Matches, summary.Recorded)
	collab.printUsage()
	return nil
}

// printFrame renders the overlay text for one frame.
func printFrame(report recognition.FrameReport) {
	switch report.Outcome {
	case pipeline.OutcomeNoFace:
		fmt.Printf("Frame %d: no face\n", report.Frame)
		return
	case pipeline.OutcomeExtractionFailed:
		fmt.Printf("Frame %d: %s (%v)\n", report.Frame, recognition.UnknownLabel, report.Err)
		return
	}

	line := fmt.Sprintf("Frame %d: %s", report.Frame, report.Match.Label)
	if report.Match.Compared {
		line += fmt.Sprintf(" (distance %.4f)", report.Match.Distance)
	}
	line += fmt.Sprintf(" - %s %.1f%%", report.Emotion.Label, report.Emotion.Confidence)
	if report.Recorded {
		line += fmt.Sprintf(" [event %d]", report.DetectionID)
	}
	fmt.Println(line)
}
