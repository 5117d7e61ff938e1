package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var skipDetection bool

var rootCmd = &cobra.Command{
	Use:   "facemood",
	Short: "Face enrollment and recognition with emotion tagging",
	Long: `facemood enrolls people by their face embedding, recognizes them from a
camera or from images, tags every recognized frame with an emotion, and reports
per-person emotion statistics.

Embeddings come from a DeepFace-compatible service (EMBEDDING_URL). Emotions come
from DeepFace, OpenAI, Gemini or Ollama (EMOTION_PROVIDER). Storage is SQLite by
default, or PostgreSQL/MariaDB when DATABASE_URL points at one.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVar(&skipDetection, "no-detect", false, "Treat images as already-cropped faces (skip the Haar cascade)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
