package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mealphase/mealphase/predict"
	"github.com/mealphase/mealphase/server"
)

var (
	serveAddr       string        // Listen address
	shutdownTimeout time.Duration // Drain window on SIGINT/SIGTERM
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions over HTTP",
	Long:  "Loads the contract and classifier once, refuses to start if they disagree, and serves POST /predict and GET /health.",
	Run: func(cmd *cobra.Command, args []string) {
		p, err := predict.Load(contractPath, modelPath)
		if err != nil {
			logrus.Fatalf("Loading artifacts failed: %v", err)
		}
		if logrus.GetLevel() < logrus.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logrus.Infof("Serving contract v%s with %d descriptors", p.Contract().Version, p.Contract().Len())
		if err := server.New(p).ListenAndServe(ctx, serveAddr, shutdownTimeout); err != nil {
			logrus.Fatalf("Server failed: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&contractPath, "contract", "contract.yaml", "Feature contract YAML")
	serveCmd.Flags().StringVar(&modelPath, "model", "model.yaml", "Classifier artifact YAML")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":5050", "Listen address")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")

	rootCmd.AddCommand(serveCmd)
}
