package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tsaihsilo/receipt-recognition-app/internal/config"
	"github.com/tsaihsilo/receipt-recognition-app/internal/domain"
	"github.com/tsaihsilo/receipt-recognition-app/internal/repository"
	"github.com/tsaihsilo/receipt-recognition-app/internal/service"
	"github.com/tsaihsilo/receipt-recognition-app/pkg/logger"
)

var (
	processBucket       string
	processKey          string
	processNormalized   string
	processOutput       string
	processFeatures     []string
	processJobTag       string
	processJPEGQuality  int
	processPollInterval time.Duration
	processPollTimeout  time.Duration
	processStrictVerify bool
)

var processCmd = &cobra.Command{
	Use:   "process <source>",
	Short: "Analyze one receipt end to end",
	Long: `Process normalizes the given receipt image (or PDF), uploads it to the
configured bucket, starts an asynchronous FORMS and TABLES analysis job
and polls it until it reaches a terminal status. On success the full
response is written as indented JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processBucket, "bucket", "b", "", "destination bucket (overrides S3_BUCKET_NAME)")
	processCmd.Flags().StringVarP(&processKey, "key", "k", "", "object key (default: artifact basename under S3_KEY_PREFIX)")
	processCmd.Flags().StringVar(&processNormalized, "normalized", "", "path for the normalized artifact (default: derived from source)")
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "result file path (overrides RESULT_PATH)")
	processCmd.Flags().StringSliceVar(&processFeatures, "features", nil, "feature types to request (overrides ANALYSIS_FEATURE_TYPES)")
	processCmd.Flags().StringVar(&processJobTag, "job-tag", "", "tag attached to the analysis job (overrides ANALYSIS_JOB_TAG)")
	processCmd.Flags().IntVar(&processJPEGQuality, "jpeg-quality", 0, "JPEG quality, 1 to 100 (overrides JPEG_QUALITY)")
	processCmd.Flags().DurationVar(&processPollInterval, "poll-interval", 0, "delay between status checks (overrides ANALYSIS_POLL_INTERVAL)")
	processCmd.Flags().DurationVar(&processPollTimeout, "poll-timeout", 0, "maximum wait for the job, 0 waits forever (overrides ANALYSIS_POLL_TIMEOUT)")
	processCmd.Flags().BoolVar(&processStrictVerify, "strict-verify", false, "treat upload verification failures as fatal (overrides VERIFY_STRICT)")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return err
	}
	if cfg.Storage.Bucket == "" {
		return domain.ConfigError("bucket is required: set S3_BUCKET_NAME or pass --bucket", nil)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := repository.NewAWSConfig(ctx, &cfg.AWS)
	if err != nil {
		return fmt.Errorf("load AWS configuration: %w", err)
	}

	objects := repository.NewS3Repository(awsCfg, cfg, log)
	analysis := repository.NewTextractRepository(awsCfg, cfg, log)
	svc := service.NewReceiptService(objects, analysis, cfg, log)

	report, err := svc.Process(ctx, service.Request{
		SourcePath:     args[0],
		NormalizedPath: processNormalized,
		Key:            processKey,
		ResultPath:     processOutput,
	})
	if err != nil {
		logFailure(log, err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Job %s %s. Result written to %s after %d polls in %s.\n",
		report.JobID, report.Status, report.ResultPath, report.Polls, report.Elapsed.Round(time.Millisecond))

	return nil
}

// applyOverrides merges flag values over the environment-derived
// configuration and revalidates the result.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if processBucket != "" {
		cfg.Storage.Bucket = processBucket
	}
	if len(processFeatures) > 0 {
		features, err := domain.NormalizeFeatureTypes(processFeatures)
		if err != nil {
			return domain.ConfigError("invalid --features", err)
		}
		cfg.Analysis.FeatureTypes = features
	}
	if processJobTag != "" {
		cfg.Analysis.JobTag = processJobTag
	}
	if processJPEGQuality > 0 {
		cfg.Pipeline.JPEGQuality = processJPEGQuality
	}
	if flags.Changed("poll-interval") {
		cfg.Analysis.PollInterval = processPollInterval
	}
	if flags.Changed("poll-timeout") {
		cfg.Analysis.PollTimeout = processPollTimeout
	}
	if flags.Changed("strict-verify") {
		cfg.Pipeline.StrictVerify = processStrictVerify
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	return cfg.Validate()
}

func logFailure(log *zap.Logger, err error) {
	var jobErr *domain.JobFailedError
	var pipeErr *domain.PipelineError

	switch {
	case errors.As(err, &jobErr):
		log.Error("Analysis job failed",
			zap.String("jobId", jobErr.JobID),
			zap.String("status", string(jobErr.Status)),
			zap.String("statusMessage", jobErr.StatusMessage))
	case errors.As(err, &pipeErr):
		log.Error("Pipeline failed",
			zap.String("stage", string(pipeErr.Type)),
			zap.Error(err))
	default:
		log.Error("Pipeline failed", zap.Error(err))
	}
}
