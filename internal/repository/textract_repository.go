package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"go.uber.org/zap"

	"github.com/tsaihsilo/receipt-recognition-app/internal/config"
	"github.com/tsaihsilo/receipt-recognition-app/internal/domain"
)

// AnalysisRepository drives the asynchronous document-analysis service:
// start a job against an uploaded object, then observe it by job id.
type AnalysisRepository interface {
	StartAnalysis(ctx context.Context, object domain.RemoteObject, opts domain.AnalysisOptions) (string, error)
	GetAnalysis(ctx context.Context, jobID string) (*domain.JobSnapshot, error)
}

// textractAPI is the slice of the Textract client the repository calls.
// Tests substitute a stub.
type textractAPI interface {
	StartDocumentAnalysis(ctx context.Context, params *textract.StartDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error)
	GetDocumentAnalysis(ctx context.Context, params *textract.GetDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error)
}

type textractRepository struct {
	client textractAPI
	log    *zap.Logger
}

func NewTextractRepository(awsCfg aws.Config, cfg *config.Config, log *zap.Logger) AnalysisRepository {
	client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})

	return &textractRepository{
		client: client,
		log:    log,
	}
}

func (r *textractRepository) StartAnalysis(ctx context.Context, object domain.RemoteObject, opts domain.AnalysisOptions) (string, error) {
	input := &textract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(object.Bucket),
				Name:   aws.String(object.Key),
			},
		},
		FeatureTypes: featureTypes(opts.FeatureTypes),
	}
	if opts.JobTag != "" {
		input.JobTag = aws.String(opts.JobTag)
	}
	if opts.ClientRequestToken != "" {
		input.ClientRequestToken = aws.String(opts.ClientRequestToken)
	}

	output, err := r.client.StartDocumentAnalysis(ctx, input)
	if err != nil {
		r.log.Error("Failed to start analysis job",
			zap.String("document", object.URI()),
			zap.String("code", apiErrorCode(err)),
			zap.Error(err))
		return "", err
	}

	jobID := aws.ToString(output.JobId)
	if jobID == "" {
		return "", errors.New("analysis service returned no job id")
	}

	r.log.Info("Analysis job started",
		zap.String("jobId", jobID),
		zap.String("document", object.URI()),
		zap.Strings("featureTypes", opts.FeatureTypes))

	return jobID, nil
}

func (r *textractRepository) GetAnalysis(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
	output, err := r.client.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
		JobId: aws.String(jobID),
	})
	if err != nil {
		r.log.Error("Failed to fetch analysis job",
			zap.String("jobId", jobID),
			zap.String("code", apiErrorCode(err)),
			zap.Error(err))
		return nil, err
	}

	// The full response is kept verbatim so the terminal observation
	// can be persisted exactly as the service returned it.
	raw, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("encode analysis response: %w", err)
	}

	snapshot := &domain.JobSnapshot{
		JobID:         jobID,
		Status:        domain.JobStatus(output.JobStatus),
		StatusMessage: aws.ToString(output.StatusMessage),
		Blocks:        len(output.Blocks),
		Raw:           raw,
	}
	if output.DocumentMetadata != nil {
		snapshot.Pages = aws.ToInt32(output.DocumentMetadata.Pages)
	}

	return snapshot, nil
}

func featureTypes(names []string) []types.FeatureType {
	out := make([]types.FeatureType, 0, len(names))
	for _, name := range names {
		out = append(out, types.FeatureType(name))
	}
	return out
}
