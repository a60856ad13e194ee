package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/doctor-booking-platform/internal/assistant"
	appconfig "github.com/wolfman30/doctor-booking-platform/internal/config"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// BuildAssistantClient selects the model behind the AI endpoints from AI_PROVIDER:
// bedrock, gemini, auto (Bedrock with Gemini fallback) or canned. A nil client means
// canned answers.
func BuildAssistantClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (assistant.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger = logging.OrDefault(logger)

	bedrock := func() (assistant.Client, error) {
		if awsCfg == nil || cfg.BedrockModelID == "" {
			return nil, nil
		}
		return assistant.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID)
	}
	gemini := func() (assistant.Client, error) {
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		return assistant.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}

	switch cfg.AIProvider {
	case "", "canned":
		return nil, nil
	case "bedrock":
		client, err := bedrock()
		if err != nil || client == nil {
			return nil, orMissing(err, "BEDROCK_MODEL_ID and AWS config are required for the bedrock provider")
		}
		logger.Info("assistant using bedrock", "model", cfg.BedrockModelID)
		return client, nil
	case "gemini":
		client, err := gemini()
		if err != nil || client == nil {
			return nil, orMissing(err, "GEMINI_API_KEY is required for the gemini provider")
		}
		logger.Info("assistant using gemini", "model", cfg.GeminiModel)
		return client, nil
	case "auto":
		primary, err := bedrock()
		if err != nil {
			return nil, err
		}
		fallback, err := gemini()
		if err != nil {
			return nil, err
		}
		switch {
		case primary != nil:
			logger.Info("assistant using bedrock", "model", cfg.BedrockModelID, "gemini_fallback", fallback != nil)
			return assistant.NewFallbackClient(primary, fallback, logger), nil
		case fallback != nil:
			logger.Info("assistant using gemini", "model", cfg.GeminiModel)
			return fallback, nil
		}
		logger.Warn("no assistant model configured; serving canned answers")
		return nil, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown AI_PROVIDER %q", cfg.AIProvider)
	}
}

// BuildImageStore returns the S3 store when a bucket is configured and an in-memory
// store otherwise.
func BuildImageStore(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) assistant.ImageStore {
	logger = logging.OrDefault(logger)
	if awsCfg != nil && cfg.S3UploadBucket != "" {
		client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
			// LocalStack and MinIO need path-style addressing
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		return assistant.NewS3ImageStore(client, cfg.S3UploadBucket)
	}
	logger.Warn("S3_UPLOAD_BUCKET not set; uploaded images are kept in memory")
	return assistant.NewMemoryImageStore()
}

func orMissing(err error, msg string) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("bootstrap: %s", msg)
}
