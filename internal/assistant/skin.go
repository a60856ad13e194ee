package assistant

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// MaxImageBytes caps a skin image upload.
const MaxImageBytes = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Condition is one candidate finding.
type Condition struct {
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// SkinAnalysis is the result of an image analysis.
type SkinAnalysis struct {
	ImageKey        string      `json:"imageKey"`
	ImageURL        string      `json:"imageUrl"`
	Conditions      []Condition `json:"conditions"`
	Recommendations []string    `json:"recommendations"`
	Speciality      string      `json:"speciality"`
	Disclaimer      string      `json:"disclaimer"`
	AnalyzedAt      time.Time   `json:"analyzedAt"`
}

// SkinAnalyzer stores an uploaded image and returns a canned assessment.
type SkinAnalyzer struct {
	images ImageStore
	now    func() time.Time
	newID  func() string
	logger *logging.Logger
}

// NewSkinAnalyzer panics on a nil store.
func NewSkinAnalyzer(images ImageStore, logger *logging.Logger) *SkinAnalyzer {
	if images == nil {
		panic("assistant: image store required")
	}
	return &SkinAnalyzer{
		images: images,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logging.OrDefault(logger),
	}
}

// Analyze validates the image by sniffing its bytes, uploads it under the user's prefix
// and returns the assessment.
func (a *SkinAnalyzer) Analyze(ctx context.Context, userID string, data []byte) (*SkinAnalysis, error) {
	if len(data) == 0 {
		return nil, apperr.Validation("image is required")
	}
	if len(data) > MaxImageBytes {
		return nil, apperr.Validation("image must be 5 MB or smaller")
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, apperr.Validation("image must be JPEG, PNG or WebP")
	}

	ctx, span := assistantTracer.Start(ctx, "assistant.skin_analyze")
	defer span.End()

	now := a.now().UTC()
	key := fmt.Sprintf("skin/%s/%s/%s.%s", userID, now.Format("2006/01/02"), a.newID(), ext)
	location, err := a.images.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "could not store image", err)
	}
	a.logger.Info("skin image stored", "user_id", userID, "key", key, "bytes", len(data))

	return &SkinAnalysis{
		ImageKey: key,
		ImageURL: location,
		Conditions: []Condition{
			{Name: "Mild acne", Confidence: 0.62, Description: "Small inflamed bumps typical of clogged pores."},
			{Name: "Contact dermatitis", Confidence: 0.21, Description: "Redness caused by an irritant or allergen."},
			{Name: "Dry skin", Confidence: 0.17, Description: "Rough or flaky patches from low moisture."},
		},
		Recommendations: []string{
			"Wash the area twice daily with a gentle cleanser",
			"Use a fragrance-free moisturiser",
			"Avoid picking or scratching the affected skin",
		},
		Speciality: "Dermatologist",
		Disclaimer: "Automated image analysis can be wrong. Book a dermatologist for a proper diagnosis.",
		AnalyzedAt: now,
	}, nil
}
