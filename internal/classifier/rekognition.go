package classifier

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/korjavin/platecal/internal/nutrition"
)

// DetectLabelsAPI is the subset of the Rekognition client used here.
type DetectLabelsAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Rekognition classifies images with AWS Rekognition DetectLabels. Label
// confidences (0-100) are scaled to [0,1].
type Rekognition struct {
	api           DetectLabelsAPI
	maxLabels     int32
	minConfidence float32
}

// NewRekognition wraps an existing DetectLabels client.
func NewRekognition(api DetectLabelsAPI, maxLabels int32, minConfidence float32) *Rekognition {
	return &Rekognition{api: api, maxLabels: maxLabels, minConfidence: minConfidence}
}

// NewRekognitionFromEnv loads the default AWS configuration for region.
func NewRekognitionFromEnv(ctx context.Context, region string, maxLabels int32, minConfidence float32) (*Rekognition, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewRekognition(rekognition.NewFromConfig(cfg), maxLabels, minConfidence), nil
}

// Classify returns the most confident label; the distribution lists every
// returned label by descending confidence.
func (r *Rekognition) Classify(ctx context.Context, image []byte) (nutrition.Classification, error) {
	out, err := r.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MaxLabels:     aws.Int32(r.maxLabels),
		MinConfidence: aws.Float32(r.minConfidence),
	})
	if err != nil {
		return nutrition.Classification{}, fmt.Errorf("detect labels: %w", err)
	}

	dist := make([]nutrition.LabelScore, 0, len(out.Labels))
	for _, l := range out.Labels {
		name := aws.ToString(l.Name)
		if name == "" {
			continue
		}
		dist = append(dist, nutrition.LabelScore{
			Label:       name,
			Probability: float64(aws.ToFloat32(l.Confidence)) / 100,
		})
	}
	if len(dist) == 0 {
		return nutrition.Classification{}, fmt.Errorf("no labels detected")
	}
	slices.SortStableFunc(dist, func(a, b nutrition.LabelScore) int {
		return cmp.Compare(b.Probability, a.Probability)
	})
	return nutrition.Classification{
		Label:        dist[0].Label,
		Confidence:   dist[0].Probability,
		Distribution: dist,
	}, nil
}
