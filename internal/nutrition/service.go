package nutrition

import (
	"context"
	"fmt"
	"log/slog"
)

// Classifier turns image bytes into a Classification.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (Classification, error)
}

// Service is the inbound surface: Predict drives the image path and Search
// the text path. Every failure it returns is an *Error.
type Service struct {
	classifier Classifier
	resolver   *Resolver
	logger     *slog.Logger
}

// NewService creates a Service. classifier may be nil, in which case Predict
// reports KindClassifierUnavailable.
func NewService(classifier Classifier, resolver *Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{classifier: classifier, resolver: resolver, logger: logger}
}

// CanPredict reports whether a classifier is configured.
func (s *Service) CanPredict() bool {
	return s.classifier != nil
}

// Predict classifies image and resolves the predicted label.
func (s *Service) Predict(ctx context.Context, image []byte) (rec Record, err error) {
	defer s.recoverInto("predict", &err)

	if len(image) == 0 {
		return Record{}, errorf(KindInvalidInput, "empty image")
	}
	if s.classifier == nil {
		return Record{}, errorf(KindClassifierUnavailable, "no classifier configured")
	}

	c, err := s.classifier.Classify(ctx, image)
	if err != nil {
		if KindOf(err) == KindMalformedClassification {
			return Record{}, err
		}
		return Record{}, &Error{Kind: KindClassifierUnavailable, Err: fmt.Errorf("classify: %w", err)}
	}
	return s.resolver.ResolveClassification(ctx, c)
}

// Search resolves query as typed by the user.
func (s *Service) Search(ctx context.Context, query string) (rec Record, err error) {
	defer s.recoverInto("search", &err)

	if query == "" {
		return Record{}, errorf(KindInvalidInput, "no query provided")
	}
	return s.resolver.ResolveQuery(ctx, query), nil
}

func (s *Service) recoverInto(op string, err *error) {
	if r := recover(); r != nil {
		s.logger.Error("resolution panicked", "op", op, "panic", r)
		*err = errorf(KindInternal, "%s: %v", op, r)
	}
}
