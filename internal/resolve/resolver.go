// Package resolve maps point codes as partners write them to the reference
// database's internal identifiers.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// externalClientCodes maps reference-database client codes to the external
// CC code space some partners embed in their point codes and file names
var externalClientCodes = map[int]string{
	45: "52",
	46: "01",
	47: "02",
	48: "23",
}

// DefaultExternalCode is emitted when a client has no external code
const DefaultExternalCode = "00"

// ExternalCode returns the external CC code for a client, or "00"
func ExternalCode(clientCode int) string {
	if cc, ok := externalClientCodes[clientCode]; ok {
		return cc
	}
	return DefaultExternalCode
}

// ClientForExternalCode inverts the CC table: external code to client code
func ClientForExternalCode(cc string) (int, bool) {
	for client, external := range externalClientCodes {
		if external == cc {
			return client, true
		}
	}
	return 0, false
}

// Store is the reference-database lookup surface the resolver depends on.
// Lookups return (nil, nil) or (0, nil) when nothing matches; errors are
// infrastructure failures only. Implementations must be safe for concurrent
// use.
type Store interface {
	// ClientByTaxID finds a client code by tax id.
	ClientByTaxID(ctx context.Context, taxID string) (int, error)

	// PointByCode finds a point by the code partners use for it.
	PointByCode(ctx context.Context, clientCode int, code string) (*models.ResolvedPoint, error)

	// PointByPair finds a point by the internal client/point pair,
	// ignoring any composite key the file carried.
	PointByPair(ctx context.Context, clientCode int, pointCode string) (*models.ResolvedPoint, error)
}

// Resolver maps raw point codes to resolved points. Stateless and safe for
// concurrent use; results are never cached across files because reference
// data may change between runs.
type Resolver interface {
	Resolve(ctx context.Context, rawCode string, clientCode int) (*models.ResolvedPoint, error)
	ClientByTaxID(ctx context.Context, taxID string) (int, error)
}

// CodeResolver implements the four-step fallback chain over a Store
type CodeResolver struct {
	store  Store
	logger logger.Logger
}

// NewCodeResolver creates a resolver over the given reference store
func NewCodeResolver(store Store, log logger.Logger) *CodeResolver {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &CodeResolver{
		store:  store,
		logger: log.WithComponent("code_resolver"),
	}
}

// Resolve runs the fallback chain, first match wins:
//
//  1. direct lookup of the raw code under the client
//  2. composite codes: strip the middle segment, retry the numeric suffix
//  3. translate a leading external CC code to its client and retry
//  4. lookup by the internal (client, suffix) pair
//
// Failure is PointNotFound; the caller must never substitute a placeholder.
func (r *CodeResolver) Resolve(ctx context.Context, rawCode string, clientCode int) (*models.ResolvedPoint, error) {
	rawCode = strings.TrimSpace(rawCode)
	if rawCode == "" {
		return nil, errors.ResolutionError(errors.CodePointNotFound, rawCode, clientCode, nil)
	}

	log := r.logger.WithFields(logger.Fields{
		"raw_code": rawCode,
		"client":   clientCode,
	})

	// Step 1: the code as written.
	point, err := r.store.PointByCode(ctx, clientCode, rawCode)
	if err != nil {
		return nil, err
	}
	if point != nil {
		log.WithField("path", "direct").Debug("Point resolved")
		return point, nil
	}

	segments := strings.Split(rawCode, "-")

	// Step 2: composite code, keep only the trailing suffix.
	// "52-SUC-0075" and "52-0075" both reduce to "0075".
	if len(segments) > 1 {
		suffix := strings.TrimSpace(segments[len(segments)-1])
		if suffix != "" && suffix != rawCode {
			point, err = r.store.PointByCode(ctx, clientCode, suffix)
			if err != nil {
				return nil, err
			}
			if point != nil {
				log.WithFields(logger.Fields{"path": "suffix", "suffix": suffix}).Debug("Point resolved")
				return point, nil
			}
		}
	}

	// Step 3: the first segment is an external CC code; translate it and
	// retry under the owning client.
	if len(segments) > 1 {
		if translated, known := ClientForExternalCode(strings.TrimSpace(segments[0])); known {
			suffix := strings.TrimSpace(segments[len(segments)-1])
			translatedCode := fmt.Sprintf("%d-%s", translated, suffix)
			point, err = r.store.PointByCode(ctx, translated, translatedCode)
			if err != nil {
				return nil, err
			}
			if point != nil {
				log.WithFields(logger.Fields{
					"path":       "external_code",
					"translated": translatedCode,
				}).Debug("Point resolved")
				return point, nil
			}
		}
	}

	// Step 4: ignore the composite entirely and try the internal pair.
	suffix := strings.TrimSpace(segments[len(segments)-1])
	point, err = r.store.PointByPair(ctx, clientCode, suffix)
	if err != nil {
		return nil, err
	}
	if point != nil {
		log.WithField("path", "pair").Debug("Point resolved")
		return point, nil
	}

	log.Warn("Point not found after all fallback strategies")
	return nil, errors.ResolutionError(errors.CodePointNotFound, rawCode, clientCode, nil)
}

// ClientByTaxID finds the client code behind a tax id, as the text channel's
// file header carries it
func (r *CodeResolver) ClientByTaxID(ctx context.Context, taxID string) (int, error) {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return 0, errors.ResolutionError(errors.CodeClientNotFound, taxID, 0, nil)
	}

	client, err := r.store.ClientByTaxID(ctx, taxID)
	if err != nil {
		return 0, err
	}
	if client == 0 {
		return 0, errors.ResolutionError(errors.CodeClientNotFound, taxID, 0, nil)
	}

	return client, nil
}

// Endpoints derives the origin and destination of a service from its
// resolved point. Provisions flow fund to point; collections flow point to
// fund, falling back to the point itself when it has no fund.
func Endpoints(p *models.ResolvedPoint, concept models.Concept) (origin string, originInd models.Indicator, dest string, destInd models.Indicator) {
	fund := p.FundKey
	if fund == "" {
		fund = p.PointKey
	}

	if concept.IsProvision() {
		return fund, models.IndicatorFund, p.PointKey, models.IndicatorPoint
	}
	return p.PointKey, models.IndicatorPoint, fund, models.IndicatorFund
}
