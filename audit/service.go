// api/audit/service.go
package audit

import (
	"context"
)

// Service is the single surface controllers depend on. Writes funnel into
// the appender; reads fan out to the query, verifier and export services.
type Service interface {
	Record(ctx context.Context, candidate Candidate) (*Entry, error)
	List(ctx context.Context, f Filter, page, perPage int) (*Page, error)
	Get(ctx context.Context, sequence uint64) (*Entry, error)
	Verify(ctx context.Context) (*Verification, error)
	VerifyRange(ctx context.Context, from, to uint64) (*Verification, error)
	Stats(ctx context.Context, windowDays int) (*Stats, error)
	Export(ctx context.Context, req ExportRequest) (*ExportRecord, error)
}

type service struct {
	appender *Appender
	verifier *Verifier
	query    *QueryService
	exporter *Exporter
}

func NewService(appender *Appender, verifier *Verifier, query *QueryService, exporter *Exporter) Service {
	return &service{
		appender: appender,
		verifier: verifier,
		query:    query,
		exporter: exporter,
	}
}

func (s *service) Record(ctx context.Context, candidate Candidate) (*Entry, error) {
	return s.appender.Append(ctx, candidate)
}

func (s *service) List(ctx context.Context, f Filter, page, perPage int) (*Page, error) {
	return s.query.List(ctx, f, page, perPage)
}

func (s *service) Get(ctx context.Context, sequence uint64) (*Entry, error) {
	return s.query.Get(ctx, sequence)
}

func (s *service) Verify(ctx context.Context) (*Verification, error) {
	return s.verifier.Verify(ctx)
}

func (s *service) VerifyRange(ctx context.Context, from, to uint64) (*Verification, error) {
	return s.verifier.VerifyRange(ctx, from, to)
}

func (s *service) Stats(ctx context.Context, windowDays int) (*Stats, error) {
	return s.query.Stats(ctx, windowDays)
}

func (s *service) Export(ctx context.Context, req ExportRequest) (*ExportRecord, error) {
	return s.exporter.Export(ctx, req)
}
