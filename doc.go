// Package spinneret is a concurrent crawling engine. Given a set of seed
// requests, it fetches remote resources through an interceptor chain,
// invokes user-supplied parse logic to extract records and follow-up
// requests, and feeds records through a processing pipeline into exporters.
//
// The engine enforces per-origin politeness (delay and concurrency caps),
// deduplicates requests at admission time, applies backpressure between the
// fetch and parse pools through a bounded hand-off channel, and can
// checkpoint its frontier and dedup state so an interrupted crawl resumes
// without losing pending work.
//
// A minimal crawl:
//
//	crawler, err := spinneret.NewBuilder[Quote, QuoteState](&QuotesSpider{}).
//		WithConfig(spinneret.Config{FetchWorkers: 4, ParseWorkers: 2}).
//		WithMiddlewares(middleware.NewUserAgent(""), middleware.NewRetry(middleware.RetryConfig{})).
//		WithExporters(pipeline.NewJSONLines[Quote]("quotes.jsonl")).
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = crawler.Run(ctx)
//
// Bundled middlewares live in the middleware package, record processors and
// exporters in pipeline, checkpoint stores in checkpoint, and alternative
// transports in transport/headless.
package spinneret
