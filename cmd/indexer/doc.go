// Package main hosts the book recommender indexer service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the Pub/Sub push endpoints
//     (/pubsub/{books,user-reviews,profiles}/handle), health endpoints, metrics,
//     and an operator route for manually enqueueing book crawls. Push bodies are
//     decoded from the standard push envelope, validated, and routed to the
//     per-topic services.
//   - Indexing services: internal/indexer holds one service per inbound topic.
//     Books are written to the recommender catalog and recorded in the ledger;
//     reviews are debounced against the ledger and the user's cached read set
//     before being indexed; profiles fan out into user-review crawl tasks.
//   - Debounce ledger: internal/ledger keeps natural-key tables in Postgres with
//     idempotent ON CONFLICT writes, so at-least-once delivery and scraper
//     re-announcements never double-index anything. Goose migrations run at
//     startup when a DSN is configured.
//   - Catalog client: internal/catalog wraps the recommender REST API with
//     bounded retries on 429/503/504 and a TTL cache of each user's read books.
//   - Crawl scheduling: internal/tasks enqueues Cloud Tasks HTTP tasks that hit
//     the scraper's /crawl.json endpoint. Profile scrapes carry deterministic
//     hourly task IDs so duplicate announcements collapse onto one task. The
//     client targets the emulator when tasks.emulator_host is set.
//   - Audit stream: internal/audit batches indexed items through a non-blocking
//     hub and mirrors them to per-kind Pub/Sub audit topics plus the log. Audit
//     trouble never fails a push message.
//   - Configuration & plumbing: Viper populates config from env/files (prefix
//     INDEXER_); zap provides structured logging; Prometheus metrics are served
//     on /metrics. The service is stateless across requests, suitable for Cloud
//     Run scale-out.
//
// Operational notes:
//   - Ack/nack contract: malformed envelopes return 422 (subscription
//     misconfigured), undecodable payloads are acked with 200 and dropped
//     (redelivery cannot help), transient downstream failures return 500 so the
//     bus redelivers, and everything else is acked.
//   - Shutdown: SIGTERM stops the listener, waits for in-flight handlers, then
//     drains the audit hub before closing the ledger pool and task client.
//
// Quick checklist:
//   - Configure env vars: INDEXER_SERVER_PORT, INDEXER_DB_DSN,
//     INDEXER_CATALOG_BASE_URL, INDEXER_TASKS_EMULATOR_HOST (local), and
//     PUBSUB_EMULATOR_HOST for the audit publisher when running against the
//     emulator.
//   - Run locally: go run ./cmd/indexer -config config.yaml (or rely solely on
//     env overrides).
package main
