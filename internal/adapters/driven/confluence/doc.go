// Package confluence reads pages and attachments from Confluence through the
// REST API (v1). It implements driven.SourceProvider.
//
// Requests are rate limited and retried on 429 and 5xx responses with
// exponential backoff honouring Retry-After. Authentication failures are
// reported as domain.ErrSourceUnavailable and abort the pass.
package confluence
