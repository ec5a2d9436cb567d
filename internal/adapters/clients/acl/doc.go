// Package acl is the anti-corruption layer between remote services and the
// quote domain.
//
// Remote DTOs stay unexported inside the adapter that decodes them. Callers
// only ever see domain.Quote values and domain errors. Every remote failure
// (transport error, open circuit, exhausted retries, non-2xx status, a body
// that does not decode) surfaces as a [domain.TransientNetworkError], because
// the application treats all of them the same way: log and wait for the next
// natural trigger.
//
// Building blocks:
//
//   - [BaseAdapter]: embeddable GET/POST helpers with error mapping
//   - [MapHTTPError]: response or client error to domain error
//   - [DecodeResponse]: generic JSON body decoder
//   - [TranslateSlice]: batch DTO to domain translation
//
// [PostsClient] is the adapter for the posts endpoint used by quote sync.
package acl
