// Package inspect reports structured facts about a remote web endpoint.
//
// Architecture overview:
//
//   - ParseURL and RequestOptions turn a bare host, host:port or URL plus
//     caller Options into a Descriptor (scheme, port, method, hostname, path
//     and passthrough settings such as headers or servername).
//   - Requester issues a single HTTP(S) request and hands back the response
//     with its body unread. TLSInspector performs a single handshake and
//     returns the presented certificate chain.
//   - ShapeStatus, ShapeTLS and ShapeMeta are pure projections from the raw
//     response or certificate into StatusResult, TLSResult and MetaResult.
//   - Inspector ties these together. Every operation is available as a
//     Future (Status, TLS, Meta) or through a Callback (StatusCallback,
//     TLSCallback, MetaCallback). Both forms share one completion path, and
//     failures reach the caller as plain messages.
//
// Nothing is pooled, cached or retried: one call, one connection.
package inspect
