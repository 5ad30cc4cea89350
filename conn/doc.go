// Package conn implements a synchronous HTTP connection facade over an
// asynchronous engine.
//
// A [Conn] runs one request cycle at a time in a strict order: begin a
// request, write its body, submit it, read the response.
//
//	c, err := conn.New()
//	if err != nil { ... }
//	defer c.Close()
//
//	req, err := c.Get("https://example.com/data")
//	if err != nil { ... }
//
//	resp, err := req.Submit()
//	if err != nil { ... }
//
//	buf := make([]byte, 4096)
//	for {
//		n, err := resp.Read(buf)
//		if err != nil { ... }
//		if n == 0 {
//			break
//		}
//		// consume buf[:n]
//	}
//
// No network I/O runs on the calling goroutine. Each blocking call
// drives exactly one asynchronous operation to completion on the
// connection's runtime and hands back its result, so the calling code
// reads top to bottom while the I/O itself stays concurrent and
// bounded.
//
// # States
//
// A Conn is always in exactly one of three states, reported by
// [Conn.State]: idle, requesting, or responding. [Conn.Begin] moves
// idle to requesting, [Request.Submit] moves requesting to responding,
// and beginning the next cycle returns to requesting. Submit is the
// only way forward out of requesting: beginning again while a request
// is pending fails rather than silently dropping written body bytes.
// Beginning a new cycle while a response still holds unread body bytes
// is allowed; the unread remainder is discarded with a warning log,
// since the body stream cannot be rewound.
//
// # Errors
//
// Every failure is an [*Error] carrying a [Kind]. Classify with
// [KindOf] or [IsKind], and reach the underlying cause with
// [errors.Is] and [errors.As] as usual.
//
// A Conn is not safe for concurrent use. For concurrent request flows,
// create one Conn per goroutine; they can share a single runtime via
// [WithRuntime].
package conn
