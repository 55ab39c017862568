// Package pagination drives a query page by page against the report
// service.
//
// The service has no paging primitive of its own, so each page is requested
// by appending an OFFSET/FETCH clause to the original statement:
//
//	SELECT * FROM orders OFFSET 500 ROWS FETCH NEXT 500 ROWS ONLY
//
// Pages are fetched strictly in sequence because the offset of page N is
// the number of rows actually returned by pages 0..N-1. A page shorter than
// the page size is the last one.
//
// Example usage:
//
//	engine, err := pagination.NewEngine(transport, query, pagination.Config{
//		Policy: client.DefaultRetryPolicy(),
//	})
//	page, err := engine.FetchNextPage(ctx, 0)
//	for page.Full {
//		engine.Recycle(page.Rows)
//		page, err = engine.FetchNextPage(ctx, page.Offset+len(page.Rows))
//	}
//
// The engine records the first-seen spelling of every column in a
// ColumnIdentity that grows across pages, and recycles row storage from
// discarded pages through a bounded pool.
package pagination
