// Package billsearch embeds the bill search pipeline in a Go program without
// running the HTTP server.
//
// Build an artifact once, then open it for queries:
//
//	err := billsearch.BuildIndex(ctx,
//	    billsearch.WithDocuments("data/bills.parquet"),
//	    billsearch.WithArtifact("data/index"),
//	    billsearch.WithLocalEmbedder(384),
//	)
//
//	client, _ := billsearch.Open(ctx,
//	    billsearch.WithDocuments("data/bills.parquet"),
//	    billsearch.WithArtifact("data/index"),
//	    billsearch.WithLocalEmbedder(384),
//	    billsearch.WithGenerator(gen),
//	)
//	hits, _ := client.Search(ctx, "bias audits for hiring tools", billsearch.TopK(5))
//	answer, _ := client.Ask(ctx, "What do NY employers need to do?", billsearch.InState("NY"))
//
// Open loads synchronously: it returns only once the index is ready, or with the
// load error.
package billsearch
