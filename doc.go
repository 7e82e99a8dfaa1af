// Package verbatim is the composition root for the Verbatim plagiarism checker.
//
// It wires the check pipeline (pkg/core) to a document store (filesystem or
// SQLite), the peer index, the original-file blob store and the PDF text
// extractor, following a hexagonal layout: the core only sees ports.
//
// A check ranks one document against every other document in the vault by a
// blend of word n-gram and character n-gram TF-IDF cosine similarity, then
// renders a short diff preview for each match.
//
// Usage:
//
//	vault, err := verbatim.New("./reports", verbatim.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer vault.Close()
//
//	doc, err := vault.Service.Ingest(ctx, "essay", text, nil)
//	check, err := vault.Service.RunCheck(ctx, doc.ID)
package verbatim
