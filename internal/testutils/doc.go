// Package testutils provides testing utilities for the docstream API.
//
// This package contains helpers for:
//  1. Building multipart analysis requests
//  2. Decoding server-sent progress streams
//  3. Asserting API error responses
//
// # Analysis Requests
//
//	req := testutils.MultipartRequest(t, "/analyze/stream",
//	    map[string]string{"translate": "false"},
//	    &testutils.File{Name: "paper.pdf", Data: pdfBytes},
//	)
//
// # Progress Streams
//
//	evs := testutils.ParseSSE(t, rec.Body.String())
//	testutils.AssertNonDecreasing(t, evs)
//
// Helpers take *testing.T and fail the test on malformed input rather than
// returning errors.
package testutils
