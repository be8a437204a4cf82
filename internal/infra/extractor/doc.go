// Package extractor pulls text out of downloaded PDFs, falling back to OCR
// for pages whose native text is too sparse to be useful.
//
// Native extraction is done by the in-repo pdf subpackage rather than an
// imported third-party PDF library: none of the reference material in this
// project's corpus ships a PDF-parsing module with a stable, importable
// path (the one PDF-shaped reference is example material without a module
// boundary meant for reuse), so there is nothing to wire a dependency to
// here. OCR rendering and recognition instead shell out to pdftoppm and
// tesseract exactly as the prior implementation of this system did, which
// keeps the OCR path grounded in real, widely available command-line tools
// rather than a CGO-bound Go binding.
package extractor
