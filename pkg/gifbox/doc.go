// Package gifbox ingests user-submitted images, converts them to WebP and
// keeps three independent stores in step: a blob store holding the bytes, a
// metadata repository holding Post records, and a search index holding a
// projection of each public post.
//
// There is no transaction spanning the stores. The Service orders writes so
// that the blob store is always ahead of the repository: on create the blob
// is written before the record, and on delete the blob is removed before the
// record. A failed record insert deletes the freshly written blob. Search
// index writes are best-effort and run asynchronously; readers resolve every
// hit against the repository and drop the ones that no longer exist.
//
// Backends live in subpackages: storage/{memory,fs,s3}, repo/{memory,postgres},
// search/{memory,meili} and views/{memory,redis}. The transcode subpackage runs
// the external conversion process.
package gifbox
