// Package site is the boundary to the remote gallery site. It bundles the
// document fetcher, the page field extractors, the existence and reachability
// probes, and the streaming file downloader. Selectors here follow one site's
// page shape; the rest of the pipeline only sees structured fields.
package site
